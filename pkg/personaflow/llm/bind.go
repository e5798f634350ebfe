package llm

// Bind resolves a ModelConfig into a callable inference client.
// It fails with a configuration error if the provider is not supported or
// the model id is empty. The returned client performs no retries of its
// own; retry policy belongs to the workflow orchestrator.
func Bind(cfg ModelConfig) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderGoogle:
		return NewGemini(cfg)
	default:
		// Every other supported provider speaks the OpenAI-compatible
		// chat completion wire format, natively or through a gateway.
		return NewOpenAICompat(cfg), nil
	}
}

// defaultBaseURLs maps providers to their OpenAI-compatible endpoints.
// A ModelConfig.BaseURL overrides the default; providers without an entry
// (azure, aws, local) require an explicit BaseURL.
var defaultBaseURLs = map[Provider]string{
	ProviderOpenAI:      "https://api.openai.com/v1",
	ProviderHuggingFace: "https://router.huggingface.co/v1",
	ProviderCohere:      "https://api.cohere.ai/compatibility/v1",
	ProviderAnthropic:   "https://api.anthropic.com/v1",
	ProviderMistral:     "https://api.mistral.ai/v1",
	ProviderGroq:        "https://api.groq.com/openai/v1",
	ProviderGrok:        "https://api.x.ai/v1",
	ProviderOpenRouter:  "https://openrouter.ai/api/v1",
}
