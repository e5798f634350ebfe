package llm

import (
	"errors"
	"fmt"
)

// Provider identifies a supported model provider.
type Provider string

// Supported providers.
const (
	ProviderOpenAI      Provider = "openai"
	ProviderAzure       Provider = "azure"
	ProviderAWS         Provider = "aws"
	ProviderHuggingFace Provider = "huggingface"
	ProviderCohere      Provider = "cohere"
	ProviderAnthropic   Provider = "anthropic"
	ProviderMistral     Provider = "mistral"
	ProviderGroq        Provider = "groq"
	ProviderGrok        Provider = "grok"
	ProviderGoogle      Provider = "google"
	ProviderLocal       Provider = "local"
	ProviderOpenRouter  Provider = "openrouter"
)

// supportedProviders is the closed set accepted by Bind.
var supportedProviders = map[Provider]bool{
	ProviderOpenAI:      true,
	ProviderAzure:       true,
	ProviderAWS:         true,
	ProviderHuggingFace: true,
	ProviderCohere:      true,
	ProviderAnthropic:   true,
	ProviderMistral:     true,
	ProviderGroq:        true,
	ProviderGrok:        true,
	ProviderGoogle:      true,
	ProviderLocal:       true,
	ProviderOpenRouter:  true,
}

// Sentinel errors for configuration validation.
var (
	// ErrUnsupportedProvider indicates the provider is not in the supported set.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrEmptyModelID indicates the model identifier was left empty.
	ErrEmptyModelID = errors.New("model id cannot be empty")

	// ErrUnknownField indicates an Update referenced a field outside the allow-list.
	ErrUnknownField = errors.New("unknown configuration field")
)

// ModelConfig describes the model a pipeline is bound to.
// A ModelConfig is immutable once bound; use Update to derive a new value.
type ModelConfig struct {
	ModelID     string   `json:"model_id" yaml:"model_id"`
	Provider    Provider `json:"provider" yaml:"provider"`
	Temperature float64  `json:"temperature" yaml:"temperature"`
	MaxTokens   int      `json:"max_tokens" yaml:"max_tokens"`
	APIKey      string   `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url"`
}

// Validate checks the config against the supported provider set.
func (c ModelConfig) Validate() error {
	if c.ModelID == "" {
		return ErrEmptyModelID
	}
	if !supportedProviders[c.Provider] {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, c.Provider)
	}
	return nil
}

// Update returns a copy of the config with the given fields changed.
// Field names form a closed allow-list mirroring the struct; an unknown
// field is a configuration error, never a silent no-op.
func (c ModelConfig) Update(fields map[string]any) (ModelConfig, error) {
	next := c
	for name, value := range fields {
		var ok bool
		switch name {
		case "model_id":
			next.ModelID, ok = value.(string)
		case "provider":
			switch v := value.(type) {
			case Provider:
				next.Provider, ok = v, true
			case string:
				next.Provider, ok = Provider(v), true
			}
		case "temperature":
			next.Temperature, ok = toFloat(value)
		case "max_tokens":
			next.MaxTokens, ok = toInt(value)
		case "api_key":
			next.APIKey, ok = value.(string)
		case "base_url":
			next.BaseURL, ok = value.(string)
		default:
			return c, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		if !ok {
			return c, fmt.Errorf("invalid value for configuration field %q: %v", name, value)
		}
	}
	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val == float64(int(val)) {
			return int(val), true
		}
	}
	return 0, false
}
