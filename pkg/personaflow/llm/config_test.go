package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestModelConfig_Validate tests the supported provider set.
func TestModelConfig_Validate(t *testing.T) {
	valid := ModelConfig{ModelID: "gpt-4o-mini", Provider: ProviderOpenAI}
	assert.NoError(t, valid.Validate())

	empty := ModelConfig{Provider: ProviderOpenAI}
	assert.ErrorIs(t, empty.Validate(), ErrEmptyModelID)

	unknown := ModelConfig{ModelID: "m", Provider: "telepathy"}
	assert.ErrorIs(t, unknown.Validate(), ErrUnsupportedProvider)
}

// TestModelConfig_Validate_AllProviders tests every declared provider passes.
func TestModelConfig_Validate_AllProviders(t *testing.T) {
	providers := []Provider{
		ProviderOpenAI, ProviderAzure, ProviderAWS, ProviderHuggingFace,
		ProviderCohere, ProviderAnthropic, ProviderMistral, ProviderGroq,
		ProviderGrok, ProviderGoogle, ProviderLocal, ProviderOpenRouter,
	}
	for _, p := range providers {
		cfg := ModelConfig{ModelID: "m", Provider: p}
		assert.NoError(t, cfg.Validate(), string(p))
	}
}

// TestModelConfig_Update tests the allow-listed update path.
func TestModelConfig_Update(t *testing.T) {
	cfg := ModelConfig{ModelID: "gpt-4o-mini", Provider: ProviderOpenAI, Temperature: 0.7}

	next, err := cfg.Update(map[string]any{
		"model_id":    "mistral-small-latest",
		"provider":    "mistral",
		"temperature": 0.2,
		"max_tokens":  512,
	})

	require.NoError(t, err)
	assert.Equal(t, "mistral-small-latest", next.ModelID)
	assert.Equal(t, ProviderMistral, next.Provider)
	assert.InDelta(t, 0.2, next.Temperature, 1e-9)
	assert.Equal(t, 512, next.MaxTokens)

	// The receiver is unchanged.
	assert.Equal(t, "gpt-4o-mini", cfg.ModelID)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
}

// TestModelConfig_Update_UnknownField tests rejection outside the allow-list.
func TestModelConfig_Update_UnknownField(t *testing.T) {
	cfg := ModelConfig{ModelID: "m", Provider: ProviderOpenAI}

	_, err := cfg.Update(map[string]any{"top_p": 0.9})

	assert.ErrorIs(t, err, ErrUnknownField)
}

// TestModelConfig_Update_InvalidValue tests type checking of update values.
func TestModelConfig_Update_InvalidValue(t *testing.T) {
	cfg := ModelConfig{ModelID: "m", Provider: ProviderOpenAI}

	_, err := cfg.Update(map[string]any{"max_tokens": "lots"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

// TestModelConfig_Update_InvalidResult tests that updates cannot produce
// an invalid config.
func TestModelConfig_Update_InvalidResult(t *testing.T) {
	cfg := ModelConfig{ModelID: "m", Provider: ProviderOpenAI}

	_, err := cfg.Update(map[string]any{"provider": "telepathy"})

	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
