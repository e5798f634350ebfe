package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBind_OpenAICompatProviders tests binding the HTTP-compatible providers.
func TestBind_OpenAICompatProviders(t *testing.T) {
	for _, p := range []Provider{ProviderOpenAI, ProviderMistral, ProviderGroq, ProviderOpenRouter} {
		client, err := Bind(ModelConfig{ModelID: "m", Provider: p, APIKey: "k"})

		require.NoError(t, err, string(p))
		assert.IsType(t, &OpenAICompat{}, client)
	}
}

// TestBind_Google tests binding the Gemini client.
func TestBind_Google(t *testing.T) {
	client, err := Bind(ModelConfig{ModelID: "gemini-2.0-flash", Provider: ProviderGoogle, APIKey: "k"})

	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, client)
}

// TestBind_GoogleRequiresAPIKey tests the Gemini key requirement.
func TestBind_GoogleRequiresAPIKey(t *testing.T) {
	_, err := Bind(ModelConfig{ModelID: "gemini-2.0-flash", Provider: ProviderGoogle})

	assert.Error(t, err)
}

// TestBind_InvalidConfig tests that validation runs before binding.
func TestBind_InvalidConfig(t *testing.T) {
	_, err := Bind(ModelConfig{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrEmptyModelID)

	_, err = Bind(ModelConfig{ModelID: "m", Provider: "telepathy"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

// TestDefaultBaseURLs tests that gateway providers have endpoints and
// self-hosted ones do not.
func TestDefaultBaseURLs(t *testing.T) {
	assert.NotEmpty(t, defaultBaseURLs[ProviderOpenAI])
	assert.NotEmpty(t, defaultBaseURLs[ProviderOpenRouter])
	assert.Empty(t, defaultBaseURLs[ProviderAzure])
	assert.Empty(t, defaultBaseURLs[ProviderAWS])
	assert.Empty(t, defaultBaseURLs[ProviderLocal])
}
