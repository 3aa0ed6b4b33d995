package llm

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
)

func TestClientConfig(t *testing.T) {
	cfg, err := Config{APIKey: "k", Endpoint: "https://x.openai.azure.com/"}.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, openai.APITypeAzure, cfg.APIType)
	assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, "gpt-4o", cfg.AzureModelMapperFunc("gpt-4o"))

	cfg, err = Config{ADToken: "t", Endpoint: "https://x.openai.azure.com", APIVersion: "2025-01-01"}.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, openai.APITypeAzureAD, cfg.APIType)
	assert.Equal(t, "2025-01-01", cfg.APIVersion)

	cfg, err = Config{Provider: ProviderOpenAI, APIKey: "k", Endpoint: "https://api.openai.com/v1/"}.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)

	_, err = Config{Endpoint: "https://x.openai.azure.com"}.ClientConfig()
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))

	_, err = Config{APIKey: "k"}.ClientConfig()
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
}

func TestAuthHeader(t *testing.T) {
	name, value := Config{APIKey: "k"}.AuthHeader()
	assert.Equal(t, "api-key", name)
	assert.Equal(t, "k", value)

	name, value = Config{ADToken: "t"}.AuthHeader()
	assert.Equal(t, "Authorization", name)
	assert.Equal(t, "Bearer t", value)

	name, value = Config{Provider: ProviderOpenAI, APIKey: "k"}.AuthHeader()
	assert.Equal(t, "Authorization", name)
	assert.Equal(t, "Bearer k", value)
}
