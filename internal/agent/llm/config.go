// Package llm wraps the chat-completions model: single prompts and
// automatic function calling over a tool registry.
package llm

import (
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
)

const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"

	DefaultAPIVersion    = "2024-05-01-preview"
	DefaultMaxAutoInvoke = 5
)

// Config selects the endpoint and credentials of the model.
type Config struct {
	Provider      string
	APIKey        string
	ADToken       string
	Endpoint      string
	Deployment    string
	APIVersion    string
	MaxAutoInvoke int
}

// AuthHeader returns the header name and value that authenticate raw HTTP
// calls against the same service.
func (c Config) AuthHeader() (string, string) {
	if c.IsAzure() && c.APIKey != "" {
		return "api-key", c.APIKey
	}
	if c.IsAzure() {
		return "Authorization", "Bearer " + c.ADToken
	}
	return "Authorization", "Bearer " + c.APIKey
}

// IsAzure reports whether requests use Azure OpenAI routing.
func (c Config) IsAzure() bool {
	return c.Provider == "" || strings.EqualFold(c.Provider, ProviderAzure)
}

// Version returns the Azure api-version to use.
func (c Config) Version() string {
	if c.APIVersion == "" {
		return DefaultAPIVersion
	}
	return c.APIVersion
}

// ClientConfig builds the go-openai client configuration. Azure accepts an
// api key or, failing that, an Entra ID bearer token.
func (c Config) ClientConfig() (openai.ClientConfig, error) {
	if c.Endpoint == "" {
		return openai.ClientConfig{}, apperrors.NewConfigurationError("AZURE_OPENAI_ENDPOINT")
	}

	if !c.IsAzure() {
		if c.APIKey == "" {
			return openai.ClientConfig{}, apperrors.NewConfigurationError("AZURE_OPENAI_API_KEY")
		}
		cfg := openai.DefaultConfig(c.APIKey)
		cfg.BaseURL = strings.TrimRight(c.Endpoint, "/")
		return cfg, nil
	}

	var cfg openai.ClientConfig
	switch {
	case c.APIKey != "":
		cfg = openai.DefaultAzureConfig(c.APIKey, c.Endpoint)
	case c.ADToken != "":
		cfg = openai.DefaultAzureConfig(c.ADToken, c.Endpoint)
		cfg.APIType = openai.APITypeAzureAD
	default:
		return openai.ClientConfig{}, apperrors.NewConfigurationError("AZURE_OPENAI_API_KEY or AZURE_OPENAI_AD_TOKEN")
	}
	cfg.APIVersion = c.Version()
	// deployment names are used verbatim
	cfg.AzureModelMapperFunc = func(model string) string { return model }
	return cfg, nil
}

// NewClient builds a go-openai client for c.
func NewClient(c Config) (*openai.Client, error) {
	cfg, err := c.ClientConfig()
	if err != nil {
		return nil, err
	}
	return openai.NewClientWithConfig(cfg), nil
}
