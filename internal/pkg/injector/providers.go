package injector

import (
	"github.com/google/wire"

	"github.com/lk2023060901/agent-gateway/internal/agent/biz"
	agentdata "github.com/lk2023060901/agent-gateway/internal/agent/data"
	"github.com/lk2023060901/agent-gateway/internal/agent/llm"
	"github.com/lk2023060901/agent-gateway/internal/agent/service"
	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
	"github.com/lk2023060901/agent-gateway/internal/conf"
	"github.com/lk2023060901/agent-gateway/internal/data"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agent-gateway/internal/prompts"
	"github.com/lk2023060901/agent-gateway/internal/server"
	"github.com/lk2023060901/agent-gateway/internal/weather"
)

// ProviderSet is the Wire provider set for all dependencies
var ProviderSet = wire.NewSet(
	// Data layer
	dataProviderSet,

	// Model and tools
	modelProviderSet,

	// Repositories
	repositoryProviderSet,

	// Use cases
	useCaseProviderSet,

	// HTTP services
	service.NewAgentService,
	wire.Bind(new(service.ChatRunner), new(*biz.ChatUseCase)),
	wire.Bind(new(service.WeatherRunner), new(*biz.WeatherUseCase)),

	// Servers
	serverProviderSet,
)

var dataProviderSet = wire.NewSet(
	data.NewData,
)

var modelProviderSet = wire.NewSet(
	provideKernel,
	wire.Bind(new(biz.Model), new(*llm.Kernel)),
	provideWeatherPlugin,
	provideToolRegistry,
)

var repositoryProviderSet = wire.NewSet(
	provideAgentPlatform,
	provideBlobStore,
	provideHistoryStore,
	provideTokenCounter,
	providePromptSource,
)

var useCaseProviderSet = wire.NewSet(
	provideChatUseCase,
	provideWeatherUseCase,
)

var serverProviderSet = wire.NewSet(
	server.NewHTTPServer,
	server.NewGRPCServer,
	newApp,
)

// Model providers

func modelConfig(config *conf.Config) llm.Config {
	m := config.Model
	return llm.Config{
		Provider:      m.Provider,
		APIKey:        m.APIKey,
		ADToken:       m.ADToken,
		Endpoint:      m.Endpoint,
		Deployment:    m.Deployment,
		APIVersion:    m.APIVersion,
		MaxAutoInvoke: m.MaxAutoInvoke,
	}
}

// agentConfig reuses the model credentials against the agent endpoint.
func agentConfig(config *conf.Config) llm.Config {
	c := modelConfig(config)
	c.Endpoint = config.AgentEndpoint()
	if config.Agent.APIVersion != "" {
		c.APIVersion = config.Agent.APIVersion
	}
	return c
}

func provideKernel(config *conf.Config, log *logger.Logger) (*llm.Kernel, error) {
	cfg := modelConfig(config)
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewKernel(client, cfg, log), nil
}

func provideWeatherPlugin(config *conf.Config, kernel *llm.Kernel, log *logger.Logger) *weather.Plugin {
	wc := weather.Config{
		BaseURL:   config.Weather.BaseURL,
		UserAgent: config.Weather.UserAgent,
		Timeout:   config.Weather.Timeout,
	}
	return weather.NewPlugin(
		weather.NewGeocoder(kernel),
		weather.NewClient(wc, weather.NewHTTPClient(wc.Timeout)),
		log,
	)
}

func provideToolRegistry(plugin *weather.Plugin) (*tools.Registry, error) {
	return plugin.Registry()
}

// Repository providers

func provideAgentPlatform(config *conf.Config, d *data.Data, log *logger.Logger) (biz.AgentPlatform, error) {
	return agentdata.NewAgentPlatform(agentConfig(config), d.HTTPClient, agentdata.PlatformConfig{
		PollInterval: config.Agent.PollInterval,
		PollTimeout:  config.Agent.PollTimeout,
	}, log)
}

// provideBlobStore returns a nil interface when blob storage is disabled.
func provideBlobStore(d *data.Data) biz.BlobStore {
	if d.MinIOClient == nil {
		return nil
	}
	return agentdata.NewMinIOBlobStore(d.MinIOClient)
}

func provideHistoryStore(config *conf.Config, d *data.Data) biz.HistoryStore {
	if d.RedisClient == nil {
		return agentdata.NewMemoryHistory(config.History.TTL)
	}
	return agentdata.NewRedisHistory(d.RedisClient, config.History.TTL)
}

func provideTokenCounter(config *conf.Config, log *logger.Logger) biz.TokenCounter {
	return agentdata.NewTokenCounter(config.History.Encoding, log)
}

func providePromptSource(config *conf.Config) biz.PromptSource {
	return prompts.NewFileService(prompts.DefaultConfig(config.Prompts.Dir))
}

// Use case providers

func provideChatUseCase(
	platform biz.AgentPlatform,
	blob biz.BlobStore,
	registry *tools.Registry,
	config *conf.Config,
	log *logger.Logger,
) *biz.ChatUseCase {
	return biz.NewChatUseCase(platform, blob, registry, biz.ChatConfig{
		AgentID:           config.Agent.ID,
		VectorStorePrefix: config.Agent.VectorStorePrefix,
	}, log)
}

func provideWeatherUseCase(
	model biz.Model,
	registry *tools.Registry,
	promptSource biz.PromptSource,
	history biz.HistoryStore,
	tokens biz.TokenCounter,
	config *conf.Config,
	log *logger.Logger,
) *biz.WeatherUseCase {
	return biz.NewWeatherUseCase(model, registry, promptSource, history, tokens, biz.WeatherConfig{
		MaxHistoryTokens: config.History.MaxTokens,
	}, log)
}
