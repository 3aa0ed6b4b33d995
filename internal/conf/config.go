package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agent-gateway/internal/pkg/minio"
	"github.com/lk2023060901/agent-gateway/internal/pkg/redis"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Model   ModelConfig   `mapstructure:"model"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Weather WeatherConfig `mapstructure:"weather"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Redis   RedisConfig   `mapstructure:"redis"`
	History HistoryConfig `mapstructure:"history"`
	Prompts PromptsConfig `mapstructure:"prompts"`
	Log     logger.Config `mapstructure:"log"`
}

type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	GRPCPort int    `mapstructure:"grpc_port"`
	Mode     string `mapstructure:"mode"`
}

// ModelConfig points at the chat-completions deployment used for the
// weather workflows and geocoding.
type ModelConfig struct {
	Provider      string `mapstructure:"provider"` // azure or openai
	APIKey        string `mapstructure:"api_key"`
	ADToken       string `mapstructure:"ad_token"`
	Endpoint      string `mapstructure:"endpoint"`
	Deployment    string `mapstructure:"deployment"`
	APIVersion    string `mapstructure:"api_version"`
	MaxAutoInvoke int    `mapstructure:"max_auto_invoke"`
}

// AgentConfig points at the hosted agent (assistant) used by /agent/chat.
type AgentConfig struct {
	ID                string        `mapstructure:"id"`
	Endpoint          string        `mapstructure:"endpoint"`
	APIVersion        string        `mapstructure:"api_version"`
	VectorStorePrefix string        `mapstructure:"vector_store_prefix"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout"`
}

type WeatherConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type BlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HistoryConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Encoding  string        `mapstructure:"encoding"`
}

// PromptsConfig locates the prompt templates on disk.
type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// envBindings lists every recognized environment variable per key. The
// first name that is set wins.
var envBindings = map[string][]string{
	"model.api_key":          {"AZURE_OPENAI_API_KEY"},
	"model.ad_token":         {"AZURE_OPENAI_AD_TOKEN"},
	"model.endpoint":         {"AZURE_OPENAI_ENDPOINT"},
	"model.deployment":       {"AZURE_OPENAI_CHAT_DEPLOYMENT_NAME"},
	"model.api_version":      {"AZURE_OPENAI_API_VERSION"},
	"agent.id":               {"AZURE_AI_AGENT_ID"},
	"agent.endpoint":         {"AZURE_AI_AGENT_ENDPOINT"},
	"blob.connection_string": {"BLOB_CONNECTION_STRING", "AZURE_BLOB_CONNECTION_STRING"},
	"blob.container":         {"BLOB_CONTAINER_NAME", "AZURE_BLOB_CONTAINER_NAME"},
	"redis.addr":             {"REDIS_ADDR"},
	"redis.password":         {"REDIS_PASSWORD"},
	"server.port":            {"PORT"},
	"server.grpc_port":       {"GRPC_PORT"},
	"log.level":              {"LOG_LEVEL"},
	"prompts.dir":            {"PROMPTS_DIR"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.mode", "release")

	v.SetDefault("model.provider", "azure")
	v.SetDefault("model.api_version", "2024-05-01-preview")
	v.SetDefault("model.max_auto_invoke", 5)

	v.SetDefault("agent.api_version", "2024-05-01-preview")
	v.SetDefault("agent.vector_store_prefix", "chat")
	v.SetDefault("agent.poll_interval", time.Second)
	v.SetDefault("agent.poll_timeout", 2*time.Minute)

	v.SetDefault("weather.base_url", "https://api.weather.gov")
	v.SetDefault("weather.user_agent", "app")
	v.SetDefault("weather.timeout", 30*time.Second)

	v.SetDefault("history.ttl", 24*time.Hour)
	v.SetDefault("history.max_tokens", 3000)
	v.SetDefault("history.encoding", "cl100k_base")

	v.SetDefault("prompts.dir", "./prompts")

	d := logger.DefaultConfig()
	v.SetDefault("log.level", d.Level)
	v.SetDefault("log.format", d.Format)
	v.SetDefault("log.output", d.Output)
	v.SetDefault("log.enable_caller", d.EnableCaller)
	v.SetDefault("log.enable_stacktrace", d.EnableStacktrace)
	v.SetDefault("log.file.filename", d.File.Filename)
	v.SetDefault("log.file.max_size", d.File.MaxSize)
	v.SetDefault("log.file.max_age", d.File.MaxAge)
	v.SetDefault("log.file.max_backups", d.File.MaxBackups)
	v.SetDefault("log.file.compress", d.File.Compress)
}

// LoadConfig reads .env (when present), the optional yaml file at path and
// the process environment, in increasing order of precedence.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate enforces the settings without which the service cannot start.
func (c *Config) Validate() error {
	if c.Model.Endpoint == "" {
		return apperrors.NewConfigurationError("AZURE_OPENAI_ENDPOINT")
	}
	if c.Model.Deployment == "" {
		return apperrors.NewConfigurationError("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME")
	}
	if c.Blob.ConnectionString != "" && c.Blob.Container == "" {
		return apperrors.NewConfigurationError("BLOB_CONTAINER_NAME")
	}
	if err := c.Log.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfiguration, "invalid log configuration")
	}
	return nil
}

// AgentEndpoint falls back to the model endpoint when no dedicated agent
// endpoint is configured.
func (c *Config) AgentEndpoint() string {
	if c.Agent.Endpoint != "" {
		return c.Agent.Endpoint
	}
	return c.Model.Endpoint
}

// BlobEnabled reports whether file attachments can be served.
func (c *Config) BlobEnabled() bool {
	return c.Blob.ConnectionString != ""
}

// MinIO converts the blob connection string into a minio client config.
func (c *BlobConfig) MinIO() (*minio.Config, error) {
	cfg, err := minio.ParseConnectionString(c.ConnectionString)
	if err != nil {
		return nil, err
	}
	cfg.Bucket = c.Container
	return cfg, nil
}

// RedisEnabled reports whether a history cache server is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

// RedisClient converts the redis section into a client config.
func (c *RedisConfig) RedisClient() *redis.Config {
	cfg := redis.DefaultConfig()
	cfg.Addr = c.Addr
	cfg.Password = c.Password
	cfg.DB = c.DB
	return cfg
}
