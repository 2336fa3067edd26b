package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/vanguard/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scorer    ScorerConfig    `mapstructure:"scorer"`
	Feed      FeedConfig      `mapstructure:"feed"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Notifiers NotifiersConfig `mapstructure:"notifiers"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ScorerConfig tunes candidate eligibility scoring.
type ScorerConfig struct {
	SweetSpotMin     float64 `mapstructure:"sweet_spot_min"` // |change%| lower bound of the volatility band
	SweetSpotMax     float64 `mapstructure:"sweet_spot_max"`
	VolumeScale      float64 `mapstructure:"volume_scale"`
	SessionStartHour int     `mapstructure:"session_start_hour"` // UTC
	SessionEndHour   int     `mapstructure:"session_end_hour"`
	MinScore         float64 `mapstructure:"min_score"`
}

type FeedConfig struct {
	Provider string        `mapstructure:"provider"` // "binance" or "static"
	BaseURL  string        `mapstructure:"base_url"`
	Symbols  []string      `mapstructure:"symbols"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Ollama   OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the key/value backend for engine state.
type StorageConfig struct {
	Type            string        `mapstructure:"type"` // "memory", "localfs", "s3" or "redis"
	Path            string        `mapstructure:"path"` // For localfs
	Key             string        `mapstructure:"key"`
	MinSaveInterval time.Duration `mapstructure:"min_save_interval"`
	IOTimeout       time.Duration `mapstructure:"io_timeout"`
	S3              S3Config      `mapstructure:"s3"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// NotifiersConfig holds the consensus sinks.
type NotifiersConfig struct {
	Routing RouterConfig  `mapstructure:"routing"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

// RouterConfig filters consensus signals before they reach the sinks.
type RouterConfig struct {
	MinConfidence  float64       `mapstructure:"min_confidence"`
	Cooldown       time.Duration `mapstructure:"cooldown"` // per symbol and direction; 0 disables
	EnabledActions []core.Action `mapstructure:"enabled_actions"`
}

type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("VANGUARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Engine: DefaultEngineConfig(),
		Scorer: ScorerConfig{
			SweetSpotMin:     0.2,
			SweetSpotMax:     1.5,
			VolumeScale:      1_000_000,
			SessionStartHour: 7,
			SessionEndHour:   21,
			MinScore:         20,
		},
		Feed: FeedConfig{
			Provider: "static",
			Timeout:  10 * time.Second,
		},
		Storage: StorageConfig{
			Type:            "memory",
			Key:             "vanguard/state.json",
			MinSaveInterval: 30 * time.Second,
			IOTimeout:       5 * time.Second,
		},
		Notifiers: NotifiersConfig{
			Routing: RouterConfig{
				Cooldown: 5 * time.Minute,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if err := c.Engine.Validate(); err != nil {
		return err
	}

	if c.Scorer.SweetSpotMin < 0 || c.Scorer.SweetSpotMax <= c.Scorer.SweetSpotMin {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("scorer sweet spot must satisfy 0 <= min < max, got [%f, %f]",
				c.Scorer.SweetSpotMin, c.Scorer.SweetSpotMax))
	}
	if c.Scorer.SessionStartHour < 0 || c.Scorer.SessionStartHour > 23 ||
		c.Scorer.SessionEndHour < 0 || c.Scorer.SessionEndHour > 24 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("session hours must be within a day, got %d-%d",
				c.Scorer.SessionStartHour, c.Scorer.SessionEndHour))
	}

	switch c.Feed.Provider {
	case "static", "binance":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown feed provider: %s", c.Feed.Provider))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		}
	}

	switch c.Storage.Type {
	case "memory":
	case "localfs":
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage path required when type is localfs"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when type is s3"))
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("redis addr required when type is redis"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage type: %s", c.Storage.Type))
	}

	if r := c.Notifiers.Routing; r.MinConfidence < 0 || r.MinConfidence > 100 || r.Cooldown < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("routing needs min_confidence in [0,100] and a non-negative cooldown"))
	}
	for _, a := range c.Notifiers.Routing.EnabledActions {
		if a != core.ActionBuy && a != core.ActionSell {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown routing action: %s", a))
		}
	}

	if c.Notifiers.Webhook.Enabled && c.Notifiers.Webhook.URL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("webhook url required when webhook notifier is enabled"))
	}
	if c.Notifiers.Kafka.Enabled && (len(c.Notifiers.Kafka.Brokers) == 0 || c.Notifiers.Kafka.Topic == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("kafka brokers and topic required when kafka notifier is enabled"))
	}

	return nil
}
