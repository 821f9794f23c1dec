// Package config loads hookpubsub settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/limiter"
	"github.com/toolink/hookpubsub/poll"
)

// Environment variables read by FromEnv and Load.
const (
	EnvConfigPath = "HOOKPUBSUB_CONFIG"
	EnvAPIKey     = "HOOKDECK_API_KEY"
	EnvBaseURL    = "HOOKPUBSUB_BASE_URL"
	EnvLogLevel   = "HOOKPUBSUB_LOG_LEVEL"
	EnvRedisAddr  = "HOOKPUBSUB_REDIS_ADDR"
)

// Config is the full client configuration.
type Config struct {
	APIKey               string         `yaml:"api_key"`
	BaseURL              string         `yaml:"base_url"`
	Timeout              time.Duration  `yaml:"timeout"`
	LogLevel             string         `yaml:"log_level"`
	PublishAuth          PublishAuth    `yaml:"publish_auth"`
	Poll                 PollConfig     `yaml:"poll"`
	HydrationConcurrency int            `yaml:"hydration_concurrency"`
	RateLimit            limiter.Config `yaml:"rate_limit"`
	Redis                RedisConfig    `yaml:"redis"`
}

// PublishAuth is the inbound verification enforced on channels.
// An empty Type disables channel issuing.
type PublishAuth struct {
	Type      string `yaml:"type"`
	HeaderKey string `yaml:"header_key"`
	APIKey    string `yaml:"api_key"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// PollConfig sets the default budget of wait operations.
type PollConfig struct {
	Ticks    int           `yaml:"ticks"`
	Interval time.Duration `yaml:"interval"`
}

// RedisConfig is used when the rate limiter stores its buckets in redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the built-in configuration without credentials.
func Default() Config {
	return Config{
		BaseURL:              backend.DefaultBaseURL,
		Timeout:              backend.DefaultTimeout,
		LogLevel:             zerolog.InfoLevel.String(),
		Poll:                 PollConfig{Ticks: poll.DefaultTicks, Interval: poll.DefaultInterval},
		HydrationConcurrency: 4,
		RateLimit:            limiter.DefaultConfig(),
		Redis:                RedisConfig{Addr: "localhost:6379"},
	}
}

// FromEnv returns Default with environment overrides applied.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// Load reads the YAML file at path over Default and applies environment
// overrides. An empty path falls back to HOOKPUBSUB_CONFIG; when both are
// empty only the defaults and the environment are used.
func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		c.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		c.Redis.Addr = v
	}
}

// Validate checks the configuration and prepares the rate limit rules.
// An empty APIKey is accepted here; it is required when the backend client is built.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >=0")
	}
	if c.Poll.Ticks < 0 || c.Poll.Interval < 0 {
		return fmt.Errorf("poll ticks and interval must be >=0")
	}
	if c.HydrationConcurrency < 0 {
		return fmt.Errorf("hydration_concurrency must be >=0")
	}
	switch c.PublishAuth.Type {
	case "":
	case auth.KindAPIKey:
		if c.PublishAuth.APIKey == "" {
			return fmt.Errorf("publish_auth: api_key is required for %s", auth.KindAPIKey)
		}
	case auth.KindBasicAuth:
		if c.PublishAuth.Username == "" {
			return fmt.Errorf("publish_auth: username is required for %s", auth.KindBasicAuth)
		}
	default:
		return fmt.Errorf("publish_auth: unsupported type %q", c.PublishAuth.Type)
	}
	if err := c.RateLimit.ValidateAndPrepare(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if c.RateLimit.StorageType == limiter.StorageRedis && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis addr is required for redis rate limit storage")
	}
	return nil
}

// Level parses LogLevel. An empty value means info.
func (c Config) Level() (zerolog.Level, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Publish returns the configured inbound verification, or nil when none is set.
func (c Config) Publish() *auth.VerificationConfig {
	switch c.PublishAuth.Type {
	case auth.KindAPIKey:
		return auth.APIKey(c.PublishAuth.HeaderKey, c.PublishAuth.APIKey)
	case auth.KindBasicAuth:
		return auth.BasicAuth(c.PublishAuth.Username, c.PublishAuth.Password)
	default:
		return nil
	}
}

// PollOptions converts Poll to poll.Options.
func (c Config) PollOptions() poll.Options {
	return poll.Options{Ticks: c.Poll.Ticks, Interval: c.Poll.Interval}
}
