// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Rate limiter backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	// Server
	Port     int        `env:"PORT" envDefault:"8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Storage
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	RedisAddr     string `env:"REDIS_ADDR"`

	// Rate limiting
	RateLimitBackend string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	RateLimitMax     int           `env:"RATE_LIMIT_MAX" envDefault:"200"`
	TrustProxy       bool          `env:"TRUST_PROXY" envDefault:"false"`

	// Assistant
	ContextWindow int    `env:"CONTEXT_WINDOW" envDefault:"20"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMax <= 0 {
		return fmt.Errorf("rate limit window and max must be positive")
	}
	if c.ContextWindow <= 0 {
		return fmt.Errorf("CONTEXT_WINDOW must be positive")
	}
	return nil
}

// Addr returns the address the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
