// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	FrontendURL string   `env:"FRONTEND_URL"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	Engine EngineConfig
	Store  StoreConfig
	Log    LogConfig

	MockEnginePort string `env:"MOCK_ENGINE_PORT" envDefault:"8001"`
}

// EngineConfig configures the AI engine client and health tracking.
type EngineConfig struct {
	URL            string        `env:"AI_ENGINE_URL" envDefault:"http://localhost:8001"`
	RequestTimeout time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"30s"`
	HealthTimeout  time.Duration `env:"AI_HEALTH_TIMEOUT" envDefault:"3s"`
	HealthInterval time.Duration `env:"AI_HEALTH_INTERVAL" envDefault:"30s"`
}

// StoreConfig selects and configures the chat history backend.
type StoreConfig struct {
	Driver        string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DBPath        string `env:"DB_PATH" envDefault:"./data/aigateway.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.CORSOrigins) == 0 && cfg.FrontendURL != "" {
		cfg.CORSOrigins = []string{cfg.FrontendURL}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	u, err := url.Parse(c.Engine.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("AI_ENGINE_URL must be an absolute URL, got %q", c.Engine.URL)
	}
	if c.Engine.RequestTimeout <= 0 {
		return errors.New("AI_REQUEST_TIMEOUT must be > 0")
	}
	if c.Engine.HealthTimeout <= 0 {
		return errors.New("AI_HEALTH_TIMEOUT must be > 0")
	}
	if c.Engine.HealthInterval <= 0 {
		return errors.New("AI_HEALTH_INTERVAL must be > 0")
	}
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.DBPath == "" {
			return errors.New("DB_PATH cannot be empty")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("REDIS_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreSQLite, StoreRedis, c.Store.Driver)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins, allowing any origin in development
// when none are configured.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSOrigins) > 0 {
		return c.CORSOrigins
	}
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return nil
}
