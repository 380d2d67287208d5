package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends selectable with DATABASE_TYPE
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMySQL    = "mysql"
	StorageBolt     = "bbolt"
	StorageMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	ServerPort string `env:"PORT" envDefault:"8080"`

	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	DatabasePath string `env:"DB_PATH" envDefault:"./babyofficehours.db"`
	DatabaseURL  string `env:"DATABASE_URL"`
	BoltPath     string `env:"BOLT_PATH" envDefault:"./babyofficehours.bolt"`

	// Empty keeps realtime notifications inside the process
	RedisURL string `env:"REDIS_URL"`

	JWTSigningKey string        `env:"JWT_SIGNING_KEY"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"720h"`

	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESFromName  string `env:"SES_FROM_NAME" envDefault:"Baby Office Hours"`
	AppBaseURL   string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"DEBUG" envDefault:"false"`
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks combinations that env tags cannot express
func (c *Config) Validate() error {
	c.DatabaseType = strings.ToLower(c.DatabaseType)
	switch c.DatabaseType {
	case StorageSQLite, StorageBolt, StorageMemory:
	case StoragePostgres, StorageMySQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported DATABASE_TYPE: %s", c.DatabaseType)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// SQLBacked reports whether the configured store lives in a SQL database
func (c *Config) SQLBacked() bool {
	switch c.DatabaseType {
	case StorageSQLite, StoragePostgres, StorageMySQL:
		return true
	}
	return false
}
