package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Store driver identifiers accepted by STORE_DRIVER.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Backend kind identifiers accepted by BACKEND.
const (
	BackendNone     = "none"
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// Config holds the runtime configuration for the session service.
// All values come from SESSION_STORE_-prefixed environment variables.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	HTTPPort    int         `envconfig:"HTTP_PORT" default:"8080"`
	DebugMode   bool        `envconfig:"DEBUG_MODE" default:"false"`

	// Store selection.
	StoreDriver   string        `envconfig:"STORE_DRIVER" default:"redis"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	OpTimeout     time.Duration `envconfig:"OP_TIMEOUT" default:"3s"`

	// Business backend used to resolve client records on cache misses.
	Backend        string        `envconfig:"BACKEND" default:"none"`
	BackendBaseURL string        `envconfig:"BACKEND_BASE_URL" default:""`
	BackendToken   string        `envconfig:"BACKEND_TOKEN" default:""`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"5s"`
	PostgresDSN    string        `envconfig:"POSTGRES_DSN" default:""`

	// Per-class TTL overrides. Zero values fall back to the built-in defaults.
	DialogTTL      time.Duration `envconfig:"DIALOG_TTL" default:"24h"`
	ClientCacheTTL time.Duration `envconfig:"CLIENT_CACHE_TTL" default:"1h"`
	PreferencesTTL time.Duration `envconfig:"PREFERENCES_TTL" default:"2160h"`
	MessagesTTL    time.Duration `envconfig:"MESSAGES_TTL" default:"168h"`
	FullContextTTL time.Duration `envconfig:"FULL_CONTEXT_TTL" default:"5m"`
	ProcessingTTL  time.Duration `envconfig:"PROCESSING_TTL" default:"2m"`
}

// New loads configuration from the environment.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SESSION_STORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("store_driver", cfg.StoreDriver).
		Str("backend", cfg.Backend).
		Int("http_port", cfg.HTTPPort).
		Msg("configuration loaded")
	return &cfg, nil
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unsupported store driver: %q", c.StoreDriver)
	}
	switch c.Backend {
	case BackendNone:
	case BackendREST:
		if c.BackendBaseURL == "" {
			return fmt.Errorf("BACKEND_BASE_URL is required for the rest backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported backend: %q", c.Backend)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTPPort)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// NewForTesting returns a configuration suitable for unit tests:
// in-memory store, no backend, short timeouts.
func NewForTesting() *Config {
	return &Config{
		Environment:    EnvDevelopment,
		HTTPPort:       8080,
		StoreDriver:    DriverMemory,
		Backend:        BackendNone,
		OpTimeout:      time.Second,
		BackendTimeout: time.Second,
		DialogTTL:      24 * time.Hour,
		ClientCacheTTL: time.Hour,
		PreferencesTTL: 90 * 24 * time.Hour,
		MessagesTTL:    7 * 24 * time.Hour,
		FullContextTTL: 5 * time.Minute,
		ProcessingTTL:  2 * time.Minute,
	}
}
