package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the vault service.
// Environment variables are parsed from the DROPSPOT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage: "auto" picks postgres when a DSN is present, sqlite otherwise.
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/dropspot.db"`

	// Nearby-vault query tuning.
	NearbyRadiusMeters float64 `envconfig:"NEARBY_RADIUS_METERS" default:"20"`
	NearbyLimit        int     `envconfig:"NEARBY_LIMIT" default:"5"`

	// Sessions (Redis)
	RedisAddr         string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string `envconfig:"REDIS_PASSWORD" default:""`
	SessionTTLMinutes int    `envconfig:"SESSION_TTL_MINUTES" default:"10080"`

	// Blob storage (MinIO / S3-compatible)
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	MinioBucket    string `envconfig:"MINIO_BUCKET" default:"dropspot-assets"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	// Asset payload cipher key, hex-encoded 32 bytes.
	PayloadKeyHex string `envconfig:"PAYLOAD_KEY" default:""`

	// Identity provider: "jwt" verifies bearer tokens locally with
	// IdentitySecret; "remote" calls a Magic-style admin API at IdentityURL.
	IdentityMode   string `envconfig:"IDENTITY_MODE" default:"jwt"`
	IdentitySecret string `envconfig:"IDENTITY_SECRET" default:""`
	IdentityURL    string `envconfig:"IDENTITY_URL" default:""`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults validates the driver selection and derives DBDriver when
// set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}
	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	switch c.IdentityMode {
	case "jwt":
		if c.IsProduction() && c.IdentitySecret == "" {
			return fmt.Errorf("IDENTITY_SECRET is required in production")
		}
	case "remote":
		if c.IdentityURL == "" {
			return fmt.Errorf("IDENTITY_URL is required when IDENTITY_MODE=remote")
		}
	default:
		return fmt.Errorf("unsupported IDENTITY_MODE: %s", c.IdentityMode)
	}
	if c.NearbyRadiusMeters <= 0 {
		return fmt.Errorf("NEARBY_RADIUS_METERS must be positive")
	}
	if c.NearbyLimit <= 0 {
		return fmt.Errorf("NEARBY_LIMIT must be positive")
	}
	return nil
}

// New creates a Config by parsing environment variables with the DROPSPOT_
// prefix, e.g. DROPSPOT_HTTP_PORT, DROPSPOT_POSTGRES_DSN.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("DROPSPOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Float64("nearby_radius_m", cfg.NearbyRadiusMeters).
		Int("nearby_limit", cfg.NearbyLimit).
		Str("identity_mode", cfg.IdentityMode).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		DBDriver:                  "sqlite",
		SQLitePath:                "",
		NearbyRadiusMeters:        20,
		NearbyLimit:               5,
		SessionTTLMinutes:         60,
		IdentityMode:              "jwt",
		IdentitySecret:            "test-secret",
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 5,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }
