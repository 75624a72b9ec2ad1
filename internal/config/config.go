// Package config defines the global configuration structure for the
// rainbowatch service. Configuration is loaded once at process start and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the process to exit
// immediately on startup (fail fast).
package config

import (
	"time"

	"rainbowatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the rainbowatch service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"rainbowatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Dispatch DispatchConfig
	Push     PushConfig
	Weather  WeatherConfig
	Archive  ArchiveConfig
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// CacheConfig controls the read-through response cache.
type CacheConfig struct {
	Enabled         bool          `envconfig:"CACHE_ENABLED" default:"true"`
	DefaultTTL      time.Duration `envconfig:"CACHE_DEFAULT_TTL" default:"5m"`
	CleanupInterval time.Duration `envconfig:"CACHE_CLEANUP_INTERVAL" default:"10m"`
}

// DispatchConfig centralizes the alert fan-out behavior. The radii differ
// because predictions are lower-confidence, broader-interest events while
// sighting alerts are hyper-local.
type DispatchConfig struct {
	SightingRadiusKm     float64       `envconfig:"DISPATCH_SIGHTING_RADIUS_KM" default:"10"`
	PredictionRadiusKm   float64       `envconfig:"DISPATCH_PREDICTION_RADIUS_KM" default:"15"`
	ProbabilityThreshold int           `envconfig:"DISPATCH_PROBABILITY_THRESHOLD" default:"70" validate:"min=0,max=100"`
	Concurrency          int           `envconfig:"DISPATCH_CONCURRENCY" default:"8" validate:"min=1"`
	DeliveryTimeout      time.Duration `envconfig:"DISPATCH_DELIVERY_TIMEOUT" default:"3s"`
}

// PushConfig holds the push provider endpoint and throttling parameters.
type PushConfig struct {
	BaseURL       string       `envconfig:"PUSH_BASE_URL" validate:"omitempty,url"`
	APIKey        SecretString `envconfig:"PUSH_API_KEY"`
	RatePerSecond float64      `envconfig:"PUSH_RATE_PER_SECOND" default:"50"`
	Burst         int          `envconfig:"PUSH_BURST" default:"10"`
}

// WeatherConfig holds the observation source endpoint and polling parameters.
// Sites is a semicolon-separated list of "lat,lon" pairs scored on each poll.
type WeatherConfig struct {
	BaseURL      string        `envconfig:"WEATHER_BASE_URL" validate:"omitempty,url"`
	APIKey       SecretString  `envconfig:"WEATHER_API_KEY"`
	PollInterval time.Duration `envconfig:"WEATHER_POLL_INTERVAL" default:"15m"`
	Sites        string        `envconfig:"WEATHER_SITES" default:"36.0687,137.9646"`
}

// ArchiveConfig controls the notification log archiver.
type ArchiveConfig struct {
	Dir    string        `envconfig:"ARCHIVE_DIR" default:"./archive"`
	MaxAge time.Duration `envconfig:"ARCHIVE_MAX_AGE" default:"2160h"` // 90 days
}
