package config

import (
	"time"
)

// Config represents the complete application configuration. Values are
// layered in this order, later layers winning:
// Layer 1: built-in defaults (see Defaults)
// Layer 2: user config file (~/.config/chwrapper/config.yaml)
// Layer 3: CHWRAPPER_* environment variables
// Layer 4: runtime overrides (command-line flags)
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// APIConfig configures the registry client session.
type APIConfig struct {
	// Key is an explicit access token. When empty the client falls back to
	// the CompaniesHouseKey and COMPANIES_HOUSE_KEY environment variables.
	Key string `mapstructure:"key"`

	BaseURL     string        `mapstructure:"base_url"`
	DocumentURL string        `mapstructure:"document_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`

	// IgnoreStatus seeds the session's persistent ignore set.
	// Accepts a list or a comma separated string ("404,410").
	IgnoreStatus []int `mapstructure:"ignore_status"`

	// RaiseForStatus turns 4xx/5xx responses into errors.
	RaiseForStatus bool `mapstructure:"raise_for_status"`
}

// RateLimitConfig tunes the rate-limited transport.
type RateLimitConfig struct {
	// SafetyMargin is added to every computed suspension.
	SafetyMargin time.Duration `mapstructure:"safety_margin"`

	// RequestsPerMinute enables client-side pacing when positive.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: simple, structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
