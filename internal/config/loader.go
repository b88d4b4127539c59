// Package config provides centralized configuration management for chwrapper.
//
// Defaults, the user config file and command-line flags come through viper.
// CHWRAPPER_* environment variables are mapped explicitly with
// gofulmen/config so that nested keys such as api.base_url have stable names.
package config

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/chwrapper/chwrapper/internal/appid"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Defaults returns the built-in configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"api": map[string]any{
			"key":              "",
			"base_url":         companieshouse.DefaultBaseURL,
			"document_url":     companieshouse.DefaultDocumentURL,
			"timeout":          companieshouse.DefaultTimeout.String(),
			"user_agent":       companieshouse.ProductToken(),
			"ignore_status":    []int{},
			"raise_for_status": true,
		},
		"rate_limit": map[string]any{
			"safety_margin":       companieshouse.DefaultSafetyMargin.String(),
			"requests_per_minute": 0,
			"burst":               companieshouse.DefaultPacerBurst,
		},
		"server": map[string]any{
			"host":             "localhost",
			"port":             8080,
			"read_timeout":     "30s",
			"write_timeout":    "5m",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "simple",
		},
		"metrics": map[string]any{
			"enabled": true,
			"port":    9090,
		},
		"health": map[string]any{
			"enabled": true,
		},
	}
}

// SetDefaults registers the built-in layer on v.
func SetDefaults(v *viper.Viper) {
	setViperDefaults(v, "", Defaults())
}

func setViperDefaults(v *viper.Viper, prefix string, values map[string]any) {
	for key, value := range values {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			setViperDefaults(v, path, nested)
			continue
		}
		v.SetDefault(path, value)
	}
}

// Load builds the configuration from v (defaults, config file), the
// environment and runtimeOverrides, validates it and makes it current.
//
// A nil v loads defaults and environment only. This function is safe to call
// multiple times (e.g., for config reload).
func Load(ctx context.Context, v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	identity, err := appid.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load app identity: %w", err)
	}

	if v == nil {
		v = viper.New()
		SetDefaults(v)
	}

	merged := Defaults()
	mergeInto(merged, v.AllSettings())

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	mergeInto(merged, envOverrides)

	for _, overrides := range runtimeOverrides {
		mergeInto(merged, overrides)
	}

	cfg, err := Decode(merged)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode converts a nested settings map into a typed Config.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the client or server cannot start with.
func (c *Config) Validate() error {
	for field, raw := range map[string]string{
		"api.base_url":     c.API.BaseURL,
		"api.document_url": c.API.DocumentURL,
	} {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return &companieshouse.ConfigError{Field: field, Message: "must be an absolute URL: " + raw}
		}
	}

	for field, d := range map[string]time.Duration{
		"api.timeout":             c.API.Timeout,
		"rate_limit.safety_margin": c.RateLimit.SafetyMargin,
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if d < 0 {
			return &companieshouse.ConfigError{Field: field, Message: "must not be negative"}
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		return &companieshouse.ConfigError{Field: "rate_limit.requests_per_minute", Message: "must not be negative"}
	}
	if c.RateLimit.Burst < 0 {
		return &companieshouse.ConfigError{Field: "rate_limit.burst", Message: "must not be negative"}
	}

	for _, code := range c.API.IgnoreStatus {
		if code < 100 || code > 599 {
			return &companieshouse.ConfigError{Field: "api.ignore_status", Message: fmt.Sprintf("%d is not an HTTP status code", code)}
		}
	}

	for field, port := range map[string]int{"server.port": c.Server.Port, "metrics.port": c.Metrics.Port} {
		if port < 0 || port > 65535 {
			return &companieshouse.ConfigError{Field: field, Message: fmt.Sprintf("port %d out of range", port)}
		}
	}

	if level := strings.ToLower(strings.TrimSpace(c.Logging.Level)); level != "" && !validLogLevels[level] {
		return &companieshouse.ConfigError{Field: "logging.level", Message: "unknown level " + c.Logging.Level}
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs(identity *appidentity.Identity) []EnvVarSpec {
	prefix := "CHWRAPPER_"
	if identity != nil && identity.EnvPrefix != "" {
		prefix = identity.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	return []EnvVarSpec{
		// Registry client
		{Name: prefix + "API_KEY", Path: []string{"api", "key"}, Type: EnvString},
		{Name: prefix + "API_BASE_URL", Path: []string{"api", "base_url"}, Type: EnvString},
		{Name: prefix + "API_DOCUMENT_URL", Path: []string{"api", "document_url"}, Type: EnvString},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "API_TIMEOUT", Path: []string{"api", "timeout"}, Type: EnvString},
		{Name: prefix + "API_USER_AGENT", Path: []string{"api", "user_agent"}, Type: EnvString},
		{Name: prefix + "API_IGNORE_STATUS", Path: []string{"api", "ignore_status"}, Type: EnvString},
		{Name: prefix + "API_RAISE_FOR_STATUS", Path: []string{"api", "raise_for_status"}, Type: EnvBool},

		// Rate limiting
		{Name: prefix + "RATE_LIMIT_SAFETY_MARGIN", Path: []string{"rate_limit", "safety_margin"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_REQUESTS_PER_MINUTE", Path: []string{"rate_limit", "requests_per_minute"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_BURST", Path: []string{"rate_limit", "burst"}, Type: EnvInt},

		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
	}
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath(identity *appidentity.Identity) string {
	name := "chwrapper"
	if identity != nil && strings.TrimSpace(identity.ConfigName) != "" {
		name = identity.ConfigName
	}
	configDir := gfconfig.GetAppConfigDir(name)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// mergeInto deep-merges src into dst. Nested maps merge key by key; any other
// value replaces what dst held.
func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := asMap(value)
		if !srcIsMap {
			dst[key] = value
			continue
		}
		dstMap, dstIsMap := asMap(dst[key])
		if !dstIsMap {
			dstMap = map[string]any{}
		}
		mergeInto(dstMap, srcMap)
		dst[key] = dstMap
	}
}

func asMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for k, v := range typed {
			converted[fmt.Sprint(k)] = v
		}
		return converted, true
	default:
		return nil, false
	}
}
