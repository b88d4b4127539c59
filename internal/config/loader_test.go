package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify client defaults
		assert.Equal(t, "", cfg.API.Key)
		assert.Equal(t, companieshouse.DefaultBaseURL, cfg.API.BaseURL)
		assert.Equal(t, companieshouse.DefaultDocumentURL, cfg.API.DocumentURL)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.Equal(t, "chwrapper/"+companieshouse.Version, cfg.API.UserAgent)
		assert.Empty(t, cfg.API.IgnoreStatus)
		assert.True(t, cfg.API.RaiseForStatus)

		// Verify rate limit defaults
		assert.Equal(t, time.Second, cfg.RateLimit.SafetyMargin)
		assert.Equal(t, 0.0, cfg.RateLimit.RequestsPerMinute)
		assert.Equal(t, companieshouse.DefaultPacerBurst, cfg.RateLimit.Burst)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "simple", cfg.Logging.Profile)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("CHWRAPPER_API_BASE_URL", "http://localhost:9999/")
		t.Setenv("CHWRAPPER_API_IGNORE_STATUS", "404,410")
		t.Setenv("CHWRAPPER_RATE_LIMIT_SAFETY_MARGIN", "2s")
		t.Setenv("CHWRAPPER_RATE_LIMIT_REQUESTS_PER_MINUTE", "60")
		t.Setenv("CHWRAPPER_PORT", "9000")

		cfg, err := Load(ctx, nil)
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:9999/", cfg.API.BaseURL)
		assert.Equal(t, []int{404, 410}, cfg.API.IgnoreStatus)
		assert.Equal(t, 2*time.Second, cfg.RateLimit.SafetyMargin)
		assert.Equal(t, 60.0, cfg.RateLimit.RequestsPerMinute)
		assert.Equal(t, 9000, cfg.Server.Port)
	})

	t.Run("RuntimeOverridesWinOverEnvironment", func(t *testing.T) {
		t.Setenv("CHWRAPPER_API_KEY", "from-env")

		overrides := map[string]any{
			"api": map[string]any{
				"key": "from-flag",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, nil, overrides)
		require.NoError(t, err)

		assert.Equal(t, "from-flag", cfg.API.Key)
		assert.Equal(t, "debug", cfg.Logging.Level)
		// Untouched sections keep their defaults
		assert.Equal(t, companieshouse.DefaultBaseURL, cfg.API.BaseURL)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte(`api:
  timeout: 5s
  ignore_status: [404]
rate_limit:
  burst: 3
server:
  port: 8181
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))

		v := viper.New()
		SetDefaults(v)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(ctx, v)
		require.NoError(t, err)

		assert.Equal(t, 5*time.Second, cfg.API.Timeout)
		assert.Equal(t, []int{404}, cfg.API.IgnoreStatus)
		assert.Equal(t, 3, cfg.RateLimit.Burst)
		assert.Equal(t, 8181, cfg.Server.Port)
		assert.Equal(t, "localhost", cfg.Server.Host)
	})

	t.Run("InvalidConfigRejected", func(t *testing.T) {
		_, err := Load(ctx, nil, map[string]any{
			"api": map[string]any{"base_url": "not a url"},
		})

		var cfgErr *companieshouse.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "api.base_url", cfgErr.Field)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Decode(Defaults())
		require.NoError(t, err)
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative margin", func(c *Config) { c.RateLimit.SafetyMargin = -time.Second }, "rate_limit.safety_margin"},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, "api.timeout"},
		{"relative document url", func(c *Config) { c.API.DocumentURL = "/docs" }, "api.document_url"},
		{"bad ignore status", func(c *Config) { c.API.IgnoreStatus = []int{42} }, "api.ignore_status"},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerMinute = -1 }, "rate_limit.requests_per_minute"},
		{"port range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			var cfgErr *companieshouse.ConfigError
			require.True(t, errors.As(cfg.Validate(), &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestMergeInto(t *testing.T) {
	dst := map[string]any{
		"api":    map[string]any{"key": "a", "timeout": "30s"},
		"server": map[string]any{"port": 8080},
	}
	mergeInto(dst, map[string]any{
		"api":     map[string]any{"key": "b"},
		"metrics": map[string]any{"enabled": false},
	})

	assert.Equal(t, map[string]any{"key": "b", "timeout": "30s"}, dst["api"])
	assert.Equal(t, map[string]any{"port": 8080}, dst["server"])
	assert.Equal(t, map[string]any{"enabled": false}, dst["metrics"])
}
