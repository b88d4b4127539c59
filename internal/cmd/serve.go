package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	apperrors "github.com/chwrapper/chwrapper/internal/errors"
	"github.com/chwrapper/chwrapper/internal/observability"
	"github.com/chwrapper/chwrapper/internal/server"
	"github.com/chwrapper/chwrapper/internal/server/handlers"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return apperrors.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry proxy server",
	Long: `Run an HTTP server exposing the registry under /v1 with health, version
and metrics endpoints. All requests share one rate-limited session, so callers
are suspended together when the quota runs out.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file reload`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (default from config: localhost)")
	serveCmd.Flags().IntP("port", "p", 0, "server port (default from config: 8080)")
}

// serveOverrides maps the serve flags the user set onto server config.
func serveOverrides(cmd *cobra.Command) map[string]any {
	serverCfg := map[string]any{}
	if f := cmd.Flags().Lookup("host"); f != nil && f.Changed {
		serverCfg["host"] = f.Value.String()
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		if port, err := cmd.Flags().GetInt("port"); err == nil {
			serverCfg["port"] = port
		}
	}
	if len(serverCfg) == 0 {
		return nil
	}
	return map[string]any{"server": serverCfg}
}

func runServe(cmd *cobra.Command, args []string) error {
	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()

	cfg, err := loadConfig(cmd, serveOverrides(cmd))
	if err != nil {
		return err
	}

	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(namespace, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}
	}

	client, err := newClient(cfg)
	if err != nil {
		return apperrors.FromRegistryError(cmd.Context(), err)
	}

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Int("metrics_port", observability.GetMetricsPort()),
		zap.String("registry", client.BaseURL().String()),
		zap.Bool("authenticated", client.Token() != ""))

	handlers.SetAppIdentity(identity)
	handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

	checkers := map[string]handlers.HealthChecker{}
	if cfg.Metrics.Enabled {
		checkers["telemetry"] = telemetryHealthChecker{}
	}

	srv := server.New(server.Options{
		Server:     cfg.Server,
		Checkers:   checkers,
		Client:     client,
		Raise:      cfg.API.RaiseForStatus,
		Health:     cfg.Health.Enabled,
		AdminToken: os.Getenv(identity.EnvPrefix + "ADMIN_TOKEN"),
		Version:    versionInfo.Version,
	})

	// Shutdown handlers run LIFO: the HTTP server stops before the logger flushes.
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return apperrors.WrapInternal(ctx, err, "server shutdown failed")
		}

		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		return reloadServeConfig(ctx, cmd, client, logger)
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(cmd.Context()); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return apperrors.WrapInternal(cmd.Context(), err, "server error")
	}
	return nil
}

// reloadServeConfig re-reads the config file and applies what a running
// session can take: the persistent ignore set, replaced in one step so no
// in-flight call sees a partial set. Settings that need a new session (key,
// URLs) take effect on restart.
func reloadServeConfig(ctx context.Context, cmd *cobra.Command, client *companieshouse.Client, logger *logging.Logger) error {
	logger.Info("Received SIGHUP: attempting config reload")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Info("No config file found - using defaults and environment variables")
			return nil
		}
		logger.Error("Failed to reload config file",
			zap.String("file", viper.ConfigFileUsed()),
			zap.Error(err))
		return apperrors.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	reloaded, err := loadConfig(cmd, serveOverrides(cmd))
	if err != nil {
		logger.Error("Reloaded config is invalid", zap.Error(err))
		return err
	}

	client.SetIgnoredStatuses(reloaded.API.IgnoreStatus...)

	logger.Info("Configuration reloaded",
		zap.String("file", viper.ConfigFileUsed()),
		zap.Ints("ignore_status", reloaded.API.IgnoreStatus))
	return nil
}
