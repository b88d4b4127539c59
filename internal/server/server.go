package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/chwrapper/chwrapper/internal/config"
	apperrors "github.com/chwrapper/chwrapper/internal/errors"
	"github.com/chwrapper/chwrapper/internal/metrics"
	"github.com/chwrapper/chwrapper/internal/observability"
	"github.com/chwrapper/chwrapper/internal/server/handlers"
	servermw "github.com/chwrapper/chwrapper/internal/server/middleware"
	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

// Options configures a Server.
type Options struct {
	Server config.ServerConfig

	// Client serves the /v1 routes. Without it only health, version and
	// metrics are mounted.
	Client *companieshouse.Client

	// Raise turns registry 4xx/5xx responses into error envelopes instead of
	// relaying them.
	Raise bool

	// Health enables the /health routes.
	Health bool

	// Checkers are added to the health manager next to the registry check.
	Checkers map[string]handlers.HealthChecker

	// AdminToken enables POST /admin/signal behind bearer auth.
	AdminToken string

	Version string
}

// Server is the registry proxy HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	opts    Options
	health  *handlers.HealthManager
	started time.Time
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		opts:   opts,
		health: handlers.NewHealthManager(opts.Version),
	}


	if opts.Client != nil {
		s.health.RegisterChecker("registry", handlers.RegistryChecker{Transport: opts.Client.Transport()})
	}
	for name, checker := range opts.Checkers {
		s.health.RegisterChecker(name, checker)
	}

	s.registerRoutes()

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.opts.Server.Host, s.opts.Server.Port)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.Addr()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.Server.ReadTimeout,
		WriteTimeout: s.opts.Server.WriteTimeout,
		IdleTimeout:  s.opts.Server.IdleTimeout,
	}

	s.started = time.Now()
	metrics.SetServerStartTime(s.started.Unix())

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.opts.Server.Host),
			zap.Int("port", s.opts.Server.Port),
			zap.String("addr", addr),
			zap.Bool("proxy", s.opts.Client != nil))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port
func (s *Server) Port() int {
	return s.opts.Server.Port
}
