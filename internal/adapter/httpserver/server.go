package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/pgapp/internal/adapter/metrics"
	"github.com/pscheid92/pgapp/internal/platform/config"
	"golang.org/x/sync/singleflight"
)

// Server is the web application: an Echo instance plus the configuration
// mapping shared with whatever is wired into it.
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	settings *Settings

	registry       *prometheus.Registry
	httpMetrics    *metrics.HTTPMetrics
	healthChecks   []HealthCheck
	readinessGroup singleflight.Group

	clock     clockwork.Clock
	startTime time.Time
}

type Option func(*Server)

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = append(s.healthChecks, checks...)
	}
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

func NewServer(cfg *config.Config, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLogLevel(cfg.LogLevel))

	srv := &Server{
		echo:     e,
		config:   cfg,
		settings: NewSettings(),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	if srv.registry == nil {
		srv.registry = metrics.NewRegistry()
	}
	srv.httpMetrics = metrics.NewHTTPMetrics(srv.registry)
	srv.startTime = srv.clock.Now()

	srv.registerRoutes()

	return srv
}

// Echo exposes the underlying framework instance so callers can mount routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Settings() *Settings {
	return s.settings
}

func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// AddHealthCheck registers a readiness check after construction.
func (s *Server) AddHealthCheck(hc HealthCheck) {
	s.healthChecks = append(s.healthChecks, hc)
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// echoLogLevel mirrors the slog threshold onto Echo's internal logger.
func echoLogLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}
