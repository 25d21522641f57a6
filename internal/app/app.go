package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/pgapp/internal/adapter/httpserver"
	"github.com/pscheid92/pgapp/internal/adapter/metrics"
	"github.com/pscheid92/pgapp/internal/adapter/postgres"
	"github.com/pscheid92/pgapp/internal/platform/config"
	"github.com/pscheid92/pgapp/internal/platform/logging"
	"github.com/pscheid92/pgapp/internal/platform/retry"
)

type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Server *httpserver.Server
}

type pinger interface {
	Ping(ctx context.Context) error
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	logging.WithDatabase(cfg.DBHost, cfg.DBPort, cfg.DBName).
		DebugContext(ctx, "Database connection URI", "url", cfg.RedactedDatabaseURL())

	reg := metrics.NewRegistry()
	tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg), clockwork.NewRealClock())

	pool, err := postgres.ConnectWithRetry(ctx, cfg.DatabaseURL(), ConnectPolicy(cfg), PoolOptions(cfg, tracer)...)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsDir != "" {
		if err := postgres.RunMigrationsWithLock(ctx, pool, os.DirFS(cfg.MigrationsDir)); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations from %s: %w", cfg.MigrationsDir, err)
		}
	}

	reg.MustRegister(metrics.NewPoolCollector(pool))

	return &App{
		Config: cfg,
		DB:     pool,
		Server: newServer(cfg, reg, pool),
	}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

func newServer(cfg *config.Config, reg *prometheus.Registry, db pinger) *httpserver.Server {
	srv := httpserver.NewServer(cfg,
		httpserver.WithRegistry(reg),
		httpserver.WithHealthChecks(httpserver.HealthCheck{Name: "postgres", Check: db.Ping}),
	)

	srv.Settings().Set(config.DatabaseURLKey, cfg.DatabaseURL())
	srv.Settings().Set("app_env", cfg.AppEnv)

	return srv
}

// PoolOptions maps the DB_MAX_* settings onto the pool; zero values keep pgx defaults.
func PoolOptions(cfg *config.Config, tracer pgx.QueryTracer) []postgres.Option {
	opts := []postgres.Option{
		postgres.WithMaxConns(cfg.DBMaxConns),
		postgres.WithMaxConnLifetime(cfg.DBMaxConnLifetime),
	}
	if tracer != nil {
		opts = append(opts, postgres.WithTracer(tracer))
	}
	return opts
}

// ConnectPolicy derives the startup retry schedule from DB_CONNECT_* settings.
func ConnectPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.DBConnectAttempts,
		InitialBackoff:  cfg.DBConnectBackoff,
		MaxBackoff:      16 * cfg.DBConnectBackoff,
		ThrottleBackoff: 4 * cfg.DBConnectBackoff,
	}
}
