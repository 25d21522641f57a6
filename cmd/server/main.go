package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pscheid92/pgapp/internal/app"
	"github.com/pscheid92/pgapp/internal/platform/config"
	"github.com/pscheid92/pgapp/internal/platform/logging"
	"github.com/pscheid92/pgapp/internal/platform/version"
)

const (
	bootstrapTimeout = 2 * time.Minute
	shutdownTimeout  = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupApp(cfg *config.Config) *app.App {
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()

	a, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("Failed to bootstrap application", "error", err)
		os.Exit(1)
	}
	return a
}

func runGracefulShutdown(a *app.App) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		a.Close()
		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	a := setupApp(cfg)
	done := runGracefulShutdown(a)

	if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		a.Close()
		os.Exit(1)
	}

	<-done
}
