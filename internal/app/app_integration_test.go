//go:build integration

package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pscheid92/pgapp/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *config.Config {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("mydatabase"),
		tcpostgres.WithUsername("myuser"),
		tcpostgres.WithPassword("mypassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(endpoint)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.DBHost = host
	cfg.DBPort = port
	cfg.DBSSLMode = "disable"
	return cfg
}

func TestBootstrap_AgainstPostgres(t *testing.T) {
	cfg := startPostgres(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_create_notes.sql"), []byte(
		"CREATE TABLE notes (id serial PRIMARY KEY, body text);\n---- create above / drop below ----\nDROP TABLE notes;\n"), 0o600))
	cfg.MigrationsDir = dir

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	var count int
	require.NoError(t, a.DB.QueryRow(ctx, "SELECT count(*) FROM notes").Scan(&count))
	assert.Zero(t, count)

	rec := httptest.NewRecorder()
	a.Server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "pgapp_db_pool_total_connections")
	assert.Contains(t, rec.Body.String(), `pgapp_db_query_duration_seconds_count{query="SELECT"}`)
}
