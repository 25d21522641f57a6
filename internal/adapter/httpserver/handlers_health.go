package httpserver

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/pgapp/internal/platform/errors"
	"github.com/pscheid92/pgapp/internal/platform/version"
	"golang.org/x/time/rate"
)

const (
	readinessProbeTimeout = 5 * time.Second
	readinessLimiterTTL   = 5 * time.Minute

	// singleflight key; every readiness request runs the same set of checks.
	readinessFlightKey = "ready"
)

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness,
		readinessLimiter(s.config.ReadinessRateLimit, s.config.ReadinessBurst))
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()

	response := map[string]any{
		"status": "ok",
		"uptime": uptime,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness runs the registered checks. Requests arriving while a round is
// in flight wait for that round instead of pinging the database again.
func (s *Server) handleReadiness(c echo.Context) error {
	reqCtx := c.Request().Context()

	v, _, _ := s.readinessGroup.Do(readinessFlightKey, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), readinessProbeTimeout)
		defer cancel()
		return s.runHealthChecks(ctx), nil
	})

	if failure, _ := v.(*apperrors.Error); failure != nil {
		return HandleError(c, failure)
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "ready"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// runHealthChecks stops at the first failing check.
func (s *Server) runHealthChecks(ctx context.Context) *apperrors.Error {
	for _, hc := range s.healthChecks {
		err := hc.Check(ctx)
		s.httpMetrics.ObserveHealthCheck(hc.Name, err)
		if err != nil {
			return apperrors.UnavailableError(hc.Name+" unavailable", err).
				WithContext("failed_check", hc.Name)
		}
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}

// readinessLimiter throttles readiness requests per client IP. Rejected requests
// get a Retry-After hint matching the refill interval of one token.
func readinessLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / ratePerSecond)))

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(ratePerSecond),
		Burst:     burst,
		ExpiresIn: readinessLimiterTTL,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			c.Response().Header().Set("Retry-After", retryAfter)
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"status": "throttled",
				"error":  "readiness rate limit exceeded",
			})
		},
	})
}
