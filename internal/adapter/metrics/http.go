package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// unmatchedRoute labels requests no route claimed, keeping raw paths out of label values.
	unmatchedRoute = "unmatched"
	scrapeRoute    = "/metrics"
)

type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
	HealthChecks    *prometheus.CounterVec
}

// NewHTTPMetrics registers request and readiness-check metrics on reg.
// Requests are labelled by method, route template and status class (2xx, 5xx).
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"method", "route", "status_class"}

	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, labels),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, labels),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
		HealthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "checks_total",
			Help:      "Readiness check executions by check name and result.",
		}, []string{"check", "result"}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge, m.HealthChecks)
	return m
}

// ObserveHealthCheck counts one execution of the named readiness check.
func (m *HTTPMetrics) ObserveHealthCheck(check string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.HealthChecks.WithLabelValues(check, result).Inc()
}

// Middleware records every request except the scrape endpoint itself.
// Readiness requests are included since they reach the database.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == scrapeRoute {
				return next(c)
			}

			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			timer := prometheus.NewTimer(nil)
			err := next(c)
			elapsed := timer.ObserveDuration().Seconds()

			route := c.Path()
			if route == "" || errors.Is(err, echo.ErrNotFound) {
				route = unmatchedRoute
			}
			labels := []string{c.Request().Method, route, statusClass(responseStatus(c, err))}
			m.RequestDuration.WithLabelValues(labels...).Observe(elapsed)
			m.RequestsTotal.WithLabelValues(labels...).Inc()

			return err
		}
	}
}

// responseStatus resolves the status Echo's error handler will send when the
// handler returned an error without writing a response.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
