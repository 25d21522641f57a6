// Package httpserver implements the HTTP surface using the Echo framework.
//
// Routes: /health/live, /health/ready, /version, /metrics. The Server also
// carries a configuration mapping (Settings) that bootstrap code fills in,
// e.g. the database connection URI.
package httpserver
