// Package app bootstraps the process-wide handles: the web application
// (httpserver.Server) and the PostgreSQL pool it is wired to.
//
// Bootstrap resolves the connection URI from config, connects with retry,
// applies migrations when a directory is configured, and registers the pool
// as a readiness check and metrics source on the server.
package app
