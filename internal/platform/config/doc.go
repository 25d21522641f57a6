// Package config provides environment-based configuration.
//
// Loads from .env file (godotenv), maps to Config struct via go-simpler/env struct tags.
// Database settings fall back to local development credentials and are rendered
// into a postgresql:// connection URI.
package config
