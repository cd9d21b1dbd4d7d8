// Package config loads and validates the application configuration
// from config.yml.
package config
