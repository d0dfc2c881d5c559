// Package config loads and validates the process configuration from the
// environment.
package config
