// Package config provides helpers for reading service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// String returns the value of the environment variable or defaultValue when unset.
func String(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Int returns the environment variable parsed as an int.
// Unparsable values fall back to defaultValue.
func Int(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// Float returns the environment variable parsed as a float64.
// Unparsable values fall back to defaultValue.
func Float(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

// Duration returns the environment variable parsed with time.ParseDuration.
func Duration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// Bool parses the environment variable with strconv.ParseBool, returning
// defaultValue when it is unset or unparseable.
func Bool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
