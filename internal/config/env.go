// Package config provides configuration helpers for kinectd commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default service configuration.
const (
	DefaultHTTPPort = "8080"
	DefaultBackend  = "auto"
	DefaultLogLevel = "info"
)

// SensorBackend returns the backend name from KINECT_BACKEND env var.
// Falls back to the provided default if not set.
func SensorBackend(defaultBackend string) string {
	if b := os.Getenv("KINECT_BACKEND"); b != "" {
		return b
	}
	return defaultBackend
}

// HTTPPort returns the listen port from PORT env var or default.
func HTTPPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return DefaultHTTPPort
}

// HTTPAddr returns the listen address for port on all interfaces.
func HTTPAddr(port string) string {
	return fmt.Sprintf(":%s", port)
}

// RemoteURL returns the upstream body stream from KINECT_REMOTE_URL.
// Falls back to the provided default if not set.
func RemoteURL(defaultURL string) string {
	if u := os.Getenv("KINECT_REMOTE_URL"); u != "" {
		return u
	}
	return defaultURL
}

// LogLevel returns the level from LOG_LEVEL env var or default.
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return DefaultLogLevel
}

// Duration reads a Go duration ("50ms") from env var key.
// Unset or unparsable values return def.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// Bool reads a boolean ("1", "true", "false") from env var key.
// Unset or unparsable values return def.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
