// Package remote exposes the body stream of another kinectd as a sensor.
//
// The device dials the upstream /ws/bodies websocket, decodes each
// dto.BodyFrame message and serves the newest one through a body Reader.
// Every other stream is unsupported. Lost connections are redialled with
// exponential backoff until the device is closed.
package remote

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 90 * time.Second
	reconnectBaseDelay      = 1 * time.Second
	reconnectMaxDelay       = 30 * time.Second
)

// Config controls the upstream connection.
type Config struct {
	// URL is the upstream websocket, e.g. ws://host:8080/ws/bodies.
	URL string `json:"url"`

	HandshakeTimeout time.Duration `json:"handshake_timeout"`

	// ReadTimeout drops a connection that has been silent this long.
	ReadTimeout time.Duration `json:"read_timeout"`

	// Reconnect backoff bounds.
	ReconnectBaseDelay time.Duration `json:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `json:"reconnect_max_delay"`
}

// DefaultConfig returns the connection defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:                url,
		HandshakeTimeout:   defaultHandshakeTimeout,
		ReadTimeout:        defaultReadTimeout,
		ReconnectBaseDelay: reconnectBaseDelay,
		ReconnectMaxDelay:  reconnectMaxDelay,
	}
}

// Validate checks the URL and fills unset durations with defaults.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("remote: url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("remote: invalid url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("remote: url scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("remote: url has no host")
	}

	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = reconnectBaseDelay
	}
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		c.ReconnectMaxDelay = max(reconnectMaxDelay, c.ReconnectBaseDelay)
	}
	return nil
}
