// Package backend selects and constructs a sensor.Device.
//
// Supported backends:
//   - mock - synthetic frames, no hardware
//   - webcam - a local camera with face-derived bodies (needs -tags gocv)
//   - remote - the body stream of another kinectd
//
// Auto picks the webcam when it is compiled in and a camera opens, and
// falls back to the mock otherwise.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-kinect/pkg/sensor"
	"github.com/teslashibe/go-kinect/pkg/sensor/mock"
	"github.com/teslashibe/go-kinect/pkg/sensor/remote"
	"github.com/teslashibe/go-kinect/pkg/sensor/webcam"
)

// Backend represents the sensor backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendMock generates synthetic frames.
	BackendMock Backend = "mock"
	// BackendWebcam captures from a local camera.
	BackendWebcam Backend = "webcam"
	// BackendRemote follows another kinectd.
	BackendRemote Backend = "remote"
)

// probeTimeout bounds the camera check of auto selection.
const probeTimeout = 5 * time.Second

// ParseBackend parses a backend name.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	switch b {
	case BackendAuto, BackendMock, BackendWebcam, BackendRemote:
		return b, nil
	case "":
		return BackendAuto, nil
	}
	return "", fmt.Errorf("unknown backend %q (want auto, mock, webcam or remote)", s)
}

// Config holds the settings of every backend; only the selected one is used.
type Config struct {
	Backend Backend `json:"backend"`

	Mock   mock.Config   `json:"mock"`
	Webcam webcam.Config `json:"webcam"`

	// RemoteURL is the upstream /ws/bodies endpoint.
	RemoteURL string `json:"remote_url"`
}

// DefaultConfig returns auto selection with each backend's defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendAuto,
		Mock:    mock.DefaultConfig(),
		Webcam:  webcam.DefaultConfig(),
	}
}

// Validate checks the selected backend's settings.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMock:
		return c.Mock.Validate()
	case BackendWebcam:
		if errs := c.Webcam.Validate(); len(errs) > 0 {
			return fmt.Errorf("webcam: %s", strings.Join(errs, "; "))
		}
	case BackendRemote:
		rc := remote.DefaultConfig(c.RemoteURL)
		return rc.Validate()
	case BackendAuto:
		return c.Mock.Validate()
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// New creates the device for cfg.Backend.
func New(cfg Config, logger *slog.Logger) (sensor.Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend(cfg, logger)
	}

	logger.Info("creating sensor", "backend", backend)

	// Typed nil pointers must not escape as non-nil devices.
	var (
		dev sensor.Device
		err error
	)
	switch backend {
	case BackendMock:
		var d *mock.Device
		if d, err = mock.New(cfg.Mock, logger); err == nil {
			dev = d
		}
	case BackendWebcam:
		dev, err = webcam.New(cfg.Webcam, logger)
	case BackendRemote:
		var d *remote.Device
		if d, err = remote.New(remote.DefaultConfig(cfg.RemoteURL), logger); err == nil {
			dev = d
		}
	default:
		err = fmt.Errorf("unsupported backend: %s", backend)
	}
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// detectBestBackend returns webcam when a camera opens, else mock.
func detectBestBackend(cfg Config, logger *slog.Logger) Backend {
	if !webcam.Compiled {
		return BackendMock
	}
	if errs := cfg.Webcam.Validate(); len(errs) > 0 {
		logger.Warn("webcam config invalid, using mock", "errors", errs)
		return BackendMock
	}

	dev, err := webcam.New(cfg.Webcam, logger)
	if err != nil {
		logger.Warn("webcam unavailable, using mock", "error", err)
		return BackendMock
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := dev.Open(ctx); err != nil {
		logger.Warn("no camera found, using mock", "error", err)
		return BackendMock
	}
	if err := dev.Close(); err != nil {
		logger.Warn("camera probe close failed", "error", err)
	}
	return BackendWebcam
}

// AvailableBackends returns the backends compiled into this binary.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock, BackendRemote}
	if webcam.Compiled {
		backends = append(backends, BackendWebcam)
	}
	return backends
}
