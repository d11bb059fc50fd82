//go:build !gocv

package webcam

import (
	"log/slog"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Compiled reports whether capture support is built in.
const Compiled = false

// New always fails: rebuild with -tags gocv for camera capture.
func New(Config, *slog.Logger) (sensor.Device, error) {
	return nil, ErrNotCompiled
}
