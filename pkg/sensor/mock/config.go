// Package mock provides a synthetic sensor for tests and development.
//
// The mock generates moving skeletons, depth and body-index images,
// color and infrared patterns, and face tracking results. Frames are
// produced by an internal ticker, or on demand with Tick when the device
// is created WithManualTick. Options inject failures so the poller's error
// paths can be exercised without hardware.
package mock

import (
	"fmt"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Config controls the synthetic streams.
type Config struct {
	// FPS is the frame rate of the internal ticker.
	FPS int `json:"fps"`

	// Color and Depth are the image sizes. Infrared and body-index frames
	// share the depth size.
	ColorWidth  int `json:"color_width"`
	ColorHeight int `json:"color_height"`
	DepthWidth  int `json:"depth_width"`
	DepthHeight int `json:"depth_height"`

	// Bodies is the number of tracked bodies, filling slots from 0.
	Bodies int `json:"bodies"`

	// FaceVertices is the HD face mesh size.
	FaceVertices int `json:"face_vertices"`

	// ModelFrames is how many HD frames the model builder collects before
	// the face model is complete.
	ModelFrames int `json:"model_frames"`
}

// DefaultConfig returns a configuration matching the native sensor.
func DefaultConfig() Config {
	return Config{
		FPS:          30,
		ColorWidth:   sensor.ColorDescription.Width,
		ColorHeight:  sensor.ColorDescription.Height,
		DepthWidth:   sensor.DepthDescription.Width,
		DepthHeight:  sensor.DepthDescription.Height,
		Bodies:       1,
		FaceVertices: 1347,
		ModelFrames:  30,
	}
}

// SmallConfig returns a low-resolution configuration for tests.
func SmallConfig() Config {
	cfg := DefaultConfig()
	cfg.ColorWidth = 64
	cfg.ColorHeight = 36
	cfg.DepthWidth = 32
	cfg.DepthHeight = 24
	cfg.FaceVertices = 32
	cfg.ModelFrames = 3
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.FPS <= 0 || c.FPS > 120 {
		return fmt.Errorf("fps must be between 1 and 120, got %d", c.FPS)
	}
	if c.ColorWidth <= 0 || c.ColorHeight <= 0 {
		return fmt.Errorf("color size must be positive, got %dx%d", c.ColorWidth, c.ColorHeight)
	}
	if c.DepthWidth <= 0 || c.DepthHeight <= 0 {
		return fmt.Errorf("depth size must be positive, got %dx%d", c.DepthWidth, c.DepthHeight)
	}
	if c.Bodies < 0 || c.Bodies > sensor.MaxBodies {
		return fmt.Errorf("bodies must be between 0 and %d, got %d", sensor.MaxBodies, c.Bodies)
	}
	if c.FaceVertices < 3 {
		return fmt.Errorf("face_vertices must be at least 3, got %d", c.FaceVertices)
	}
	if c.ModelFrames < 0 {
		return fmt.Errorf("model_frames must not be negative, got %d", c.ModelFrames)
	}
	return nil
}

func (c *Config) colorDesc() sensor.FrameDescription {
	return sensor.FrameDescription{Width: c.ColorWidth, Height: c.ColorHeight, BytesPerPixel: 4}
}

func (c *Config) depthDesc() sensor.FrameDescription {
	return sensor.FrameDescription{Width: c.DepthWidth, Height: c.DepthHeight, BytesPerPixel: 2}
}

func (c *Config) bodyIndexDesc() sensor.FrameDescription {
	return sensor.FrameDescription{Width: c.DepthWidth, Height: c.DepthHeight, BytesPerPixel: 1}
}
