package device

import (
	"time"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Config selects the streams the poller subscribes to.
type Config struct {
	Color     bool `json:"color"`
	Infrared  bool `json:"infrared"`
	Body      bool `json:"body"`
	BodyIndex bool `json:"body_index"`
	Depth     bool `json:"depth"`

	// DepthCoordinates maps every color pixel into depth space each depth
	// frame. ColorCoordinates maps every depth pixel into color space.
	DepthCoordinates bool `json:"depth_coordinates"`
	ColorCoordinates bool `json:"color_coordinates"`

	// Faces and HDFaces open one tracker per body slot.
	Faces   bool `json:"faces"`
	HDFaces bool `json:"hd_faces"`

	// UpdateColor is the initial value of the color decoding switch.
	UpdateColor bool `json:"update_color"`

	// PollInterval bounds the wait for the device's frame signal.
	PollInterval time.Duration `json:"poll_interval"`
}

// DefaultConfig enables every stream.
func DefaultConfig() Config {
	return Config{
		Color:            true,
		Infrared:         true,
		Body:             true,
		BodyIndex:        true,
		Depth:            true,
		DepthCoordinates: true,
		ColorCoordinates: false,
		Faces:            true,
		HDFaces:          true,
		UpdateColor:      true,
		PollInterval:     33 * time.Millisecond,
	}
}

// BodyOnlyConfig enables skeleton tracking and nothing else.
func BodyOnlyConfig() Config {
	return Config{
		Body:         true,
		PollInterval: 33 * time.Millisecond,
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return &ConfigError{Field: "PollInterval", Message: "poll interval must not be negative"}
	}
	if c.PollInterval > 0 && c.PollInterval < time.Millisecond {
		return &ConfigError{Field: "PollInterval", Message: "poll interval must be at least 1ms"}
	}
	if (c.DepthCoordinates || c.ColorCoordinates) && !c.Depth {
		return &ConfigError{Field: "DepthCoordinates", Message: "coordinate mapping requires the depth stream"}
	}
	if (c.Faces || c.HDFaces) && !c.Body {
		return &ConfigError{Field: "Faces", Message: "face tracking requires the body stream"}
	}
	if !c.any() {
		return &ConfigError{Field: "Streams", Message: "at least one stream must be enabled"}
	}
	return nil
}

func (c *Config) any() bool {
	return c.Color || c.Infrared || c.Body || c.BodyIndex || c.Depth
}

// readerKinds returns the frame streams to open, in acquisition order.
func (c *Config) readerKinds() []sensor.StreamKind {
	var kinds []sensor.StreamKind
	for _, k := range sensor.FrameReaderKinds() {
		if c.enabled(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (c *Config) enabled(k sensor.StreamKind) bool {
	switch k {
	case sensor.StreamColor:
		return c.Color
	case sensor.StreamInfrared:
		return c.Infrared
	case sensor.StreamBody:
		return c.Body
	case sensor.StreamBodyIndex:
		return c.BodyIndex
	case sensor.StreamDepth:
		return c.Depth
	case sensor.StreamFace:
		return c.Faces
	case sensor.StreamHDFace:
		return c.HDFaces
	}
	return false
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
