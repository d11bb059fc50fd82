// Package webcam turns an ordinary camera into a coarse body sensor.
//
// Color frames come from a gocv.VideoCapture. Faces are found with OpenCV's
// YuNet detector; each face becomes a tracked body whose head, neck and
// spine-shoulder joints are placed by a pinhole model, with distance
// estimated from the face width. Depth, infrared and body-index streams are
// unsupported.
//
// Capture needs OpenCV and is compiled only with the gocv build tag. The
// frame bookkeeping and geometry build without it.
package webcam

import "fmt"

// Config holds the camera and detector settings.
type Config struct {
	// Camera is the capture device index.
	Camera int `json:"camera"`

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS

	// HorizontalFOV is the lens field of view in degrees, used to place
	// joints in camera space.
	HorizontalFOV float64 `json:"horizontal_fov"`

	// === Face detection ===
	ModelPath        string  `json:"model_path"`        // YuNet ONNX model
	ConfidenceThresh float64 `json:"confidence_thresh"` // Minimum face score
	DetectEvery      int     `json:"detect_every"`      // Run detection every N frames

	// MatchDistance is the largest normalized center shift for a face to
	// keep its body slot between detections.
	MatchDistance float64 `json:"match_distance"`
}

// Capture limits
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns a 720p configuration, a good balance between
// detection range and CPU use.
func DefaultConfig() Config {
	return Config{
		Camera:           0,
		Width:            1280,
		Height:           720,
		Framerate:        30,
		HorizontalFOV:    70,
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		DetectEvery:      1,
		MatchDistance:    0.15,
	}
}

// LegacyConfig returns 640x480, for cameras or machines that struggle
// with 720p.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Camera < 0 {
		errors = append(errors, "camera must not be negative")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.HorizontalFOV < 20 || c.HorizontalFOV > 170 {
		errors = append(errors, "horizontal_fov must be between 20 and 170 degrees")
	}
	if c.ConfidenceThresh <= 0 || c.ConfidenceThresh >= 1 {
		errors = append(errors, "confidence_thresh must be between 0 and 1")
	}
	if c.DetectEvery < 1 {
		errors = append(errors, "detect_every must be at least 1")
	}
	if c.MatchDistance <= 0 || c.MatchDistance > 1 {
		errors = append(errors, "match_distance must be between 0 and 1")
	}

	return errors
}

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLegacy  = "legacy"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetWide    = "wide"
	PresetLowCPU  = "lowcpu"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLegacy:  LegacyConfig(),
		Preset720p:    HD720Config(),
		Preset1080p:   HD1080Config(),
		PresetWide:    WideConfig(),
		PresetLowCPU:  LowCPUConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLegacy,
		Preset720p,
		Preset1080p,
		PresetWide,
		PresetLowCPU,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	return DefaultConfig()
}

// HD1080Config returns 1080p, the native color size of the depth sensor.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// WideConfig is for wide-angle lenses.
func WideConfig() Config {
	cfg := DefaultConfig()
	cfg.HorizontalFOV = 120
	return cfg
}

// LowCPUConfig detects faces on every third frame at 640x480.
func LowCPUConfig() Config {
	cfg := LegacyConfig()
	cfg.Framerate = 15
	cfg.DetectEvery = 3
	return cfg
}
