package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/teslashibe/go-kinect/internal/config"
	"github.com/teslashibe/go-kinect/pkg/device"
	"github.com/teslashibe/go-kinect/pkg/sensor/backend"
	"github.com/teslashibe/go-kinect/pkg/sensor/webcam"
	"github.com/teslashibe/go-kinect/pkg/web"
)

// Options is the kinectd command line.
type Options struct {
	Backend   string
	Port      string
	RemoteURL string
	LogLevel  string

	PollInterval  time.Duration
	ColorInterval time.Duration
	JPEGQuality   int

	NoColor  bool
	BodyOnly bool

	Preset     string
	Camera     int
	ModelPath  string
	FetchModel bool

	ListBackends bool
}

func defaultOptions() Options {
	return Options{
		Backend:       config.DefaultBackend,
		Port:          config.DefaultHTTPPort,
		LogLevel:      config.DefaultLogLevel,
		PollInterval:  device.DefaultConfig().PollInterval,
		ColorInterval: web.DefaultConfig().ColorInterval,
		JPEGQuality:   web.DefaultConfig().JPEGQuality,
		Preset:        "default",
		Camera:        -1,
	}
}

// parseFlags parses args; flags given explicitly win over environment
// variables, which win over defaults.
func parseFlags(args []string, stderr io.Writer) (Options, error) {
	opts := defaultOptions()

	fs := flag.NewFlagSet("kinectd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Backend, "backend", opts.Backend, "Sensor backend: auto, mock, webcam, remote (KINECT_BACKEND)")
	fs.StringVar(&opts.Port, "port", opts.Port, "HTTP port (PORT)")
	fs.StringVar(&opts.RemoteURL, "remote-url", "", "Upstream /ws/bodies URL for the remote backend (KINECT_REMOTE_URL)")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug, info, warn, error (LOG_LEVEL)")
	fs.DurationVar(&opts.PollInterval, "poll", opts.PollInterval, "Maximum wait between polls (KINECT_POLL_INTERVAL)")
	fs.DurationVar(&opts.ColorInterval, "color-interval", opts.ColorInterval, "Minimum gap between /ws/color frames")
	fs.IntVar(&opts.JPEGQuality, "jpeg-quality", opts.JPEGQuality, "JPEG quality for color images (1-100)")
	fs.BoolVar(&opts.NoColor, "no-color", false, "Start with color decoding paused (KINECT_NO_COLOR)")
	fs.BoolVar(&opts.BodyOnly, "body-only", false, "Subscribe to skeleton tracking only")
	fs.StringVar(&opts.Preset, "preset", opts.Preset, "Webcam preset: "+strings.Join(webcam.PresetNames(), ", "))
	fs.IntVar(&opts.Camera, "camera", opts.Camera, "Webcam device index (overrides the preset)")
	fs.StringVar(&opts.ModelPath, "model", "", "YuNet face model path (overrides the preset)")
	fs.BoolVar(&opts.FetchModel, "fetch-model", false, "Download the face model if it is missing")
	fs.BoolVar(&opts.ListBackends, "list-backends", false, "Print the compiled-in backends and exit")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	opts.loadEnv(set)
	return opts, nil
}

// loadEnv applies environment overrides for flags not given explicitly.
func (o *Options) loadEnv(set map[string]bool) {
	if !set["backend"] {
		o.Backend = config.SensorBackend(o.Backend)
	}
	if !set["port"] {
		o.Port = config.HTTPPort()
	}
	if !set["remote-url"] {
		o.RemoteURL = config.RemoteURL(o.RemoteURL)
	}
	if !set["log-level"] {
		o.LogLevel = config.LogLevel()
	}
	if !set["poll"] {
		o.PollInterval = config.Duration("KINECT_POLL_INTERVAL", o.PollInterval)
	}
	if !set["no-color"] {
		o.NoColor = config.Bool("KINECT_NO_COLOR", o.NoColor)
	}
}

// backendConfig builds the sensor backend settings.
func (o *Options) backendConfig() (backend.Config, error) {
	b, err := backend.ParseBackend(o.Backend)
	if err != nil {
		return backend.Config{}, err
	}
	cfg := backend.DefaultConfig()
	cfg.Backend = b
	cfg.RemoteURL = o.RemoteURL

	preset := webcam.GetPreset(o.Preset)
	if preset == nil {
		return backend.Config{}, fmt.Errorf("unknown webcam preset %q (want %s)",
			o.Preset, strings.Join(webcam.PresetNames(), ", "))
	}
	cfg.Webcam = *preset
	if o.Camera >= 0 {
		cfg.Webcam.Camera = o.Camera
	}
	if o.ModelPath != "" {
		cfg.Webcam.ModelPath = o.ModelPath
	}

	if err := cfg.Validate(); err != nil {
		return backend.Config{}, err
	}
	return cfg, nil
}

// deviceConfig builds the poller stream selection.
func (o *Options) deviceConfig() device.Config {
	cfg := device.DefaultConfig()
	if o.BodyOnly {
		cfg = device.BodyOnlyConfig()
	}
	cfg.PollInterval = o.PollInterval
	cfg.UpdateColor = cfg.Color && !o.NoColor
	return cfg
}

// webConfig builds the HTTP server settings.
func (o *Options) webConfig() web.Config {
	return web.Config{
		Addr:          config.HTTPAddr(o.Port),
		ColorInterval: o.ColorInterval,
		JPEGQuality:   o.JPEGQuality,
	}
}
