// Package web serves the poller's snapshot over HTTP and websockets.
package web

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/device"
	"github.com/teslashibe/go-kinect/pkg/dto"
	"github.com/teslashibe/go-kinect/pkg/hub"
	"github.com/teslashibe/go-kinect/pkg/sensor"
	"github.com/teslashibe/go-kinect/pkg/texture"
)

// Source is the read side of a poller. *device.Poller implements it.
type Source interface {
	DeviceID() string
	Backend() string
	IsOpen() bool
	Available() bool
	Running() bool
	OpenStreams() []sensor.StreamKind
	LastFrame(kind sensor.StreamKind) sensor.FrameHeader
	Stats() device.Stats

	Body(idx int) (sensor.Body, error)
	BodyFrame() sensor.BodyFrame
	TrackedBodies() map[int]sensor.Body
	CameraIntrinsics() sensor.CameraIntrinsics

	Face(idx int) (sensor.FaceFrame, error)
	FaceVertices(idx int) ([]r3.Vec, error)
	FaceTriangles() []uint32
	FaceModelStatus(idx int) (sensor.ModelStatus, error)

	ColorTexture() *texture.Texture
	InfraredTexture() *texture.Texture
	IsUpdatingColor() bool
	SetUpdatingColor(on bool)
}

var _ Source = (*device.Poller)(nil)

// Config controls the web server.
type Config struct {
	Addr string

	// ColorInterval throttles /ws/color frames.
	ColorInterval time.Duration

	// JPEGQuality is used for /api/color.jpg and /ws/color.
	JPEGQuality int
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		ColorInterval: 100 * time.Millisecond,
		JPEGQuality:   80,
	}
}

// Server is the HTTP and websocket surface.
type Server struct {
	app    *fiber.App
	cfg    Config
	src    Source
	logger *slog.Logger

	bodyHub  *hub.Hub
	colorHub *hub.Hub

	colorReady chan struct{}
}

// NewServer creates a server reading from src. A nil logger uses
// slog.Default().
func NewServer(src Source, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ColorInterval <= 0 {
		cfg.ColorInterval = def.ColorInterval
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}

	logger = logger.With("component", "web")
	s := &Server{
		cfg:        cfg,
		src:        src,
		logger:     logger,
		bodyHub:    hub.New("bodies", logger),
		colorHub:   hub.New("color", logger),
		colorReady: make(chan struct{}, 1),
	}

	app := fiber.New(fiber.Config{
		AppName:               "kinectd",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/bodies", s.handleBodies)
	api.Get("/bodies/:idx", s.handleBody)
	api.Get("/intrinsics", s.handleIntrinsics)
	api.Get("/faces/:idx", s.handleFace)
	api.Get("/faces/:idx/vertices", s.handleFaceVertices)
	api.Get("/color.jpg", s.handleColorJPEG)
	api.Get("/infrared.png", s.handleInfraredPNG)
	api.Get("/color/updating", s.handleGetColorUpdating)
	api.Put("/color/updating", s.handleSetColorUpdating)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/bodies", websocket.New(s.handleBodiesWS))
	app.Get("/ws/color", websocket.New(s.handleColorWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.bodyHub.Run(ctx)
	go s.colorHub.Run(ctx)
	go s.colorLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.logger.Info("web server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			return err
		}
		s.logger.Info("web server stopped")
		return nil
	}
}

// HandleUpdate is the poller's update hook. It runs on the poll goroutine,
// so anything expensive is handed off.
func (s *Server) HandleUpdate(kind sensor.StreamKind) {
	switch kind {
	case sensor.StreamBody:
		if s.bodyHub.ClientCount() == 0 {
			return
		}
		frame := dto.FromBodyFrame(s.src.BodyFrame(), s.src.DeviceID())
		if err := s.bodyHub.BroadcastJSON(frame); err != nil {
			s.logger.Warn("body frame encode failed", "error", err)
		}
	case sensor.StreamColor:
		if s.colorHub.ClientCount() == 0 {
			return
		}
		select {
		case s.colorReady <- struct{}{}:
		default:
		}
	}
}

// colorLoop encodes color frames for /ws/color, at most one per interval.
func (s *Server) colorLoop(ctx context.Context) {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.colorReady:
		}
		if wait := s.cfg.ColorInterval - time.Since(last); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
		last = time.Now()

		tex := s.src.ColorTexture()
		var buf bytes.Buffer
		if err := tex.EncodeJPEG(&buf, s.cfg.JPEGQuality); err != nil {
			s.logger.Warn("color frame encode failed", "error", err)
			continue
		}
		s.colorHub.BroadcastBinary(buf.Bytes())
	}
}

// Hubs returns the body and color hubs.
func (s *Server) Hubs() (bodies, color *hub.Hub) {
	return s.bodyHub, s.colorHub
}

func (s *Server) handleBodiesWS(c *websocket.Conn) {
	hub.NewClient(s.bodyHub, c).Run()
}

func (s *Server) handleColorWS(c *websocket.Conn) {
	hub.NewClient(s.colorHub, c).Run()
}

// errorStatus maps poller errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, device.ErrInvalidBodyIndex):
		return fiber.StatusBadRequest
	case errors.Is(err, device.ErrNotInitialized), errors.Is(err, sensor.ErrDeviceUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
