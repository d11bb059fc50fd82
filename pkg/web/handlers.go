package web

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-kinect/pkg/device"
	"github.com/teslashibe/go-kinect/pkg/dto"
	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// handleStatus returns the poller and device state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	streams := s.src.OpenStreams()
	names := make([]string, len(streams))
	for i, k := range streams {
		names[i] = k.String()
	}
	return c.JSON(dto.Status{
		DeviceID:      s.src.DeviceID(),
		Backend:       s.src.Backend(),
		Open:          s.src.IsOpen(),
		Available:     s.src.Available(),
		Running:       s.src.Running(),
		UpdatingColor: s.src.IsUpdatingColor(),
		Streams:       names,
		TrackedBodies: len(s.src.TrackedBodies()),
		LastFrame:     s.src.Stats().LastFrame,
	})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.src.Stats())
}

// handleBodies returns the latest body frame with tracked bodies only
func (s *Server) handleBodies(c *fiber.Ctx) error {
	return c.JSON(dto.FromBodyFrame(s.src.BodyFrame(), s.src.DeviceID()))
}

// bodyIndex parses the :idx parameter. Range checks are left to the
// poller so the error is the same everywhere.
func bodyIndex(c *fiber.Ctx) (int, error) {
	idx, err := c.ParamsInt("idx")
	if err != nil {
		return 0, device.ErrInvalidBodyIndex
	}
	return idx, nil
}

func (s *Server) handleBody(c *fiber.Ctx) error {
	idx, err := bodyIndex(c)
	if err == nil {
		var b sensor.Body
		if b, err = s.src.Body(idx); err == nil {
			return c.JSON(dto.FromBody(idx, b))
		}
	}
	return fail(c, err)
}

func (s *Server) handleIntrinsics(c *fiber.Ctx) error {
	return c.JSON(dto.FromIntrinsics(s.src.CameraIntrinsics()))
}

func (s *Server) handleFace(c *fiber.Ctx) error {
	idx, err := bodyIndex(c)
	if err == nil {
		var f sensor.FaceFrame
		if f, err = s.src.Face(idx); err == nil {
			return c.JSON(dto.FromFace(idx, f))
		}
	}
	return fail(c, err)
}

func (s *Server) handleFaceVertices(c *fiber.Ctx) error {
	idx, err := bodyIndex(c)
	if err != nil {
		return fail(c, err)
	}
	verts, err := s.src.FaceVertices(idx)
	if err != nil {
		return fail(c, err)
	}
	status, err := s.src.FaceModelStatus(idx)
	if err != nil {
		return fail(c, err)
	}
	var tris []uint32
	if c.QueryBool("triangles") {
		tris = s.src.FaceTriangles()
	}
	return c.JSON(dto.FromFaceMesh(idx, status, verts, tris))
}

// handleColorJPEG returns the latest color frame as a JPEG
func (s *Server) handleColorJPEG(c *fiber.Ctx) error {
	if s.src.LastFrame(sensor.StreamColor).Seq == 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no color frame yet",
		})
	}
	quality := c.QueryInt("quality", s.cfg.JPEGQuality)
	if quality < 1 || quality > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "quality must be between 1 and 100",
		})
	}

	var buf bytes.Buffer
	if err := s.src.ColorTexture().EncodeJPEG(&buf, quality); err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(buf.Bytes())
}

// handleInfraredPNG returns the latest infrared frame as a PNG
func (s *Server) handleInfraredPNG(c *fiber.Ctx) error {
	if s.src.LastFrame(sensor.StreamInfrared).Seq == 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no infrared frame yet",
		})
	}

	var buf bytes.Buffer
	if err := s.src.InfraredTexture().EncodePNG(&buf); err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(buf.Bytes())
}

// ColorUpdatingRequest is the body of PUT /api/color/updating.
type ColorUpdatingRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleGetColorUpdating(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"enabled": s.src.IsUpdatingColor()})
}

func (s *Server) handleSetColorUpdating(c *fiber.Ctx) error {
	var req ColorUpdatingRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": `body must be {"enabled": true|false}`,
		})
	}
	s.src.SetUpdatingColor(*req.Enabled)
	return c.JSON(fiber.Map{"enabled": s.src.IsUpdatingColor()})
}

func fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	msg := err.Error()
	if status == fiber.StatusBadRequest {
		msg = "invalid body index"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
