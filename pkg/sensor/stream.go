// Package sensor describes the surface of a depth camera SDK.
//
// A Device exposes one Reader per frame stream (color, depth, infrared,
// body, body index), a CoordinateMapper between camera, depth and color
// space, and per-body face trackers. Backends (mock, webcam, remote)
// implement these interfaces; the device poller consumes them.
//
// All Reader and tracker acquire calls are non-blocking: when no new frame
// has arrived since the previous call they return ErrNoFrame.
package sensor

import (
	"fmt"
	"strings"
	"time"
)

// StreamKind identifies one category of sensor data.
type StreamKind int

const (
	StreamColor StreamKind = iota
	StreamDepth
	StreamInfrared
	StreamBody
	StreamBodyIndex
	StreamFace
	StreamHDFace

	numStreams
)

// NumStreams is the number of stream kinds.
const NumStreams = int(numStreams)

var streamNames = [NumStreams]string{
	StreamColor:     "color",
	StreamDepth:     "depth",
	StreamInfrared:  "infrared",
	StreamBody:      "body",
	StreamBodyIndex: "body_index",
	StreamFace:      "face",
	StreamHDFace:    "hd_face",
}

// String returns the stream name used in logs, configs and JSON.
func (k StreamKind) String() string {
	if k < 0 || int(k) >= NumStreams {
		return fmt.Sprintf("stream(%d)", int(k))
	}
	return streamNames[k]
}

// Valid reports whether k names a known stream.
func (k StreamKind) Valid() bool {
	return k >= 0 && int(k) < NumStreams
}

// ParseStreamKind parses a stream name ("color", "hd_face", ...).
func ParseStreamKind(s string) (StreamKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range streamNames {
		if name == s {
			return StreamKind(i), nil
		}
	}
	return 0, fmt.Errorf("sensor: unknown stream %q", s)
}

// AllStreams returns every stream kind in acquisition order.
func AllStreams() []StreamKind {
	kinds := make([]StreamKind, NumStreams)
	for i := range kinds {
		kinds[i] = StreamKind(i)
	}
	return kinds
}

// FrameDescription describes the pixel layout of an image-like stream.
type FrameDescription struct {
	Width         int `json:"width"`
	Height        int `json:"height"`
	BytesPerPixel int `json:"bytes_per_pixel"`
}

// Pixels returns the number of pixels in one frame.
func (d FrameDescription) Pixels() int {
	return d.Width * d.Height
}

// Bytes returns the size of one frame in bytes.
func (d FrameDescription) Bytes() int {
	return d.Pixels() * d.BytesPerPixel
}

// IsZero reports whether the description is unset.
func (d FrameDescription) IsZero() bool {
	return d.Width == 0 || d.Height == 0
}

// Native frame layouts of the v2 sensor.
var (
	ColorDescription     = FrameDescription{Width: 1920, Height: 1080, BytesPerPixel: 4}
	DepthDescription     = FrameDescription{Width: 512, Height: 424, BytesPerPixel: 2}
	InfraredDescription  = FrameDescription{Width: 512, Height: 424, BytesPerPixel: 2}
	BodyIndexDescription = FrameDescription{Width: 512, Height: 424, BytesPerPixel: 1}
)

// NoBody marks a body-index pixel that belongs to no tracked body.
const NoBody = 0xFF

// FrameHeader carries the bookkeeping common to all frames.
type FrameHeader struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Header returns the header itself so embedding types satisfy Frame.
func (h FrameHeader) Header() FrameHeader {
	return h
}

// Frame is one unit of data acquired from a Reader.
type Frame interface {
	Kind() StreamKind
	Header() FrameHeader
}

// ColorFrame holds a BGRA color image.
type ColorFrame struct {
	FrameHeader
	Desc FrameDescription
	Data []byte
}

func (*ColorFrame) Kind() StreamKind { return StreamColor }

// DepthFrame holds depth values in millimetres.
type DepthFrame struct {
	FrameHeader
	Desc FrameDescription
	Data []uint16

	// Reliable depth range of the sensor, in millimetres.
	MinReliable uint16
	MaxReliable uint16
}

func (*DepthFrame) Kind() StreamKind { return StreamDepth }

// InfraredFrame holds 16-bit infrared intensities.
type InfraredFrame struct {
	FrameHeader
	Desc FrameDescription
	Data []uint16
}

func (*InfraredFrame) Kind() StreamKind { return StreamInfrared }

// BodyIndexFrame maps each depth pixel to a body slot, or NoBody.
type BodyIndexFrame struct {
	FrameHeader
	Desc FrameDescription
	Data []byte
}

func (*BodyIndexFrame) Kind() StreamKind { return StreamBodyIndex }

// BodyFrame holds every body slot of one skeleton frame.
type BodyFrame struct {
	FrameHeader
	Bodies [MaxBodies]Body

	// FloorClipPlane is the floor plane (x, y, z, w) in camera space.
	FloorClipPlane [4]float64
}

func (*BodyFrame) Kind() StreamKind { return StreamBody }

// DepthPixel is one decoded depth sample with its body index.
type DepthPixel struct {
	Depth     uint16 `json:"depth"`
	BodyIndex uint8  `json:"body_index"`
}

// DepthSpacePoint is a pixel coordinate in the depth image.
type DepthSpacePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ColorSpacePoint is a pixel coordinate in the color image.
type ColorSpacePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CameraIntrinsics are the depth camera's calibration parameters.
type CameraIntrinsics struct {
	FocalLengthX                float64 `json:"focal_length_x"`
	FocalLengthY                float64 `json:"focal_length_y"`
	PrincipalPointX             float64 `json:"principal_point_x"`
	PrincipalPointY             float64 `json:"principal_point_y"`
	RadialDistortionSecondOrder float64 `json:"radial_distortion_second_order"`
	RadialDistortionFourthOrder float64 `json:"radial_distortion_fourth_order"`
	RadialDistortionSixthOrder  float64 `json:"radial_distortion_sixth_order"`
}

// IsZero reports whether the intrinsics have not been reported yet.
// The sensor returns all zeros until it has warmed up.
func (c CameraIntrinsics) IsZero() bool {
	return c.FocalLengthX == 0 && c.FocalLengthY == 0
}
