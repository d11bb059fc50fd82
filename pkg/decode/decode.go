// Package decode converts raw sensor buffers into consumer formats.
//
// Every function validates the source length against its frame description
// and reports a mismatch as sensor.ErrMalformedFrame. Destination slices are
// reused when they have enough capacity so the poll loop does not allocate
// per frame.
package decode

import (
	"math"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Grow returns buf resized to n, reallocating only when capacity is short.
func Grow[T any](buf []T, n int) []T {
	if cap(buf) < n {
		return make([]T, n)
	}
	return buf[:n]
}

// ColorBGRAToRGBA converts a BGRA color frame into RGBA pixels.
func ColorBGRAToRGBA(dst, src []byte, desc sensor.FrameDescription) ([]byte, error) {
	if desc.BytesPerPixel != 4 {
		return dst, sensor.Malformed(sensor.StreamColor, "expected 4 bytes per pixel, got %d", desc.BytesPerPixel)
	}
	if len(src) != desc.Bytes() {
		return dst, sensor.Malformed(sensor.StreamColor, "expected %d bytes for %dx%d, got %d",
			desc.Bytes(), desc.Width, desc.Height, len(src))
	}

	dst = Grow(dst, len(src))
	for i := 0; i < len(src); i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = 0xFF
	}
	return dst, nil
}

// InfraredTo8Bit keeps the high byte of each 16-bit infrared intensity.
func InfraredTo8Bit(dst []byte, src []uint16, desc sensor.FrameDescription) ([]byte, error) {
	if len(src) != desc.Pixels() {
		return dst, sensor.Malformed(sensor.StreamInfrared, "expected %d pixels for %dx%d, got %d",
			desc.Pixels(), desc.Width, desc.Height, len(src))
	}

	dst = Grow(dst, len(src))
	for i, v := range src {
		dst[i] = byte(v >> 8)
	}
	return dst, nil
}

// MergeDepth pairs each depth sample with the body index at the same pixel.
// A nil bodyIndex marks every pixel as sensor.NoBody.
func MergeDepth(dst []sensor.DepthPixel, depth []uint16, bodyIndex []byte, desc sensor.FrameDescription) ([]sensor.DepthPixel, error) {
	if len(depth) != desc.Pixels() {
		return dst, sensor.Malformed(sensor.StreamDepth, "expected %d pixels for %dx%d, got %d",
			desc.Pixels(), desc.Width, desc.Height, len(depth))
	}
	if bodyIndex != nil && len(bodyIndex) != len(depth) {
		return dst, sensor.Malformed(sensor.StreamBodyIndex, "body index has %d pixels, depth has %d",
			len(bodyIndex), len(depth))
	}

	dst = Grow(dst, len(depth))
	for i, d := range depth {
		idx := uint8(sensor.NoBody)
		if bodyIndex != nil {
			idx = bodyIndex[i]
		}
		dst[i] = sensor.DepthPixel{Depth: d, BodyIndex: idx}
	}
	return dst, nil
}

// BodyIndexCopy validates and copies a body-index frame.
func BodyIndexCopy(dst, src []byte, desc sensor.FrameDescription) ([]byte, error) {
	if len(src) != desc.Pixels() {
		return dst, sensor.Malformed(sensor.StreamBodyIndex, "expected %d pixels for %dx%d, got %d",
			desc.Pixels(), desc.Width, desc.Height, len(src))
	}
	dst = Grow(dst, len(src))
	copy(dst, src)
	return dst, nil
}

// DepthAt returns the depth under a depth-space point, or 0 when the point
// falls outside the frame or is not finite.
func DepthAt(depth []uint16, desc sensor.FrameDescription, p sensor.DepthSpacePoint) uint16 {
	if math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) || math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return 0
	}
	x := int(p.X + 0.5)
	y := int(p.Y + 0.5)
	if x < 0 || y < 0 || x >= desc.Width || y >= desc.Height {
		return 0
	}
	i := y*desc.Width + x
	if i >= len(depth) {
		return 0
	}
	return depth[i]
}

// ProjectJoints fills each joint's depth-space point and the depth under it.
// depth may be nil when no depth frame has been seen yet; joints then keep a
// zero depth value.
func ProjectJoints(b *sensor.Body, m sensor.CoordinateMapper, depth []uint16, desc sensor.FrameDescription) {
	if m == nil || !b.Tracked {
		return
	}
	for i := range b.Joints {
		j := &b.Joints[i]
		j.DepthPoint = m.MapCameraPointToDepthSpace(j.Position)
		j.Depth = 0
		if depth != nil {
			j.Depth = DepthAt(depth, desc, j.DepthPoint)
		}
	}
}
