package device

import (
	"slices"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Bodies returns a copy of every body slot. Untracked slots have Tracked
// set to false.
func (p *Poller) Bodies() []sensor.Body {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]sensor.Body, sensor.MaxBodies)
	copy(out, p.snap.bodies[:])
	return out
}

// Body returns the body in slot idx. It fails with ErrInvalidBodyIndex
// when idx is outside [0, sensor.MaxBodies).
func (p *Poller) Body(idx int) (sensor.Body, error) {
	if err := checkIndex(idx); err != nil {
		return sensor.Body{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.bodies[idx], nil
}

// TrackedBodies returns the tracked bodies only, keyed by slot.
func (p *Poller) TrackedBodies() map[int]sensor.Body {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[int]sensor.Body)
	for i, b := range p.snap.bodies {
		if b.Tracked {
			out[i] = b
		}
	}
	return out
}

// BodyFrame returns the latest body frame as a single consistent value.
func (p *Poller) BodyFrame() sensor.BodyFrame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sensor.BodyFrame{
		FrameHeader:    p.snap.headers[sensor.StreamBody],
		Bodies:         p.snap.bodies,
		FloorClipPlane: p.snap.floorClipPlane,
	}
}

// DepthCoordinates returns the depth-space point of every color pixel
// from the latest depth frame, or nil before the first mapping.
func (p *Poller) DepthCoordinates() []sensor.DepthSpacePoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.snap.depthCoords)
}

// ColorCoordinates returns the color-space point of every depth pixel.
func (p *Poller) ColorCoordinates() []sensor.ColorSpacePoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.snap.colorCoords)
}

// CameraIntrinsics returns the depth camera calibration. It is zero until
// the sensor has reported it.
func (p *Poller) CameraIntrinsics() sensor.CameraIntrinsics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.intrinsics
}

// DepthData returns the latest depth frame merged with the body index.
func (p *Poller) DepthData() ([]sensor.DepthPixel, sensor.FrameHeader) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.snap.depth), p.snap.headers[sensor.StreamDepth]
}

// DepthDescription returns the layout of the cached depth frame.
func (p *Poller) DepthDescription() sensor.FrameDescription {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.depthDesc
}

// BodyIndex returns the latest body-index map.
func (p *Poller) BodyIndex() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.snap.bodyIndex)
}

// ColorPixels returns the latest color frame as RGBA.
func (p *Poller) ColorPixels() ([]byte, sensor.FrameDescription) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.snap.color), p.snap.colorDesc
}

// InfraredPixels returns the latest infrared frame as 8-bit intensities.
func (p *Poller) InfraredPixels() ([]byte, sensor.FrameDescription) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.snap.infrared), p.snap.irDesc
}

// Face returns the latest 2-D face result for a body slot.
func (p *Poller) Face(idx int) (sensor.FaceFrame, error) {
	if err := checkIndex(idx); err != nil {
		return sensor.FaceFrame{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.faces[idx], nil
}

// FaceVertices returns the HD face mesh of a body slot in camera space.
// It is empty while the slot has no tracked face.
func (p *Poller) FaceVertices(idx int) ([]r3.Vec, error) {
	if err := checkIndex(idx); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.snap.faceVertices[idx]), nil
}

// FaceTriangles returns the HD face mesh index buffer, shared by all slots.
func (p *Poller) FaceTriangles() []uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.snap.faceTriangles)
}

// FaceModelStatus returns the face model builder progress of a body slot.
func (p *Poller) FaceModelStatus(idx int) (sensor.ModelStatus, error) {
	if err := checkIndex(idx); err != nil {
		return sensor.ModelStatusNone, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.faceStatus[idx], nil
}

// LastFrame returns the header of the latest frame of a stream.
func (p *Poller) LastFrame(kind sensor.StreamKind) sensor.FrameHeader {
	if !kind.Valid() {
		return sensor.FrameHeader{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.headers[kind]
}

// Stats returns the poll counters.
func (p *Poller) Stats() Stats {
	s := Stats{
		Running:        p.running.Load(),
		Cycles:         p.stats.cycles.Load(),
		Frames:         make(map[string]uint64),
		DecodeFailures: make(map[string]uint64),
		ReadErrors:     make(map[string]uint64),

		TextureFailures: p.stats.textureFailures.Load(),
	}
	if ns := p.stats.lastFrame.Load(); ns != 0 {
		s.LastFrame = time.Unix(0, ns)
	}
	for _, k := range sensor.AllStreams() {
		s.Frames[k.String()] = p.stats.frames[k].Load()
		s.DecodeFailures[k.String()] = p.stats.decodeFailures[k].Load()
		s.ReadErrors[k.String()] = p.stats.readErrors[k].Load()
	}
	return s
}

func checkIndex(idx int) error {
	if idx < 0 || idx >= sensor.MaxBodies {
		return ErrInvalidBodyIndex
	}
	return nil
}
