package mock

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// animationUnitCount matches the sensor's HD face animation units.
const animationUnitCount = 17

// faceTracker produces 2-D face frames for the body it is attached to.
// All fields are guarded by dev.mu.
type faceTracker struct {
	dev  *Device
	slot int

	trackingID uint64
	latest     *sensor.FaceFrame
	lastSeq    uint64
	closed     bool
}

func (f *faceTracker) SetTrackingID(id uint64) {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	f.trackingID = id
}

func (f *faceTracker) TrackingID() uint64 {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	return f.trackingID
}

func (f *faceTracker) generate(hdr sensor.FrameHeader) {
	if f.closed || f.trackingID == 0 {
		return
	}
	body, ok := f.dev.bodyByID(f.trackingID)
	if !ok {
		f.latest = &sensor.FaceFrame{FrameHeader: hdr, TrackingID: f.trackingID}
		return
	}

	m := f.dev.mapperFn
	head := body.Joints[sensor.JointHead].Position
	center := m.cameraToColor(head)
	half := m.colorFocal * 0.1 / head.Z

	frame := &sensor.FaceFrame{
		FrameHeader: hdr,
		TrackingID:  f.trackingID,
		Valid:       true,
		BoundingBox: sensor.Rect{
			Left:   int(center.X - half),
			Top:    int(center.Y - half),
			Right:  int(center.X + half),
			Bottom: int(center.Y + half),
		},
		Rotation: identity,
	}
	offsets := [sensor.FacePointCount]r3.Vec{
		sensor.FacePointEyeLeft:          {X: -0.03, Y: 0.03},
		sensor.FacePointEyeRight:         {X: 0.03, Y: 0.03},
		sensor.FacePointNose:             {},
		sensor.FacePointMouthCornerLeft:  {X: -0.025, Y: -0.04},
		sensor.FacePointMouthCornerRight: {X: 0.025, Y: -0.04},
	}
	for i, off := range offsets {
		frame.Points[i] = m.cameraToColor(r3.Add(head, off))
	}
	frame.Properties[sensor.FacePropertyEngaged] = sensor.DetectionYes
	frame.Properties[sensor.FacePropertyHappy] = sensor.DetectionMaybe
	frame.Properties[sensor.FacePropertyWearingGlasses] = sensor.DetectionNo
	f.latest = frame
}

func (f *faceTracker) AcquireLatest() (*sensor.FaceFrame, error) {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()

	if f.closed {
		return nil, sensor.ErrClosed
	}
	if f.latest == nil || f.latest.Seq == f.lastSeq {
		return nil, sensor.ErrNoFrame
	}
	f.lastSeq = f.latest.Seq
	return f.latest, nil
}

func (f *faceTracker) Close() error {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.dev.dropFace(f)
	f.dev.handles.Add(-1)
	return nil
}

// hdFaceTracker produces HD face frames and simulates the model builder.
type hdFaceTracker struct {
	dev  *Device
	slot int

	trackingID uint64
	collected  int
	model      *faceModel
	latest     *sensor.HDFaceFrame
	lastSeq    uint64
	closed     bool
}

func (h *hdFaceTracker) SetTrackingID(id uint64) {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if h.trackingID != id {
		h.trackingID = id
		h.collected = 0
	}
}

func (h *hdFaceTracker) TrackingID() uint64 {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	return h.trackingID
}

func (h *hdFaceTracker) generate(hdr sensor.FrameHeader) {
	if h.closed || h.trackingID == 0 {
		return
	}
	body, ok := h.dev.bodyByID(h.trackingID)
	if !ok {
		h.latest = &sensor.HDFaceFrame{FrameHeader: hdr, TrackingID: h.trackingID}
		return
	}

	status := sensor.ModelStatusCollecting
	if h.collected >= h.dev.cfg.ModelFrames {
		status = sensor.ModelStatusComplete
	} else {
		h.collected++
	}

	h.latest = &sensor.HDFaceFrame{
		FrameHeader: hdr,
		TrackingID:  h.trackingID,
		Valid:       true,
		Alignment: sensor.FaceAlignment{
			HeadPivot:      body.Joints[sensor.JointHead].Position,
			Orientation:    identity,
			AnimationUnits: make([]float64, animationUnitCount),
			Quality:        sensor.AlignmentQualityHigh,
		},
		Status: status,
		Model:  h.model,
	}
}

func (h *hdFaceTracker) AcquireLatest() (*sensor.HDFaceFrame, error) {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()

	if h.closed {
		return nil, sensor.ErrClosed
	}
	if h.latest == nil || h.latest.Seq == h.lastSeq {
		return nil, sensor.ErrNoFrame
	}
	h.lastSeq = h.latest.Seq
	return h.latest, nil
}

func (h *hdFaceTracker) Close() error {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.dev.dropHDFace(h)
	h.dev.handles.Add(-1)
	return nil
}

// bodyByID finds a tracked body. Called with dev.mu held.
func (d *Device) bodyByID(id uint64) (sensor.Body, bool) {
	for _, b := range d.bodies {
		if b.Tracked && b.TrackingID == id {
			return b, true
		}
	}
	return sensor.Body{}, false
}

func (d *Device) dropFace(f *faceTracker) {
	for i, ft := range d.faces {
		if ft == f {
			d.faces = append(d.faces[:i], d.faces[i+1:]...)
			return
		}
	}
}

func (d *Device) dropHDFace(h *hdFaceTracker) {
	for i, ht := range d.hdFaces {
		if ht == h {
			d.hdFaces = append(d.hdFaces[:i], d.hdFaces[i+1:]...)
			return
		}
	}
}

// faceModel is an ellipsoid head mesh.
type faceModel struct {
	vertices  int
	triangles []uint32
}

func newFaceModel(vertices int) *faceModel {
	tris := make([]uint32, 0, (vertices-2)*3)
	for i := 0; i+2 < vertices; i++ {
		tris = append(tris, uint32(i), uint32(i+1), uint32(i+2))
	}
	return &faceModel{vertices: vertices, triangles: tris}
}

func (m *faceModel) VertexCount() int { return m.vertices }

func (m *faceModel) Triangles() []uint32 {
	out := make([]uint32, len(m.triangles))
	copy(out, m.triangles)
	return out
}

// Vertices spreads the mesh over the front half of an ellipsoid centred on
// the head pivot and rotated by the alignment orientation.
func (m *faceModel) Vertices(a sensor.FaceAlignment) ([]r3.Vec, error) {
	if a.HeadPivot.Z <= 0 {
		return nil, fmt.Errorf("%w: head pivot behind sensor", sensor.ErrMalformedFrame)
	}

	q := a.Orientation
	if q == (quat.Number{}) {
		q = identity
	}
	qc := quat.Conj(q)

	out := make([]r3.Vec, m.vertices)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := range out {
		// Fibonacci spiral on a hemisphere facing the sensor.
		y := 1 - float64(i)/float64(m.vertices-1)*2
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		local := r3.Vec{
			X: 0.075 * r * math.Cos(theta),
			Y: 0.11 * y,
			Z: -0.09 * math.Abs(r*math.Sin(theta)),
		}
		rot := quat.Mul(quat.Mul(q, quat.Number{Imag: local.X, Jmag: local.Y, Kmag: local.Z}), qc)
		out[i] = r3.Add(a.HeadPivot, r3.Vec{X: rot.Imag, Y: rot.Jmag, Z: rot.Kmag})
	}
	return out, nil
}

var (
	_ sensor.FaceTracker   = (*faceTracker)(nil)
	_ sensor.HDFaceTracker = (*hdFaceTracker)(nil)
	_ sensor.FaceModel     = (*faceModel)(nil)
)
