package webcam

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// ErrNotCompiled is returned by New when the binary was built without the
// gocv tag.
var ErrNotCompiled = errors.New("webcam: built without gocv support")

// core turns captured frames and face detections into sensor frames and
// serves them through readers and face trackers. Capture itself lives in
// the gocv-tagged Device, which embeds core.
type core struct {
	cfg    Config
	logger *slog.Logger
	id     string
	cam    camera
	slots  *slotTracker

	mu      sync.Mutex
	open    bool
	seq     uint64
	color   *sensor.ColorFrame
	bodies  *sensor.BodyFrame
	faces   [sensor.MaxBodies]sensor.FaceFrame
	avail   chan struct{}
	handles atomic.Int64
}

func newCore(cfg Config, logger *slog.Logger) *core {
	if logger == nil {
		logger = slog.Default()
	}
	return &core{
		cfg:    cfg,
		logger: logger.With("component", "webcam", "camera", cfg.Camera),
		id:     uuid.NewString(),
		cam:    newCamera(cfg.Width, cfg.Height, cfg.HorizontalFOV),
		slots:  newSlotTracker(cfg.MatchDistance),
		avail:  make(chan struct{}, 1),
	}
}

// ID returns a random per-device identifier.
func (c *core) ID() string { return c.id }

// Name returns "webcam".
func (c *core) Name() string { return "webcam" }

func (c *core) colorDesc() sensor.FrameDescription {
	return sensor.FrameDescription{Width: c.cfg.Width, Height: c.cfg.Height, BytesPerPixel: 4}
}

// setOpen flips the open state. Closing closes the availability channel;
// opening creates a fresh one and forgets tracked faces.
func (c *core) setOpen(open bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open == open {
		return false
	}
	c.open = open
	if open {
		c.avail = make(chan struct{}, 1)
		c.slots = newSlotTracker(c.cfg.MatchDistance)
	} else {
		close(c.avail)
	}
	return true
}

// publish stores one captured frame. When detected is false no detection
// ran on this frame and the previous bodies stay current.
func (c *core) publish(ts time.Time, bgra []byte, dets []Detection, detected bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return 0
	}
	c.seq++
	hdr := sensor.FrameHeader{Seq: c.seq, Timestamp: ts}

	if desc := c.colorDesc(); len(bgra) == desc.Bytes() {
		c.color = &sensor.ColorFrame{FrameHeader: hdr, Desc: desc, Data: bgra}
	} else if bgra != nil {
		c.logger.Warn("captured frame has wrong size", "bytes", len(bgra), "want", desc.Bytes())
	}

	if detected {
		bf := &sensor.BodyFrame{FrameHeader: hdr}
		idx, ids := c.slots.assign(dets, c.cam.width)
		for s := range bf.Bodies {
			c.faces[s] = sensor.FaceFrame{FrameHeader: hdr}
			if idx[s] < 0 {
				continue
			}
			d := dets[idx[s]]
			if b, ok := c.cam.body(d, ids[s]); ok {
				bf.Bodies[s] = b
				c.faces[s] = face(d, ids[s], hdr)
			}
		}
		c.bodies = bf
	}

	select {
	case c.avail <- struct{}{}:
	default:
	}
	return c.seq
}

// Available returns the frame-ready signal.
func (c *core) Available() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avail
}

// IsAvailable reports whether the camera is open.
func (c *core) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func unsupported(kind sensor.StreamKind) error {
	return &sensor.StreamError{Stream: kind, Err: sensor.ErrStreamUnsupported}
}

// Description returns the color layout; bodies and faces have none.
func (c *core) Description(kind sensor.StreamKind) (sensor.FrameDescription, error) {
	switch kind {
	case sensor.StreamColor:
		return c.colorDesc(), nil
	case sensor.StreamBody, sensor.StreamFace:
		return sensor.FrameDescription{}, nil
	default:
		return sensor.FrameDescription{}, unsupported(kind)
	}
}

// OpenReader opens the color or body reader.
func (c *core) OpenReader(kind sensor.StreamKind) (sensor.Reader, error) {
	if kind != sensor.StreamColor && kind != sensor.StreamBody {
		return nil, unsupported(kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, sensor.ErrNotOpen
	}
	c.handles.Add(1)
	return &reader{core: c, kind: kind}, nil
}

// CoordinateMapper is unsupported: there is no depth image to map into.
func (c *core) CoordinateMapper() (sensor.CoordinateMapper, error) {
	return nil, unsupported(sensor.StreamDepth)
}

// OpenFaceTracker opens a 2-D face tracker for a body slot.
func (c *core) OpenFaceTracker(slot int) (sensor.FaceTracker, error) {
	if slot < 0 || slot >= sensor.MaxBodies {
		return nil, &sensor.StreamError{Stream: sensor.StreamFace, Err: errors.New("body slot out of range")}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, sensor.ErrNotOpen
	}
	c.handles.Add(1)
	return &faceTracker{core: c, slot: slot}, nil
}

// OpenHDFaceTracker is unsupported: YuNet gives no face mesh.
func (c *core) OpenHDFaceTracker(int) (sensor.HDFaceTracker, error) {
	return nil, unsupported(sensor.StreamHDFace)
}

// OpenHandles returns the number of readers and trackers not yet closed.
func (c *core) OpenHandles() int {
	return int(c.handles.Load())
}

type reader struct {
	core    *core
	kind    sensor.StreamKind
	lastSeq uint64
	closed  bool
}

func (r *reader) Kind() sensor.StreamKind { return r.kind }

func (r *reader) AcquireLatest() (sensor.Frame, error) {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()

	if r.closed {
		return nil, sensor.ErrClosed
	}

	var f sensor.Frame
	switch r.kind {
	case sensor.StreamColor:
		if r.core.color != nil {
			f = r.core.color
		}
	case sensor.StreamBody:
		if r.core.bodies != nil {
			bf := *r.core.bodies
			f = &bf
		}
	}
	if f == nil || f.Header().Seq == r.lastSeq {
		return nil, sensor.ErrNoFrame
	}
	r.lastSeq = f.Header().Seq
	return f, nil
}

func (r *reader) Close() error {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.core.handles.Add(-1)
	return nil
}

type faceTracker struct {
	core       *core
	slot       int
	trackingID uint64
	lastSeq    uint64
	closed     bool
}

func (t *faceTracker) SetTrackingID(id uint64) {
	t.core.mu.Lock()
	defer t.core.mu.Unlock()
	t.trackingID = id
}

func (t *faceTracker) TrackingID() uint64 {
	t.core.mu.Lock()
	defer t.core.mu.Unlock()
	return t.trackingID
}

// AcquireLatest returns the slot's face. It is invalid unless the tracker
// targets the body currently in the slot.
func (t *faceTracker) AcquireLatest() (*sensor.FaceFrame, error) {
	t.core.mu.Lock()
	defer t.core.mu.Unlock()

	if t.closed {
		return nil, sensor.ErrClosed
	}
	f := t.core.faces[t.slot]
	if f.Seq == 0 || f.Seq == t.lastSeq {
		return nil, sensor.ErrNoFrame
	}
	t.lastSeq = f.Seq

	if t.trackingID == 0 || !f.Valid || f.TrackingID != t.trackingID {
		return &sensor.FaceFrame{FrameHeader: f.FrameHeader, TrackingID: t.trackingID}, nil
	}
	return &f, nil
}

func (t *faceTracker) Close() error {
	t.core.mu.Lock()
	defer t.core.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.core.handles.Add(-1)
	return nil
}

var (
	_ sensor.Reader      = (*reader)(nil)
	_ sensor.FaceTracker = (*faceTracker)(nil)
)
