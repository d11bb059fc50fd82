package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Device is a synthetic sensor.
type Device struct {
	cfg    Config
	logger *slog.Logger
	id     string

	// Failure injection
	openErr     error
	unsupported map[sensor.StreamKind]bool
	malformed   map[sensor.StreamKind]bool
	manual      bool
	flatDepth   bool

	mu       sync.Mutex
	open     bool
	seq      uint64
	started  time.Time
	frames   [sensor.NumStreams]sensor.Frame
	bodies   [sensor.MaxBodies]sensor.Body
	readers  [sensor.NumStreams]int
	faces    []*faceTracker
	hdFaces  []*hdFaceTracker
	avail    chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
	handles  atomic.Int64
	opens    atomic.Int64
	mapperFn *mapper
}

// Option configures a Device.
type Option func(*Device)

// WithOpenError makes Open fail with err.
func WithOpenError(err error) Option {
	return func(d *Device) {
		d.openErr = err
	}
}

// WithUnsupported removes streams from the device.
func WithUnsupported(kinds ...sensor.StreamKind) Option {
	return func(d *Device) {
		for _, k := range kinds {
			d.unsupported[k] = true
		}
	}
}

// WithMalformed truncates every frame of the given image streams by one
// element so that decoding fails.
func WithMalformed(kinds ...sensor.StreamKind) Option {
	return func(d *Device) {
		for _, k := range kinds {
			d.malformed[k] = true
		}
	}
}

// WithManualTick disables the internal ticker; frames are produced by Tick.
func WithManualTick() Option {
	return func(d *Device) {
		d.manual = true
	}
}

// WithFlatDepth fills each depth frame with a single value derived from the
// frame sequence, which makes torn reads detectable.
func WithFlatDepth() Option {
	return func(d *Device) {
		d.flatDepth = true
	}
}

// New creates a mock device. It does not start producing frames until Open.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Device{
		cfg:         cfg,
		logger:      logger,
		id:          uuid.NewString(),
		unsupported: make(map[sensor.StreamKind]bool),
		malformed:   make(map[sensor.StreamKind]bool),
		avail:       make(chan struct{}, 1),
	}
	d.mapperFn = newMapper(&d.cfg, d)

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ID returns a random per-device identifier.
func (d *Device) ID() string { return d.id }

// Name returns "mock".
func (d *Device) Name() string { return "mock" }

// Open starts frame generation.
func (d *Device) Open(ctx context.Context) error {
	if d.openErr != nil {
		return fmt.Errorf("%w: %w", sensor.ErrDeviceUnavailable, d.openErr)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", sensor.ErrDeviceUnavailable, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return nil
	}
	d.open = true
	d.started = time.Now()
	d.avail = make(chan struct{}, 1)
	d.opens.Add(1)

	if !d.manual {
		d.stopCh = make(chan struct{})
		d.wg.Add(1)
		go d.tickLoop(d.stopCh)
	}

	d.logger.Info("mock sensor opened",
		"device_id", d.id,
		"fps", d.cfg.FPS,
		"color", fmt.Sprintf("%dx%d", d.cfg.ColorWidth, d.cfg.ColorHeight),
		"depth", fmt.Sprintf("%dx%d", d.cfg.DepthWidth, d.cfg.DepthHeight),
		"bodies", d.cfg.Bodies,
	)
	return nil
}

func (d *Device) tickLoop(stop <-chan struct{}) {
	defer d.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(d.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Close stops frame generation. The device can be opened again.
func (d *Device) Close() error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil
	}
	d.open = false
	stop := d.stopCh
	d.stopCh = nil
	close(d.avail)
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		d.wg.Wait()
	}

	if n := d.handles.Load(); n != 0 {
		d.logger.Warn("mock sensor closed with open handles", "handles", n)
	}
	d.logger.Info("mock sensor closed", "device_id", d.id)
	return nil
}

// Available returns the frame-ready signal.
func (d *Device) Available() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.avail
}

// IsAvailable reports whether the device is open.
func (d *Device) IsAvailable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Description returns the frame layout of a stream.
func (d *Device) Description(kind sensor.StreamKind) (sensor.FrameDescription, error) {
	if d.unsupported[kind] {
		return sensor.FrameDescription{}, &sensor.StreamError{Stream: kind, Err: sensor.ErrStreamUnsupported}
	}
	switch kind {
	case sensor.StreamColor:
		return d.cfg.colorDesc(), nil
	case sensor.StreamDepth, sensor.StreamInfrared:
		return d.cfg.depthDesc(), nil
	case sensor.StreamBodyIndex:
		return d.cfg.bodyIndexDesc(), nil
	default:
		return sensor.FrameDescription{}, nil
	}
}

// OpenReader opens a frame reader.
func (d *Device) OpenReader(kind sensor.StreamKind) (sensor.Reader, error) {
	if !kind.Valid() || kind == sensor.StreamFace || kind == sensor.StreamHDFace || d.unsupported[kind] {
		return nil, &sensor.StreamError{Stream: kind, Err: sensor.ErrStreamUnsupported}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, sensor.ErrNotOpen
	}

	d.readers[kind]++
	d.handles.Add(1)
	return &reader{dev: d, kind: kind}, nil
}

// CoordinateMapper returns the pinhole mapper of the device.
func (d *Device) CoordinateMapper() (sensor.CoordinateMapper, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, sensor.ErrNotOpen
	}
	return d.mapperFn, nil
}

// OpenFaceTracker opens a 2-D face tracker for a body slot.
func (d *Device) OpenFaceTracker(slot int) (sensor.FaceTracker, error) {
	if err := d.checkSlot(sensor.StreamFace, slot); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, sensor.ErrNotOpen
	}

	ft := &faceTracker{dev: d, slot: slot}
	d.faces = append(d.faces, ft)
	d.handles.Add(1)
	return ft, nil
}

// OpenHDFaceTracker opens an HD face tracker for a body slot.
func (d *Device) OpenHDFaceTracker(slot int) (sensor.HDFaceTracker, error) {
	if err := d.checkSlot(sensor.StreamHDFace, slot); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, sensor.ErrNotOpen
	}

	ht := &hdFaceTracker{dev: d, slot: slot, model: newFaceModel(d.cfg.FaceVertices)}
	d.hdFaces = append(d.hdFaces, ht)
	d.handles.Add(1)
	return ht, nil
}

func (d *Device) checkSlot(kind sensor.StreamKind, slot int) error {
	if d.unsupported[kind] {
		return &sensor.StreamError{Stream: kind, Err: sensor.ErrStreamUnsupported}
	}
	if slot < 0 || slot >= sensor.MaxBodies {
		return &sensor.StreamError{Stream: kind, Err: fmt.Errorf("body slot %d out of range", slot)}
	}
	return nil
}

// OpenHandles returns the number of readers and trackers not yet closed.
func (d *Device) OpenHandles() int {
	return int(d.handles.Load())
}

// Opens returns how many times the device has been opened.
func (d *Device) Opens() int {
	return int(d.opens.Load())
}

// Seq returns the sequence number of the last generated frame set.
func (d *Device) Seq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// Tick generates one frame set and signals availability. It returns the
// new sequence number, or 0 when the device is not open.
func (d *Device) Tick() uint64 {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return 0
	}
	d.seq++
	seq := d.seq
	d.generate(seq)

	// Sent under the lock so Close cannot close the channel mid-send.
	select {
	case d.avail <- struct{}{}:
	default:
	}
	d.mu.Unlock()
	return seq
}

// reader serves the latest frame of one stream.
type reader struct {
	dev     *Device
	kind    sensor.StreamKind
	lastSeq uint64
	closed  bool
}

func (r *reader) Kind() sensor.StreamKind { return r.kind }

func (r *reader) AcquireLatest() (sensor.Frame, error) {
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()

	if r.closed {
		return nil, sensor.ErrClosed
	}
	f := r.dev.frames[r.kind]
	if f == nil || f.Header().Seq == r.lastSeq {
		return nil, sensor.ErrNoFrame
	}
	r.lastSeq = f.Header().Seq
	return f, nil
}

func (r *reader) Close() error {
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.dev.readers[r.kind]--
	r.dev.handles.Add(-1)
	return nil
}

var (
	_ sensor.Device = (*Device)(nil)
	_ sensor.Reader = (*reader)(nil)
)
