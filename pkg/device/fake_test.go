package device

import (
	"context"
	"errors"
	"sync"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// fakeDevice serves scripted frames and records lifecycle calls.
type fakeDevice struct {
	mu      sync.Mutex
	open    bool
	avail   chan struct{}
	readers map[sensor.StreamKind]*fakeReader
	calls   []string
	descs   map[sensor.StreamKind]sensor.FrameDescription
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		readers: make(map[sensor.StreamKind]*fakeReader),
		descs: map[sensor.StreamKind]sensor.FrameDescription{
			sensor.StreamColor: {Width: 2, Height: 1, BytesPerPixel: 4},
			sensor.StreamDepth: {Width: 2, Height: 2, BytesPerPixel: 2},
		},
	}
}

func (d *fakeDevice) ID() string   { return "fake-0" }
func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	d.avail = make(chan struct{}, 1)
	d.calls = append(d.calls, "open device")
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	close(d.avail)
	d.calls = append(d.calls, "close device")
	return nil
}

func (d *fakeDevice) Available() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.avail
}

func (d *fakeDevice) IsAvailable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *fakeDevice) Description(kind sensor.StreamKind) (sensor.FrameDescription, error) {
	return d.descs[kind], nil
}

func (d *fakeDevice) OpenReader(kind sensor.StreamKind) (sensor.Reader, error) {
	switch kind {
	case sensor.StreamColor, sensor.StreamDepth, sensor.StreamBody:
	default:
		return nil, &sensor.StreamError{Stream: kind, Err: sensor.ErrStreamUnsupported}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r := &fakeReader{dev: d, kind: kind}
	d.readers[kind] = r
	d.calls = append(d.calls, "open "+kind.String())
	return r, nil
}

func (d *fakeDevice) CoordinateMapper() (sensor.CoordinateMapper, error) {
	return nil, &sensor.StreamError{Stream: sensor.StreamDepth, Err: sensor.ErrStreamUnsupported}
}

func (d *fakeDevice) OpenFaceTracker(int) (sensor.FaceTracker, error) {
	return nil, &sensor.StreamError{Stream: sensor.StreamFace, Err: sensor.ErrStreamUnsupported}
}

func (d *fakeDevice) OpenHDFaceTracker(int) (sensor.HDFaceTracker, error) {
	return nil, &sensor.StreamError{Stream: sensor.StreamHDFace, Err: sensor.ErrStreamUnsupported}
}

func (d *fakeDevice) reader(kind sensor.StreamKind) *fakeReader {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readers[kind]
}

func (d *fakeDevice) callLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// push queues a frame (or an error) and signals the poller.
func (d *fakeDevice) push(kind sensor.StreamKind, f sensor.Frame, err error) {
	r := d.reader(kind)
	r.mu.Lock()
	r.queue = append(r.queue, fakeResult{frame: f, err: err})
	r.mu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		select {
		case d.avail <- struct{}{}:
		default:
		}
	}
}

type fakeResult struct {
	frame sensor.Frame
	err   error
}

type fakeReader struct {
	dev  *fakeDevice
	kind sensor.StreamKind

	mu    sync.Mutex
	queue []fakeResult
}

func (r *fakeReader) Kind() sensor.StreamKind { return r.kind }

func (r *fakeReader) AcquireLatest() (sensor.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, sensor.ErrNoFrame
	}
	res := r.queue[0]
	r.queue = r.queue[1:]
	return res.frame, res.err
}

func (r *fakeReader) Close() error {
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()
	r.dev.calls = append(r.dev.calls, "close "+r.kind.String())
	return nil
}

var errFlaky = errors.New("usb transfer failed")
