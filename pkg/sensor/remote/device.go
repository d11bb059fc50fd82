package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-kinect/pkg/dto"
	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Device is a body-only sensor fed by an upstream kinectd.
type Device struct {
	cfg    Config
	logger *slog.Logger
	id     string

	// openMu serializes Open and Close so only one session dials.
	openMu sync.Mutex

	mu      sync.Mutex
	open    bool
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	avail   chan struct{}
	latest  *sensor.BodyFrame
	frames  uint64
	handles int

	connected    atomic.Bool
	received     atomic.Uint64
	decodeErrors atomic.Uint64
	reconnects   atomic.Uint64
}

// Stats reports connection activity.
type Stats struct {
	Connected    bool   `json:"connected"`
	Received     uint64 `json:"received"`
	DecodeErrors uint64 `json:"decode_errors"`
	Reconnects   uint64 `json:"reconnects"`
}

// New creates a remote device. Nothing is dialled until Open.
func New(cfg Config, logger *slog.Logger) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		cfg:    cfg,
		logger: logger.With("component", "remote", "url", cfg.URL),
		// Stable per upstream so reconnecting clients keep their identity.
		id:    uuid.NewSHA1(uuid.NameSpaceURL, []byte(cfg.URL)).String(),
		avail: make(chan struct{}, 1),
	}, nil
}

// ID returns an identifier derived from the upstream URL.
func (d *Device) ID() string { return d.id }

// Name returns "remote".
func (d *Device) Name() string { return "remote" }

// Open dials the upstream. The first dial must succeed; later connection
// losses are retried in the background.
func (d *Device) Open(ctx context.Context) error {
	d.openMu.Lock()
	defer d.openMu.Unlock()

	d.mu.Lock()
	if d.open {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	conn, err := d.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", sensor.ErrDeviceUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	d.mu.Lock()
	d.open = true
	d.conn = conn
	d.cancel = cancel
	d.done = done
	d.avail = make(chan struct{}, 1)
	// Frames of an earlier session are stale; seq keeps counting.
	d.latest = nil
	d.mu.Unlock()

	d.connected.Store(true)
	go d.run(runCtx, conn, done)

	d.logger.Info("remote sensor opened", "device_id", d.id)
	return nil
}

func (d *Device) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, d.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// run reads frames until ctx is cancelled, redialling on connection loss.
func (d *Device) run(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		err := d.readLoop(conn)
		d.connected.Store(false)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		d.logger.Warn("upstream connection lost", "error", err)

		if conn = d.reconnect(ctx); conn == nil {
			return
		}
	}
}

func (d *Device) readLoop(conn *websocket.Conn) error {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout)); err != nil {
			return err
		}
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			continue
		}
		d.handle(data)
	}
}

// reconnect dials with exponential backoff. It returns nil once ctx is done.
func (d *Device) reconnect(ctx context.Context) *websocket.Conn {
	delay := d.cfg.ReconnectBaseDelay

	for {
		d.logger.Info("attempting to reconnect", "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := d.dial(ctx)
		if err != nil {
			d.logger.Warn("reconnect failed", "error", err)
			delay = min(delay*2, d.cfg.ReconnectMaxDelay)
			continue
		}

		d.mu.Lock()
		if ctx.Err() != nil {
			d.mu.Unlock()
			conn.Close()
			return nil
		}
		d.conn = conn
		d.mu.Unlock()

		d.connected.Store(true)
		d.reconnects.Add(1)
		d.logger.Info("reconnected successfully")
		return conn
	}
}

// handle decodes one upstream message. Bad messages are counted and
// skipped; they do not drop the connection.
func (d *Device) handle(data []byte) {
	var msg dto.BodyFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		d.decodeErrors.Add(1)
		d.logger.Debug("body frame decode failed", "error", err)
		return
	}
	bf, err := msg.ToSensor()
	if err != nil {
		d.decodeErrors.Add(1)
		d.logger.Debug("body frame rejected", "error", err)
		return
	}
	d.received.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return
	}
	// Sequence numbers are local so they stay monotonic across upstream
	// restarts. The upstream timestamp is kept.
	d.frames++
	bf.Seq = d.frames
	d.latest = &bf

	select {
	case d.avail <- struct{}{}:
	default:
	}
}

// Close drops the connection and stops reconnecting. The device can be
// opened again.
func (d *Device) Close() error {
	d.openMu.Lock()
	defer d.openMu.Unlock()

	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil
	}
	d.open = false
	d.cancel()
	conn := d.conn
	d.conn = nil
	done := d.done
	close(d.avail)
	handles := d.handles
	d.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	<-done
	d.connected.Store(false)

	if handles != 0 {
		d.logger.Warn("remote sensor closed with open handles", "handles", handles)
	}
	d.logger.Info("remote sensor closed", "device_id", d.id)
	return nil
}

// Available is signalled for every decoded body frame.
func (d *Device) Available() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.avail
}

// IsAvailable reports whether the upstream is currently connected.
func (d *Device) IsAvailable() bool {
	return d.connected.Load()
}

// Stats returns connection counters.
func (d *Device) Stats() Stats {
	return Stats{
		Connected:    d.connected.Load(),
		Received:     d.received.Load(),
		DecodeErrors: d.decodeErrors.Load(),
		Reconnects:   d.reconnects.Load(),
	}
}

func unsupported(kind sensor.StreamKind) error {
	return &sensor.StreamError{Stream: kind, Err: sensor.ErrStreamUnsupported}
}

// Description reports the body stream only. Bodies have no pixel layout.
func (d *Device) Description(kind sensor.StreamKind) (sensor.FrameDescription, error) {
	if kind != sensor.StreamBody {
		return sensor.FrameDescription{}, unsupported(kind)
	}
	return sensor.FrameDescription{}, nil
}

// OpenReader opens the body reader. Other streams are unsupported.
func (d *Device) OpenReader(kind sensor.StreamKind) (sensor.Reader, error) {
	if kind != sensor.StreamBody {
		return nil, unsupported(kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, sensor.ErrNotOpen
	}
	d.handles++
	return &reader{dev: d}, nil
}

// CoordinateMapper is unsupported: joints arrive already projected.
func (d *Device) CoordinateMapper() (sensor.CoordinateMapper, error) {
	return nil, unsupported(sensor.StreamDepth)
}

func (d *Device) OpenFaceTracker(int) (sensor.FaceTracker, error) {
	return nil, unsupported(sensor.StreamFace)
}

func (d *Device) OpenHDFaceTracker(int) (sensor.HDFaceTracker, error) {
	return nil, unsupported(sensor.StreamHDFace)
}

type reader struct {
	dev     *Device
	lastSeq uint64
	closed  bool
}

func (r *reader) Kind() sensor.StreamKind { return sensor.StreamBody }

func (r *reader) AcquireLatest() (sensor.Frame, error) {
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()

	if r.closed {
		return nil, sensor.ErrClosed
	}
	f := r.dev.latest
	if f == nil || f.Seq == r.lastSeq {
		return nil, sensor.ErrNoFrame
	}
	r.lastSeq = f.Seq
	out := *f
	return &out, nil
}

func (r *reader) Close() error {
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.dev.handles--
	return nil
}

var (
	_ sensor.Device = (*Device)(nil)
	_ sensor.Reader = (*reader)(nil)
)
