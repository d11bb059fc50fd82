// Package device owns a sensor connection and keeps the latest decoded
// frames in a snapshot that any goroutine can read.
//
// A Poller opens the device and one reader per enabled stream in Init.
// Run polls the readers on a single goroutine: frames are acquired and
// decoded without holding any lock, then swapped into the snapshot under
// the write lock. Accessors take the read lock only while copying out, so
// a reader never sees a half-written frame and never stalls the poll loop
// for longer than a copy.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/teslashibe/go-kinect/pkg/sensor"
	"github.com/teslashibe/go-kinect/pkg/texture"
)

// Poller polls a sensor device and caches its most recent frames.
type Poller struct {
	dev          sensor.Device
	cfg          Config
	logger       *slog.Logger
	onUpdate     func(sensor.StreamKind)
	pollInterval time.Duration

	// lifeMu serializes Init, Run start and Stop.
	lifeMu      sync.Mutex
	initialized bool
	releases    []release
	cancel      context.CancelFunc
	done        chan struct{}

	// Handles below are written by Init and Stop under lifeMu and read
	// only by the poll goroutine while it runs.
	readers [sensor.NumStreams]sensor.Reader
	mapper  sensor.CoordinateMapper
	faces   [sensor.MaxBodies]sensor.FaceTracker
	hdFaces [sensor.MaxBodies]sensor.HDFaceTracker
	descs   [sensor.NumStreams]sensor.FrameDescription

	running       atomic.Bool
	updatingColor atomic.Bool

	// mu guards snap. The poll goroutine is its only writer and may read
	// it without locking.
	mu   sync.RWMutex
	snap snapshot

	// Poll goroutine only.
	stage       stage
	rawDepth    []uint16
	rawIndex    []byte
	depthDesc   sensor.FrameDescription
	trackingIDs [sensor.MaxBodies]uint64

	texMu    sync.Mutex
	colorTex weak.Pointer[texture.Texture]
	irTex    weak.Pointer[texture.Texture]

	stats counters
}

// release undoes one acquisition made by Init.
type release struct {
	what string
	fn   func() error
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithUpdateHook registers fn to be called on the poll goroutine after a
// stream's data has been swapped into the snapshot. fn runs without any
// poller lock held and must not block for long.
func WithUpdateHook(fn func(sensor.StreamKind)) Option {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

// WithPollInterval overrides Config.PollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// New creates a poller for dev. The device is not touched until Init.
func New(dev sensor.Device, cfg Config, opts ...Option) (*Poller, error) {
	if dev == nil {
		return nil, errors.New("device: nil sensor device")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("device: invalid config: %w", err)
	}

	p := &Poller{
		dev:          dev,
		cfg:          cfg,
		logger:       slog.Default(),
		pollInterval: cfg.PollInterval,
	}
	if p.pollInterval == 0 {
		p.pollInterval = DefaultConfig().PollInterval
	}
	p.updatingColor.Store(cfg.UpdateColor)

	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "device", "backend", dev.Name())
	return p, nil
}

// Config returns the poller configuration.
func (p *Poller) Config() Config { return p.cfg }

// Init opens the device and subscribes to the enabled streams. Streams the
// backend does not support are logged and skipped. A failure to open the
// device is returned wrapping sensor.ErrDeviceUnavailable; the caller may
// retry. Init on an initialized poller fails with ErrAlreadyInitialized and
// leaves the existing subscriptions in place.
func (p *Poller) Init(ctx context.Context) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	if p.initialized {
		return ErrAlreadyInitialized
	}

	if err := p.dev.Open(ctx); err != nil {
		if !errors.Is(err, sensor.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", sensor.ErrDeviceUnavailable, err)
		}
		p.logger.Warn("sensor open failed", "error", err)
		return fmt.Errorf("device: open: %w", err)
	}
	p.push("device", p.dev.Close)

	if err := p.subscribe(); err != nil {
		p.releaseAll()
		return err
	}

	p.initialized = true
	p.logger.Info("sensor initialized",
		"device_id", p.dev.ID(),
		"streams", p.openStreamsLocked(),
		"mapper", p.mapper != nil,
	)
	return nil
}

func (p *Poller) subscribe() error {
	for _, kind := range p.cfg.readerKinds() {
		r, err := p.dev.OpenReader(kind)
		if errors.Is(err, sensor.ErrStreamUnsupported) {
			p.logger.Warn("stream unsupported by backend", "stream", kind.String())
			continue
		}
		if err != nil {
			return fmt.Errorf("device: open %s reader: %w", kind, err)
		}
		desc, err := p.dev.Description(kind)
		if err != nil {
			_ = r.Close()
			return fmt.Errorf("device: describe %s: %w", kind, err)
		}
		p.readers[kind] = r
		p.descs[kind] = desc
		p.push(kind.String()+" reader", r.Close)
	}

	if p.cfg.Body || p.cfg.DepthCoordinates || p.cfg.ColorCoordinates {
		m, err := p.dev.CoordinateMapper()
		if err != nil {
			p.logger.Warn("coordinate mapper unavailable", "error", err)
		} else {
			p.mapper = m
			p.push("coordinate mapper", func() error {
				p.mapper = nil
				return nil
			})
		}
	}

	if p.readers[sensor.StreamBody] == nil {
		return nil
	}
	if p.cfg.Faces {
		for slot := range p.faces {
			ft, err := p.dev.OpenFaceTracker(slot)
			if errors.Is(err, sensor.ErrStreamUnsupported) {
				p.logger.Warn("stream unsupported by backend", "stream", sensor.StreamFace.String())
				break
			}
			if err != nil {
				return fmt.Errorf("device: open face tracker %d: %w", slot, err)
			}
			p.faces[slot] = ft
			p.push(fmt.Sprintf("face tracker %d", slot), ft.Close)
		}
	}
	if p.cfg.HDFaces {
		for slot := range p.hdFaces {
			ht, err := p.dev.OpenHDFaceTracker(slot)
			if errors.Is(err, sensor.ErrStreamUnsupported) {
				p.logger.Warn("stream unsupported by backend", "stream", sensor.StreamHDFace.String())
				break
			}
			if err != nil {
				return fmt.Errorf("device: open hd face tracker %d: %w", slot, err)
			}
			p.hdFaces[slot] = ht
			p.push(fmt.Sprintf("hd face tracker %d", slot), ht.Close)
		}
	}
	return nil
}

func (p *Poller) push(what string, fn func() error) {
	p.releases = append(p.releases, release{what: what, fn: fn})
}

// releaseAll closes everything Init acquired, newest first.
func (p *Poller) releaseAll() error {
	var errs []error
	for i := len(p.releases) - 1; i >= 0; i-- {
		r := p.releases[i]
		if err := r.fn(); err != nil {
			p.logger.Warn("release failed", "what", r.what, "error", err)
			errs = append(errs, fmt.Errorf("release %s: %w", r.what, err))
		}
	}
	p.releases = nil
	p.readers = [sensor.NumStreams]sensor.Reader{}
	p.faces = [sensor.MaxBodies]sensor.FaceTracker{}
	p.hdFaces = [sensor.MaxBodies]sensor.HDFaceTracker{}
	p.mapper = nil
	p.trackingIDs = [sensor.MaxBodies]uint64{}
	return errors.Join(errs...)
}

// Run polls the device until Stop is called or ctx is cancelled. It
// returns ErrNotInitialized before Init and ErrAlreadyRunning when another
// Run is active.
func (p *Poller) Run(ctx context.Context) error {
	p.lifeMu.Lock()
	if !p.initialized {
		p.lifeMu.Unlock()
		return ErrNotInitialized
	}
	if p.done != nil {
		p.lifeMu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running.Store(true)
	avail := p.dev.Available()
	p.lifeMu.Unlock()

	defer func() {
		p.running.Store(false)
		cancel()
		close(done)

		// Stop may already have cleared these while waiting on done.
		p.lifeMu.Lock()
		if p.done == done {
			p.done = nil
			p.cancel = nil
		}
		p.lifeMu.Unlock()
	}()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.logger.Info("poll loop started", "interval", p.pollInterval)
	for p.running.Load() {
		select {
		case <-ctx.Done():
			p.logger.Info("poll loop stopped", "reason", ctx.Err())
			return nil
		case _, ok := <-avail:
			if !ok {
				p.logger.Warn("device frame signal closed, falling back to interval polling")
				avail = nil
				continue
			}
		case <-ticker.C:
		}
		p.poll()
	}
	p.logger.Info("poll loop stopped", "reason", "stop")
	return nil
}

// Running reports whether a poll loop is active.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// Stop ends the poll loop, waits for it to return and releases face
// trackers, readers, the coordinate mapper and the device in reverse
// acquisition order. Stop is idempotent. The last snapshot stays readable.
func (p *Poller) Stop() error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.running.Store(false)
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
	p.cancel = nil
	p.done = nil

	if !p.initialized {
		return nil
	}
	p.initialized = false

	err := p.releaseAll()
	p.logger.Info("sensor released", "device_id", p.dev.ID())
	if err != nil {
		return fmt.Errorf("device: stop: %w", err)
	}
	return nil
}

// IsOpen reports whether the poller holds an open device.
func (p *Poller) IsOpen() bool {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	return p.initialized
}

// OpenStreams lists the streams with a live reader or tracker.
func (p *Poller) OpenStreams() []sensor.StreamKind {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	return p.openStreamsLocked()
}

func (p *Poller) openStreamsLocked() []sensor.StreamKind {
	var kinds []sensor.StreamKind
	for _, k := range sensor.AllStreams() {
		if p.readers[k] != nil {
			kinds = append(kinds, k)
		}
	}
	if p.faces[0] != nil {
		kinds = append(kinds, sensor.StreamFace)
	}
	if p.hdFaces[0] != nil {
		kinds = append(kinds, sensor.StreamHDFace)
	}
	return kinds
}

// Available reports whether the device is open and connected.
func (p *Poller) Available() bool {
	return p.IsOpen() && p.dev.IsAvailable()
}

// DeviceID returns the identifier of the underlying device.
func (p *Poller) DeviceID() string {
	return p.dev.ID()
}

// Backend returns the backend name of the underlying device.
func (p *Poller) Backend() string {
	return p.dev.Name()
}

// SetUpdatingColor switches color decoding on or off for subsequent poll
// cycles. The color reader stays open either way.
func (p *Poller) SetUpdatingColor(on bool) {
	if p.updatingColor.Swap(on) != on {
		p.logger.Info("color updates toggled", "enabled", on)
	}
}

// IsUpdatingColor reports whether color frames are being decoded.
func (p *Poller) IsUpdatingColor() bool {
	return p.updatingColor.Load()
}
