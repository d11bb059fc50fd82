//go:build gocv

package webcam

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Compiled reports whether capture support is built in.
const Compiled = true

// Device captures from a local camera.
type Device struct {
	*core

	openMu   sync.Mutex
	capture  *gocv.VideoCapture
	detector *yunet
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a webcam device. The camera is not opened until Open.
func New(cfg Config, logger *slog.Logger) (sensor.Device, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("webcam: invalid config: %s", strings.Join(errs, "; "))
	}
	return &Device{core: newCore(cfg, logger)}, nil
}

// Open starts capture. A missing face model only disables bodies.
func (d *Device) Open(ctx context.Context) error {
	d.openMu.Lock()
	defer d.openMu.Unlock()

	if d.capture != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", sensor.ErrDeviceUnavailable, err)
	}

	capture, err := gocv.OpenVideoCapture(d.cfg.Camera)
	if err != nil {
		return fmt.Errorf("%w: open camera %d: %w", sensor.ErrDeviceUnavailable, d.cfg.Camera, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: camera %d did not open", sensor.ErrDeviceUnavailable, d.cfg.Camera)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(d.cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(d.cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(d.cfg.Framerate))

	det, err := newYuNet(d.cfg)
	if err != nil {
		d.logger.Warn("face detection disabled", "error", err)
	}

	d.capture = capture
	d.detector = det
	d.stop = make(chan struct{})
	d.setOpen(true)

	d.wg.Add(1)
	go d.captureLoop(d.stop)

	d.logger.Info("webcam opened",
		"device_id", d.id,
		"size", fmt.Sprintf("%dx%d", d.cfg.Width, d.cfg.Height),
		"fps", d.cfg.Framerate,
		"faces", det != nil,
	)
	return nil
}

func (d *Device) captureLoop(stop <-chan struct{}) {
	defer d.wg.Done()

	raw := gocv.NewMat()
	defer raw.Close()
	frame := gocv.NewMat()
	defer frame.Close()
	bgra := gocv.NewMat()
	defer bgra.Close()

	size := image.Pt(d.cfg.Width, d.cfg.Height)
	retry := time.Second / time.Duration(d.cfg.Framerate)

	for n := 0; ; n++ {
		select {
		case <-stop:
			return
		default:
		}

		if ok := d.capture.Read(&raw); !ok || raw.Empty() {
			d.logger.Debug("camera read returned no frame")
			select {
			case <-stop:
				return
			case <-time.After(retry):
			}
			continue
		}

		src := raw
		if raw.Cols() != size.X || raw.Rows() != size.Y {
			gocv.Resize(raw, &frame, size, 0, 0, gocv.InterpolationLinear)
			src = frame
		}
		gocv.CvtColor(src, &bgra, gocv.ColorBGRToBGRA)

		var dets []Detection
		detected := false
		if d.detector != nil && n%d.cfg.DetectEvery == 0 {
			var err error
			if dets, err = d.detector.detect(src, d.cfg.ConfidenceThresh); err != nil {
				d.logger.Debug("face detection failed", "error", err)
			} else {
				detected = true
			}
		}

		d.publish(time.Now(), bgra.ToBytes(), dets, detected)
	}
}

// Close stops capture and releases the camera. The device can be opened
// again.
func (d *Device) Close() error {
	d.openMu.Lock()
	defer d.openMu.Unlock()

	if d.capture == nil {
		return nil
	}
	d.setOpen(false)
	close(d.stop)
	d.wg.Wait()

	err := d.capture.Close()
	d.capture = nil
	if d.detector != nil {
		d.detector.close()
		d.detector = nil
	}

	if n := d.OpenHandles(); n != 0 {
		d.logger.Warn("webcam closed with open handles", "handles", n)
	}
	d.logger.Info("webcam closed", "device_id", d.id)
	return err
}

var _ sensor.Device = (*Device)(nil)
