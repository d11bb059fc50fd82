package sensor

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sentinel errors shared by all backends.
var (
	// ErrNoFrame is returned by non-blocking acquires when nothing new arrived.
	ErrNoFrame = errors.New("sensor: no new frame")

	// ErrDeviceUnavailable is returned when the device cannot be opened.
	ErrDeviceUnavailable = errors.New("sensor: device unavailable")

	// ErrStreamUnsupported is returned for streams a backend cannot provide.
	ErrStreamUnsupported = errors.New("sensor: stream unsupported")

	// ErrMalformedFrame is returned when a buffer does not match its description.
	ErrMalformedFrame = errors.New("sensor: malformed frame")

	// ErrClosed is returned when using a closed device or reader.
	ErrClosed = errors.New("sensor: closed")

	// ErrNotOpen is returned when using a device before Open.
	ErrNotOpen = errors.New("sensor: device not open")
)

// StreamError wraps an error with the stream it came from.
type StreamError struct {
	Stream StreamKind
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("sensor [%s]: %v", e.Stream, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Malformed returns an ErrMalformedFrame for the stream with detail.
func Malformed(kind StreamKind, format string, args ...any) error {
	return &StreamError{
		Stream: kind,
		Err:    fmt.Errorf("%w: %s", ErrMalformedFrame, fmt.Sprintf(format, args...)),
	}
}

// Reader delivers the newest frame of one stream.
type Reader interface {
	Kind() StreamKind

	// AcquireLatest returns the newest frame, or ErrNoFrame when no frame
	// arrived since the previous call. It never blocks.
	AcquireLatest() (Frame, error)

	Close() error
}

// FaceTracker tracks the 2-D face of one body.
type FaceTracker interface {
	// SetTrackingID retargets the tracker to a body. Zero detaches it.
	SetTrackingID(id uint64)
	TrackingID() uint64
	AcquireLatest() (*FaceFrame, error)
	Close() error
}

// HDFaceTracker tracks the high-definition face of one body.
type HDFaceTracker interface {
	SetTrackingID(id uint64)
	TrackingID() uint64
	AcquireLatest() (*HDFaceFrame, error)
	Close() error
}

// CoordinateMapper converts between camera, depth and color space.
type CoordinateMapper interface {
	MapCameraPointToDepthSpace(p r3.Vec) DepthSpacePoint

	// MapColorFrameToDepthSpace fills out (one point per color pixel) from
	// a full depth frame. Unmappable pixels get -Inf coordinates.
	MapColorFrameToDepthSpace(depth []uint16, out []DepthSpacePoint) error

	// MapDepthFrameToColorSpace fills out (one point per depth pixel).
	MapDepthFrameToColorSpace(depth []uint16, out []ColorSpacePoint) error

	// DepthCameraIntrinsics reports calibration; zero until the sensor is ready.
	DepthCameraIntrinsics() (CameraIntrinsics, error)
}

// Device is a sensor connection.
type Device interface {
	// ID is a stable identifier of the physical or virtual device.
	ID() string

	// Name is the backend name ("mock", "webcam", "remote").
	Name() string

	// Open connects to the device. Failures wrap ErrDeviceUnavailable.
	Open(ctx context.Context) error

	// Close releases the device. Readers must be closed first.
	Close() error

	// Available is signalled whenever new frames may be ready. It is
	// closed when the device closes.
	Available() <-chan struct{}

	// IsAvailable reports whether the sensor is currently connected.
	IsAvailable() bool

	Description(kind StreamKind) (FrameDescription, error)

	OpenReader(kind StreamKind) (Reader, error)
	CoordinateMapper() (CoordinateMapper, error)
	OpenFaceTracker(slot int) (FaceTracker, error)
	OpenHDFaceTracker(slot int) (HDFaceTracker, error)
}

// FrameReaderKinds lists the streams served by OpenReader. Face streams
// are served per body slot by the trackers instead.
func FrameReaderKinds() []StreamKind {
	return []StreamKind{StreamDepth, StreamBodyIndex, StreamColor, StreamInfrared, StreamBody}
}
