package device

import (
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Stats summarizes poll activity. Maps are keyed by stream name.
type Stats struct {
	Running        bool              `json:"running"`
	Cycles         uint64            `json:"cycles"`
	Frames         map[string]uint64 `json:"frames"`
	DecodeFailures map[string]uint64 `json:"decode_failures"`
	ReadErrors     map[string]uint64 `json:"read_errors"`

	// TextureFailures counts pixels that could not be copied into a live
	// texture. The frame itself was committed.
	TextureFailures uint64    `json:"texture_failures"`
	LastFrame       time.Time `json:"last_frame"`
}

// DecodeFailure returns the decode failure count of a stream.
func (s Stats) DecodeFailure(kind sensor.StreamKind) uint64 {
	return s.DecodeFailures[kind.String()]
}

// FrameCount returns the number of frames committed for a stream.
func (s Stats) FrameCount(kind sensor.StreamKind) uint64 {
	return s.Frames[kind.String()]
}

type counters struct {
	cycles         atomic.Uint64
	lastFrame      atomic.Int64
	frames         [sensor.NumStreams]atomic.Uint64
	decodeFailures [sensor.NumStreams]atomic.Uint64
	readErrors     [sensor.NumStreams]atomic.Uint64

	textureFailures atomic.Uint64
}
