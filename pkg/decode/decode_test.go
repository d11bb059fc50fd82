package decode

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

func TestColorBGRAToRGBA(t *testing.T) {
	desc := sensor.FrameDescription{Width: 2, Height: 1, BytesPerPixel: 4}
	src := []byte{
		10, 20, 30, 0, // B G R X
		1, 2, 3, 0,
	}

	got, err := ColorBGRAToRGBA(nil, src, desc)
	require.NoError(t, err)

	want := []byte{30, 20, 10, 255, 3, 2, 1, 255}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RGBA mismatch (-want +got):\n%s", diff)
	}
}

func TestColorBGRAToRGBA_ReusesBuffer(t *testing.T) {
	desc := sensor.FrameDescription{Width: 1, Height: 1, BytesPerPixel: 4}
	dst := make([]byte, 0, 16)

	got, err := ColorBGRAToRGBA(dst, []byte{1, 2, 3, 4}, desc)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 16, cap(got))
}

func TestColorBGRAToRGBA_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
		desc sensor.FrameDescription
	}{
		{"short buffer", make([]byte, 7), sensor.FrameDescription{Width: 2, Height: 1, BytesPerPixel: 4}},
		{"long buffer", make([]byte, 12), sensor.FrameDescription{Width: 2, Height: 1, BytesPerPixel: 4}},
		{"wrong pixel size", make([]byte, 6), sensor.FrameDescription{Width: 2, Height: 1, BytesPerPixel: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := []byte{9, 9, 9, 9}
			got, err := ColorBGRAToRGBA(prev, tt.src, tt.desc)
			assert.True(t, errors.Is(err, sensor.ErrMalformedFrame), "got %v", err)
			assert.Equal(t, prev, got, "destination must be left untouched")
		})
	}
}

func TestInfraredTo8Bit(t *testing.T) {
	desc := sensor.FrameDescription{Width: 3, Height: 1, BytesPerPixel: 2}

	got, err := InfraredTo8Bit(nil, []uint16{0x0000, 0x80FF, 0xFFFF}, desc)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x80, 0xFF}, got)

	_, err = InfraredTo8Bit(nil, []uint16{1, 2}, desc)
	assert.True(t, errors.Is(err, sensor.ErrMalformedFrame))
}

func TestMergeDepth(t *testing.T) {
	desc := sensor.FrameDescription{Width: 2, Height: 1, BytesPerPixel: 2}

	got, err := MergeDepth(nil, []uint16{1200, 800}, []byte{sensor.NoBody, 2}, desc)
	require.NoError(t, err)
	want := []sensor.DepthPixel{
		{Depth: 1200, BodyIndex: sensor.NoBody},
		{Depth: 800, BodyIndex: 2},
	}
	assert.Equal(t, want, got)

	got, err = MergeDepth(got, []uint16{5, 6}, nil, desc)
	require.NoError(t, err)
	assert.Equal(t, uint8(sensor.NoBody), got[1].BodyIndex)

	_, err = MergeDepth(nil, []uint16{1, 2}, []byte{1}, desc)
	assert.True(t, errors.Is(err, sensor.ErrMalformedFrame))

	_, err = MergeDepth(nil, []uint16{1}, nil, desc)
	assert.True(t, errors.Is(err, sensor.ErrMalformedFrame))
}

func TestBodyIndexCopy(t *testing.T) {
	desc := sensor.FrameDescription{Width: 2, Height: 2, BytesPerPixel: 1}
	src := []byte{0, 1, 2, 3}

	got, err := BodyIndexCopy(nil, src, desc)
	require.NoError(t, err)
	src[0] = 42
	assert.Equal(t, byte(0), got[0], "copy must not alias the source")

	_, err = BodyIndexCopy(nil, src[:3], desc)
	assert.Error(t, err)
}

func TestDepthAt(t *testing.T) {
	desc := sensor.FrameDescription{Width: 3, Height: 2, BytesPerPixel: 2}
	depth := []uint16{1, 2, 3, 4, 5, 6}

	tests := []struct {
		name string
		p    sensor.DepthSpacePoint
		want uint16
	}{
		{"origin", sensor.DepthSpacePoint{X: 0, Y: 0}, 1},
		{"rounds to nearest", sensor.DepthSpacePoint{X: 1.6, Y: 0.7}, 6},
		{"outside right", sensor.DepthSpacePoint{X: 3, Y: 0}, 0},
		{"negative", sensor.DepthSpacePoint{X: -1, Y: 0}, 0},
		{"unmappable", sensor.DepthSpacePoint{X: math.Inf(-1), Y: math.Inf(-1)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DepthAt(depth, desc, tt.p))
		})
	}
}

// shiftMapper maps camera X/Y metres straight to pixels.
type shiftMapper struct{}

func (shiftMapper) MapCameraPointToDepthSpace(p r3.Vec) sensor.DepthSpacePoint {
	return sensor.DepthSpacePoint{X: p.X, Y: p.Y}
}

func (shiftMapper) MapColorFrameToDepthSpace([]uint16, []sensor.DepthSpacePoint) error { return nil }
func (shiftMapper) MapDepthFrameToColorSpace([]uint16, []sensor.ColorSpacePoint) error { return nil }
func (shiftMapper) DepthCameraIntrinsics() (sensor.CameraIntrinsics, error) {
	return sensor.CameraIntrinsics{}, nil
}

func TestProjectJoints(t *testing.T) {
	desc := sensor.FrameDescription{Width: 2, Height: 2, BytesPerPixel: 2}
	depth := []uint16{100, 200, 300, 400}

	var b sensor.Body
	b.Tracked = true
	b.Joints[sensor.JointHead].Position = r3.Vec{X: 1, Y: 1, Z: 2}
	b.Joints[sensor.JointNeck].Position = r3.Vec{X: 5, Y: 5, Z: 2}

	ProjectJoints(&b, shiftMapper{}, depth, desc)

	head := b.Joint(sensor.JointHead)
	assert.Equal(t, sensor.DepthSpacePoint{X: 1, Y: 1}, head.DepthPoint)
	assert.Equal(t, uint16(400), head.Depth)
	assert.Equal(t, uint16(0), b.Joint(sensor.JointNeck).Depth)
}

func TestProjectJoints_SkipsUntracked(t *testing.T) {
	var b sensor.Body
	b.Joints[sensor.JointHead].Position = r3.Vec{X: 1, Y: 1, Z: 2}

	ProjectJoints(&b, shiftMapper{}, nil, sensor.FrameDescription{})
	assert.Equal(t, sensor.DepthSpacePoint{}, b.Joint(sensor.JointHead).DepthPoint)
}
