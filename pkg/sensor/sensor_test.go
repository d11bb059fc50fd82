package sensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamKind(t *testing.T) {
	for _, kind := range AllStreams() {
		got, err := ParseStreamKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	got, err := ParseStreamKind("  HD_Face ")
	require.NoError(t, err)
	assert.Equal(t, StreamHDFace, got)

	_, err = ParseStreamKind("audio")
	assert.Error(t, err)
}

func TestStreamKind_String(t *testing.T) {
	assert.Equal(t, "body_index", StreamBodyIndex.String())
	assert.Equal(t, "stream(42)", StreamKind(42).String())
	assert.False(t, StreamKind(-1).Valid())
	assert.True(t, StreamColor.Valid())
}

func TestFrameDescription(t *testing.T) {
	assert.Equal(t, 512*424, DepthDescription.Pixels())
	assert.Equal(t, 1920*1080*4, ColorDescription.Bytes())
	assert.True(t, FrameDescription{}.IsZero())
	assert.False(t, BodyIndexDescription.IsZero())
}

func TestJointNames(t *testing.T) {
	assert.Equal(t, 25, int(JointCount))
	assert.Equal(t, "head", JointHead.String())
	assert.Equal(t, "thumb_right", JointThumbRight.String())

	for j := JointType(0); j < JointCount; j++ {
		got, err := ParseJointType(j.String())
		require.NoError(t, err)
		assert.Equal(t, j, got)
	}

	_, err := ParseJointType("tail")
	assert.Error(t, err)
}

func TestStateNames(t *testing.T) {
	s, err := ParseTrackingState("inferred")
	require.NoError(t, err)
	assert.Equal(t, Inferred, s)

	h, err := ParseHandState("lasso")
	require.NoError(t, err)
	assert.Equal(t, HandLasso, h)

	_, err = ParseHandState("fist")
	assert.Error(t, err)
}

func TestBody_TrackedJoints(t *testing.T) {
	var b Body
	b.Joints[JointHead].State = Tracked
	b.Joints[JointNeck].State = Tracked
	b.Joints[JointSpineBase].State = Inferred

	assert.Equal(t, 2, b.TrackedJoints())
	assert.Equal(t, Tracked, b.Joint(JointHead).State)
	assert.Equal(t, JointType(99), b.Joint(99).Type)
}

func TestMalformed(t *testing.T) {
	err := Malformed(StreamDepth, "got %d bytes", 3)

	assert.True(t, errors.Is(err, ErrMalformedFrame))

	var se *StreamError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StreamDepth, se.Stream)
	assert.Contains(t, err.Error(), "sensor [depth]")
	assert.Contains(t, err.Error(), "got 3 bytes")
}

func TestCameraIntrinsics_IsZero(t *testing.T) {
	assert.True(t, CameraIntrinsics{}.IsZero())
	assert.False(t, CameraIntrinsics{FocalLengthX: 365}.IsZero())
}
