package dto

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/sensor"
	"github.com/teslashibe/go-kinect/pkg/sensor/mock"
)

func sampleFrame() sensor.BodyFrame {
	bf := sensor.BodyFrame{
		FrameHeader:    sensor.FrameHeader{Seq: 12, Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		FloorClipPlane: [4]float64{0, 1, 0, 0.9},
	}
	bf.Bodies[2] = mock.SkeletonAt(12, 2, 30)
	bf.Bodies[2].Joints[sensor.JointHead].DepthPoint = sensor.DepthSpacePoint{X: 250.5, Y: 80.25}
	bf.Bodies[2].Joints[sensor.JointHead].Depth = 2100
	bf.Bodies[2].Joints[sensor.JointFootLeft].DepthPoint = sensor.DepthSpacePoint{X: math.Inf(-1), Y: math.Inf(-1)}
	return bf
}

func TestFromBodyFrame(t *testing.T) {
	out := FromBodyFrame(sampleFrame(), "dev-1")

	assert.Equal(t, uint64(12), out.Seq)
	assert.Equal(t, "dev-1", out.DeviceID)
	require.Len(t, out.Bodies, 1, "untracked slots are skipped")

	b := out.Bodies[0]
	assert.Equal(t, 2, b.Slot)
	assert.Equal(t, mock.TrackingID(2), b.TrackingID)
	require.Len(t, b.Joints, int(sensor.JointCount))

	head := b.Joints[sensor.JointHead]
	assert.Equal(t, "head", head.Type)
	assert.Equal(t, "tracked", head.State)
	require.NotNil(t, head.DepthPoint)
	assert.Equal(t, [2]float64{250.5, 80.25}, *head.DepthPoint)
	assert.Equal(t, uint16(2100), head.Depth)
	assert.Equal(t, [4]float64{1, 0, 0, 0}, head.Orientation)

	assert.Nil(t, b.Joints[sensor.JointFootLeft].DepthPoint, "unmappable point omitted")
}

func TestBodyFrameJSON(t *testing.T) {
	data, err := json.Marshal(FromBodyFrame(sampleFrame(), ""))
	require.NoError(t, err, "non-finite depth points must not break encoding")

	s := string(data)
	assert.Contains(t, s, `"tracking_id":"72057594037927002"`)
	assert.NotContains(t, s, "device_id")

	var decoded BodyFrame
	require.NoError(t, json.Unmarshal(data, &decoded))
	back, err := decoded.ToSensor()
	require.NoError(t, err)

	want := sampleFrame()
	assert.Equal(t, want.Seq, back.Seq)
	assert.True(t, want.Timestamp.Equal(back.Timestamp))
	assert.False(t, back.Bodies[0].Tracked)

	got := back.Bodies[2]
	if diff := cmp.Diff(want.Bodies[2].Joints[sensor.JointHead], got.Joints[sensor.JointHead]); diff != "" {
		t.Errorf("head joint mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, sensor.DepthSpacePoint{}, got.Joints[sensor.JointFootLeft].DepthPoint)
	assert.Equal(t, want.Bodies[2].HandRight, got.HandRight)
	assert.Equal(t, want.Bodies[2].TrackingID, got.TrackingID)
}

func TestBodyFrameEmptyBodies(t *testing.T) {
	data, err := json.Marshal(FromBodyFrame(sensor.BodyFrame{}, ""))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bodies":[]`)
}

func TestToSensorErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame BodyFrame
		want  string
	}{
		{
			name:  "slot out of range",
			frame: BodyFrame{Bodies: []Body{{Slot: sensor.MaxBodies}}},
			want:  "out of range",
		},
		{
			name: "unknown joint",
			frame: BodyFrame{Bodies: []Body{{
				Slot: 0, HandLeft: "open", HandRight: "open", LeanState: "tracked",
				Joints: []Joint{{Type: "tail", State: "tracked"}},
			}}},
			want: "unknown joint",
		},
		{
			name:  "unknown hand state",
			frame: BodyFrame{Bodies: []Body{{Slot: 1, HandLeft: "fist"}}},
			want:  "unknown hand state",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.frame.ToSensor()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "got %v", err)
		})
	}
}

func TestFromFace(t *testing.T) {
	f := sensor.FaceFrame{
		TrackingID:  7,
		Valid:       true,
		BoundingBox: sensor.Rect{Left: 10, Top: 20, Right: 50, Bottom: 70},
	}
	f.Points[sensor.FacePointNose] = sensor.ColorSpacePoint{X: 30, Y: 45}
	f.Points[sensor.FacePointEyeLeft] = sensor.ColorSpacePoint{X: math.Inf(-1), Y: math.Inf(-1)}
	f.Properties[sensor.FacePropertyHappy] = sensor.DetectionYes

	out := FromFace(3, f)
	assert.Equal(t, 3, out.Slot)
	assert.Equal(t, [2]float64{30, 45}, out.Points["nose"])
	assert.NotContains(t, out.Points, "eye_left")
	assert.Equal(t, "yes", out.Properties["happy"])
	assert.Equal(t, "unknown", out.Properties["engaged"])

	_, err := json.Marshal(out)
	require.NoError(t, err)

	invalid := FromFace(0, sensor.FaceFrame{})
	assert.False(t, invalid.Valid)
	assert.Nil(t, invalid.Points)
}

func TestFromFaceMesh(t *testing.T) {
	mesh := FromFaceMesh(1, sensor.ModelStatusCollecting, []r3.Vec{{X: 1, Y: 2, Z: 3}}, []uint32{0, 0, 0})
	assert.Equal(t, "collecting", mesh.Status)
	assert.Equal(t, [][3]float64{{1, 2, 3}}, mesh.Vertices)
}

func TestFromIntrinsics(t *testing.T) {
	assert.False(t, FromIntrinsics(sensor.CameraIntrinsics{}).Ready)

	in := FromIntrinsics(sensor.CameraIntrinsics{FocalLengthX: 365.4, FocalLengthY: 365.4})
	assert.True(t, in.Ready)
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"focal_length_x":365.4`)
}
