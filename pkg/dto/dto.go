// Package dto defines the JSON shapes served to consumers outside the
// poller: the web API, websocket streams and remote backends.
package dto

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Joint is a skeleton joint. Orientation is [w, x, y, z].
type Joint struct {
	Type        string      `json:"type"`
	Position    [3]float64  `json:"position"`
	Orientation [4]float64  `json:"orientation"`
	State       string      `json:"state"`
	DepthPoint  *[2]float64 `json:"depth_point,omitempty"`
	Depth       uint16      `json:"depth,omitempty"`
}

// Body is a tracked body. TrackingID is a string because it exceeds the
// integer precision of JavaScript numbers.
type Body struct {
	Slot       int        `json:"slot"`
	Tracked    bool       `json:"tracked"`
	TrackingID uint64     `json:"tracking_id,string"`
	Joints     []Joint    `json:"joints,omitempty"`
	HandLeft   string     `json:"hand_left"`
	HandRight  string     `json:"hand_right"`
	Lean       [2]float64 `json:"lean"`
	LeanState  string     `json:"lean_state"`
	Restricted bool       `json:"restricted"`
}

// BodyFrame is one body frame. Only tracked bodies are listed.
type BodyFrame struct {
	Seq            uint64     `json:"seq"`
	Timestamp      time.Time  `json:"timestamp"`
	DeviceID       string     `json:"device_id,omitempty"`
	FloorClipPlane [4]float64 `json:"floor_clip_plane"`
	Bodies         []Body     `json:"bodies"`
}

// Intrinsics is the depth camera calibration.
type Intrinsics struct {
	Ready bool `json:"ready"`
	sensor.CameraIntrinsics
}

// Status describes the poller and its device.
type Status struct {
	DeviceID      string    `json:"device_id"`
	Backend       string    `json:"backend"`
	Open          bool      `json:"open"`
	Available     bool      `json:"available"`
	Running       bool      `json:"running"`
	UpdatingColor bool      `json:"updating_color"`
	Streams       []string  `json:"streams"`
	TrackedBodies int       `json:"tracked_bodies"`
	LastFrame     time.Time `json:"last_frame"`
}

// Face is a 2-D face result.
type Face struct {
	Slot        int                   `json:"slot"`
	TrackingID  uint64                `json:"tracking_id,string"`
	Valid       bool                  `json:"valid"`
	BoundingBox sensor.Rect           `json:"bounding_box"`
	Points      map[string][2]float64 `json:"points,omitempty"`
	Rotation    [4]float64            `json:"rotation"`
	Properties  map[string]string     `json:"properties,omitempty"`
}

// FaceMesh is an HD face mesh in camera space.
type FaceMesh struct {
	Slot      int          `json:"slot"`
	Status    string       `json:"status"`
	Vertices  [][3]float64 `json:"vertices"`
	Triangles []uint32     `json:"triangles,omitempty"`
}

func vec3(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func quat4(q quat.Number) [4]float64 { return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag} }

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// FromJoint converts a sensor joint. Unmappable depth points are omitted.
func FromJoint(j sensor.Joint) Joint {
	out := Joint{
		Type:        j.Type.String(),
		Position:    vec3(j.Position),
		Orientation: quat4(j.Orientation),
		State:       j.State.String(),
		Depth:       j.Depth,
	}
	if finite(j.DepthPoint.X, j.DepthPoint.Y) && (j.DepthPoint != sensor.DepthSpacePoint{}) {
		out.DepthPoint = &[2]float64{j.DepthPoint.X, j.DepthPoint.Y}
	}
	return out
}

// ToSensor converts back to a sensor joint.
func (j Joint) ToSensor() (sensor.Joint, error) {
	jt, err := sensor.ParseJointType(j.Type)
	if err != nil {
		return sensor.Joint{}, err
	}
	st, err := sensor.ParseTrackingState(j.State)
	if err != nil {
		return sensor.Joint{}, err
	}
	out := sensor.Joint{
		Type:        jt,
		Position:    r3.Vec{X: j.Position[0], Y: j.Position[1], Z: j.Position[2]},
		Orientation: quat.Number{Real: j.Orientation[0], Imag: j.Orientation[1], Jmag: j.Orientation[2], Kmag: j.Orientation[3]},
		State:       st,
		Depth:       j.Depth,
	}
	if j.DepthPoint != nil {
		out.DepthPoint = sensor.DepthSpacePoint{X: j.DepthPoint[0], Y: j.DepthPoint[1]}
	}
	return out, nil
}

// FromBody converts the body in a slot. Joints are listed for tracked
// bodies only.
func FromBody(slot int, b sensor.Body) Body {
	out := Body{
		Slot:       slot,
		Tracked:    b.Tracked,
		TrackingID: b.TrackingID,
		HandLeft:   b.HandLeft.String(),
		HandRight:  b.HandRight.String(),
		Lean:       [2]float64{b.Lean.X, b.Lean.Y},
		LeanState:  b.LeanState.String(),
		Restricted: b.Restricted,
	}
	if b.Tracked {
		out.Joints = make([]Joint, 0, len(b.Joints))
		for _, j := range b.Joints {
			out.Joints = append(out.Joints, FromJoint(j))
		}
	}
	return out
}

// ToSensor converts back to a sensor body. Joints missing from the DTO
// stay NotTracked.
func (b Body) ToSensor() (sensor.Body, error) {
	left, err := sensor.ParseHandState(b.HandLeft)
	if err != nil {
		return sensor.Body{}, err
	}
	right, err := sensor.ParseHandState(b.HandRight)
	if err != nil {
		return sensor.Body{}, err
	}
	lean, err := sensor.ParseTrackingState(b.LeanState)
	if err != nil {
		return sensor.Body{}, err
	}

	out := sensor.Body{
		Tracked:    b.Tracked,
		TrackingID: b.TrackingID,
		HandLeft:   left,
		HandRight:  right,
		Lean:       sensor.Lean{X: b.Lean[0], Y: b.Lean[1]},
		LeanState:  lean,
		Restricted: b.Restricted,
	}
	for i := range out.Joints {
		out.Joints[i].Type = sensor.JointType(i)
	}
	for _, dj := range b.Joints {
		j, err := dj.ToSensor()
		if err != nil {
			return sensor.Body{}, err
		}
		out.Joints[j.Type] = j
	}
	return out, nil
}

// FromBodyFrame converts a body frame, keeping tracked bodies only.
func FromBodyFrame(bf sensor.BodyFrame, deviceID string) BodyFrame {
	out := BodyFrame{
		Seq:            bf.Seq,
		Timestamp:      bf.Timestamp,
		DeviceID:       deviceID,
		FloorClipPlane: bf.FloorClipPlane,
		Bodies:         []Body{},
	}
	for slot, b := range bf.Bodies {
		if b.Tracked {
			out.Bodies = append(out.Bodies, FromBody(slot, b))
		}
	}
	return out
}

// ToSensor converts back to a sensor body frame with bodies in their slots.
func (f BodyFrame) ToSensor() (sensor.BodyFrame, error) {
	out := sensor.BodyFrame{
		FrameHeader:    sensor.FrameHeader{Seq: f.Seq, Timestamp: f.Timestamp},
		FloorClipPlane: f.FloorClipPlane,
	}
	for _, b := range f.Bodies {
		if b.Slot < 0 || b.Slot >= sensor.MaxBodies {
			return sensor.BodyFrame{}, fmt.Errorf("dto: body slot %d out of range", b.Slot)
		}
		sb, err := b.ToSensor()
		if err != nil {
			return sensor.BodyFrame{}, fmt.Errorf("dto: body slot %d: %w", b.Slot, err)
		}
		out.Bodies[b.Slot] = sb
	}
	return out, nil
}

// FromIntrinsics converts calibration.
func FromIntrinsics(c sensor.CameraIntrinsics) Intrinsics {
	return Intrinsics{Ready: !c.IsZero(), CameraIntrinsics: c}
}

// FromFace converts a 2-D face result.
func FromFace(slot int, f sensor.FaceFrame) Face {
	out := Face{
		Slot:        slot,
		TrackingID:  f.TrackingID,
		Valid:       f.Valid,
		BoundingBox: f.BoundingBox,
		Rotation:    quat4(f.Rotation),
	}
	if !f.Valid {
		return out
	}
	out.Points = make(map[string][2]float64, len(f.Points))
	for i, p := range f.Points {
		if finite(p.X, p.Y) {
			out.Points[sensor.FacePoint(i).String()] = [2]float64{p.X, p.Y}
		}
	}
	out.Properties = make(map[string]string, len(f.Properties))
	for i, v := range f.Properties {
		out.Properties[sensor.FaceProperty(i).String()] = v.String()
	}
	return out
}

// FromFaceMesh converts an HD face mesh.
func FromFaceMesh(slot int, status sensor.ModelStatus, verts []r3.Vec, tris []uint32) FaceMesh {
	out := FaceMesh{
		Slot:      slot,
		Status:    status.String(),
		Vertices:  make([][3]float64, len(verts)),
		Triangles: tris,
	}
	for i, v := range verts {
		out.Vertices[i] = vec3(v)
	}
	return out
}
