package sensor

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// MaxBodies is the number of body slots the sensor tracks.
const MaxBodies = 6

// JointType identifies a skeleton joint.
type JointType int

const (
	JointSpineBase JointType = iota
	JointSpineMid
	JointNeck
	JointHead
	JointShoulderLeft
	JointElbowLeft
	JointWristLeft
	JointHandLeft
	JointShoulderRight
	JointElbowRight
	JointWristRight
	JointHandRight
	JointHipLeft
	JointKneeLeft
	JointAnkleLeft
	JointFootLeft
	JointHipRight
	JointKneeRight
	JointAnkleRight
	JointFootRight
	JointSpineShoulder
	JointHandTipLeft
	JointThumbLeft
	JointHandTipRight
	JointThumbRight

	// JointCount is the number of joints per body.
	JointCount
)

var jointNames = [JointCount]string{
	"spine_base", "spine_mid", "neck", "head",
	"shoulder_left", "elbow_left", "wrist_left", "hand_left",
	"shoulder_right", "elbow_right", "wrist_right", "hand_right",
	"hip_left", "knee_left", "ankle_left", "foot_left",
	"hip_right", "knee_right", "ankle_right", "foot_right",
	"spine_shoulder", "hand_tip_left", "thumb_left", "hand_tip_right", "thumb_right",
}

func (j JointType) String() string {
	if j < 0 || j >= JointCount {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// ParseJointType parses a joint name as produced by JointType.String.
func ParseJointType(s string) (JointType, error) {
	for i, name := range jointNames {
		if name == s {
			return JointType(i), nil
		}
	}
	return 0, fmt.Errorf("sensor: unknown joint %q", s)
}

// TrackingState describes how confidently a joint or lean was observed.
type TrackingState int

const (
	NotTracked TrackingState = iota
	Inferred
	Tracked
)

var trackingStateNames = [...]string{"not_tracked", "inferred", "tracked"}

func (s TrackingState) String() string {
	if s < 0 || int(s) >= len(trackingStateNames) {
		return fmt.Sprintf("tracking_state(%d)", int(s))
	}
	return trackingStateNames[s]
}

// ParseTrackingState parses a name produced by TrackingState.String.
func ParseTrackingState(s string) (TrackingState, error) {
	for i, name := range trackingStateNames {
		if name == s {
			return TrackingState(i), nil
		}
	}
	return 0, fmt.Errorf("sensor: unknown tracking state %q", s)
}

// HandState is the detected pose of a hand.
type HandState int

const (
	HandUnknown HandState = iota
	HandNotTracked
	HandOpen
	HandClosed
	HandLasso
)

var handStateNames = [...]string{"unknown", "not_tracked", "open", "closed", "lasso"}

func (h HandState) String() string {
	if h < 0 || int(h) >= len(handStateNames) {
		return fmt.Sprintf("hand_state(%d)", int(h))
	}
	return handStateNames[h]
}

// ParseHandState parses a name produced by HandState.String.
func ParseHandState(s string) (HandState, error) {
	for i, name := range handStateNames {
		if name == s {
			return HandState(i), nil
		}
	}
	return 0, fmt.Errorf("sensor: unknown hand state %q", s)
}

// Joint is one skeleton joint.
type Joint struct {
	Type JointType

	// Position in camera space, metres. Y is up, Z points away from the sensor.
	Position    r3.Vec
	Orientation quat.Number
	State       TrackingState

	// DepthPoint is Position projected into the depth image and Depth the
	// depth value under that pixel. Both are filled in by the poller.
	DepthPoint DepthSpacePoint
	Depth      uint16
}

// Lean is the body's lean, -1..1 on each axis.
type Lean struct {
	X float64
	Y float64
}

// Body is one slot of a body frame.
type Body struct {
	Tracked    bool
	TrackingID uint64
	Joints     [JointCount]Joint

	HandLeft  HandState
	HandRight HandState

	Lean      Lean
	LeanState TrackingState

	// Restricted is set when the body is only partially visible.
	Restricted bool
}

// Joint returns the joint of the given type.
func (b *Body) Joint(t JointType) Joint {
	if t < 0 || t >= JointCount {
		return Joint{Type: t}
	}
	return b.Joints[t]
}

// TrackedJoints returns the number of joints in the Tracked state.
func (b *Body) TrackedJoints() int {
	n := 0
	for i := range b.Joints {
		if b.Joints[i].State == Tracked {
			n++
		}
	}
	return n
}
