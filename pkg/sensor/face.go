package sensor

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// FacePoint identifies one of the 2-D face landmarks.
type FacePoint int

const (
	FacePointEyeLeft FacePoint = iota
	FacePointEyeRight
	FacePointNose
	FacePointMouthCornerLeft
	FacePointMouthCornerRight

	FacePointCount
)

var facePointNames = [FacePointCount]string{
	"eye_left", "eye_right", "nose", "mouth_corner_left", "mouth_corner_right",
}

func (p FacePoint) String() string {
	if p < 0 || p >= FacePointCount {
		return "unknown"
	}
	return facePointNames[p]
}

// FaceProperty identifies a classified face attribute.
type FaceProperty int

const (
	FacePropertyHappy FaceProperty = iota
	FacePropertyEngaged
	FacePropertyWearingGlasses
	FacePropertyLeftEyeClosed
	FacePropertyRightEyeClosed
	FacePropertyMouthOpen
	FacePropertyMouthMoved
	FacePropertyLookingAway

	FacePropertyCount
)

var facePropertyNames = [FacePropertyCount]string{
	"happy", "engaged", "wearing_glasses", "left_eye_closed",
	"right_eye_closed", "mouth_open", "mouth_moved", "looking_away",
}

func (p FaceProperty) String() string {
	if p < 0 || p >= FacePropertyCount {
		return "unknown"
	}
	return facePropertyNames[p]
}

// DetectionResult is the classifier output for a face property.
type DetectionResult int

const (
	DetectionUnknown DetectionResult = iota
	DetectionNo
	DetectionMaybe
	DetectionYes
)

var detectionNames = [...]string{"unknown", "no", "maybe", "yes"}

func (d DetectionResult) String() string {
	if d < 0 || int(d) >= len(detectionNames) {
		return "unknown"
	}
	return detectionNames[d]
}

// Rect is a pixel rectangle in color space.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the rectangle width.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the rectangle height.
func (r Rect) Height() int { return r.Bottom - r.Top }

// FaceFrame is one 2-D face tracking result for a body slot.
type FaceFrame struct {
	FrameHeader

	TrackingID uint64
	Valid      bool

	BoundingBox Rect
	Points      [FacePointCount]ColorSpacePoint
	Rotation    quat.Number
	Properties  [FacePropertyCount]DetectionResult
}

// AlignmentQuality grades an HD face alignment.
type AlignmentQuality int

const (
	AlignmentQualityLow AlignmentQuality = iota
	AlignmentQualityHigh
)

// FaceAlignment is the pose and expression of an HD face.
type FaceAlignment struct {
	HeadPivot      r3.Vec
	Orientation    quat.Number
	AnimationUnits []float64
	Quality        AlignmentQuality
}

// ModelStatus is the progress of the face model builder.
type ModelStatus int

const (
	ModelStatusNone ModelStatus = iota
	ModelStatusCollecting
	ModelStatusComplete
)

var modelStatusNames = [...]string{"none", "collecting", "complete"}

func (s ModelStatus) String() string {
	if s < 0 || int(s) >= len(modelStatusNames) {
		return "unknown"
	}
	return modelStatusNames[s]
}

// FaceModel turns an alignment into a face mesh.
type FaceModel interface {
	// VertexCount is the number of vertices Vertices returns.
	VertexCount() int

	// Vertices computes camera-space mesh vertices for the alignment.
	Vertices(a FaceAlignment) ([]r3.Vec, error)

	// Triangles returns the mesh index buffer, three indices per triangle.
	Triangles() []uint32
}

// HDFaceFrame is one high-definition face tracking result for a body slot.
type HDFaceFrame struct {
	FrameHeader

	TrackingID uint64
	Valid      bool

	Alignment FaceAlignment
	Status    ModelStatus

	// Model is the fitted model once Status is ModelStatusComplete, or
	// the default model before that.
	Model FaceModel
}
