package webcam

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Depth estimation constants
const (
	// Average human face width in meters (~15cm)
	avgFaceWidthMeters = 0.15

	// Reliable range of the estimate, in meters
	minDepth = 0.3
	maxDepth = 5.0

	// Offsets below the head center, in meters
	neckDrop          = 0.12
	spineShoulderDrop = 0.22
)

// Detection is one YuNet face in pixel coordinates.
type Detection struct {
	X, Y, W, H float64 // Bounding box, top-left origin

	// Landmarks in YuNet order: right eye, left eye, nose tip, right mouth
	// corner, left mouth corner.
	Landmarks [5][2]float64

	Score float64
}

// Center returns the center of the bounding box.
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// camera is a pinhole model of the capture.
type camera struct {
	width, height float64
	fx, fy        float64
}

func newCamera(width, height int, hfovDeg float64) camera {
	w, h := float64(width), float64(height)
	f := (w / 2) / math.Tan(hfovDeg*math.Pi/360)
	return camera{width: w, height: h, fx: f, fy: f}
}

// EstimateDepth returns the distance in meters of a face faceWidthPx wide
// in a frame frameWidth pixels wide, or 0 when the width is unusable.
//
// This is the inverse-width relationship distance = f * W / w, clamped to
// the range where a face detector is reliable. Accuracy is roughly ±30%.
func EstimateDepth(faceWidthPx float64, frameWidth int, hfovDeg float64) float64 {
	return newCamera(frameWidth, 1, hfovDeg).estimateDepth(faceWidthPx)
}

func (c camera) estimateDepth(faceWidthPx float64) float64 {
	if faceWidthPx <= 0 || faceWidthPx > c.width {
		return 0
	}
	return min(max(c.fx*avgFaceWidthMeters/faceWidthPx, minDepth), maxDepth)
}

// unproject maps a pixel at depth z (meters) to camera space: X to the
// right, Y up, Z away from the camera.
func (c camera) unproject(u, v, z float64) r3.Vec {
	return r3.Vec{
		X: (u - c.width/2) * z / c.fx,
		Y: -(v - c.height/2) * z / c.fy,
		Z: z,
	}
}

var identity = quat.Number{Real: 1}

// headRoll estimates head roll from the eye line. It is the only rotation
// a 2-D detector can recover with any confidence.
func headRoll(d Detection) quat.Number {
	re, le := d.Landmarks[0], d.Landmarks[1]
	dx, dy := le[0]-re[0], le[1]-re[1]
	if dx == 0 && dy == 0 {
		return identity
	}
	// Image Y points down; camera Y points up.
	angle := -math.Atan2(dy, dx)
	return quat.Number{Real: math.Cos(angle / 2), Kmag: math.Sin(angle / 2)}
}

// body builds a coarse skeleton for a detected face: head from the face
// center, neck and spine shoulder inferred straight below it.
func (c camera) body(d Detection, trackingID uint64) (sensor.Body, bool) {
	z := c.estimateDepth(d.W)
	if z == 0 {
		return sensor.Body{}, false
	}
	u, v := d.Center()
	head := c.unproject(u, v, z)

	b := sensor.Body{
		Tracked:    true,
		TrackingID: trackingID,
		HandLeft:   sensor.HandNotTracked,
		HandRight:  sensor.HandNotTracked,
		LeanState:  sensor.NotTracked,
	}
	for i := range b.Joints {
		b.Joints[i] = sensor.Joint{Type: sensor.JointType(i), Orientation: identity}
	}

	rot := headRoll(d)
	b.Joints[sensor.JointHead].Position = head
	b.Joints[sensor.JointHead].Orientation = rot
	b.Joints[sensor.JointHead].State = sensor.Tracked

	b.Joints[sensor.JointNeck].Position = r3.Add(head, r3.Vec{Y: -neckDrop})
	b.Joints[sensor.JointNeck].State = sensor.Inferred

	b.Joints[sensor.JointSpineShoulder].Position = r3.Add(head, r3.Vec{Y: -spineShoulderDrop})
	b.Joints[sensor.JointSpineShoulder].State = sensor.Inferred
	return b, true
}

// face converts a detection into a 2-D face result.
func face(d Detection, trackingID uint64, hdr sensor.FrameHeader) sensor.FaceFrame {
	f := sensor.FaceFrame{
		FrameHeader: hdr,
		TrackingID:  trackingID,
		Valid:       true,
		BoundingBox: sensor.Rect{
			Left:   int(math.Round(d.X)),
			Top:    int(math.Round(d.Y)),
			Right:  int(math.Round(d.X + d.W)),
			Bottom: int(math.Round(d.Y + d.H)),
		},
		Rotation: headRoll(d),
	}

	// YuNet landmark index per face point
	order := [sensor.FacePointCount]int{
		sensor.FacePointEyeLeft:          1,
		sensor.FacePointEyeRight:         0,
		sensor.FacePointNose:             2,
		sensor.FacePointMouthCornerLeft:  4,
		sensor.FacePointMouthCornerRight: 3,
	}
	for p, i := range order {
		f.Points[p] = sensor.ColorSpacePoint{X: d.Landmarks[i][0], Y: d.Landmarks[i][1]}
	}

	// A frontal detection means the person faces the camera.
	f.Properties[sensor.FacePropertyEngaged] = sensor.DetectionMaybe
	if d.Score >= 0.9 {
		f.Properties[sensor.FacePropertyEngaged] = sensor.DetectionYes
	}
	return f
}

// slotTracker keeps faces in stable body slots between detections by
// greedy nearest-center matching.
type slotTracker struct {
	maxDist float64 // normalized by frame width
	nextID  uint64
	slots   [sensor.MaxBodies]trackedFace
}

type trackedFace struct {
	id     uint64
	cx, cy float64
}

func newSlotTracker(maxDist float64) *slotTracker {
	return &slotTracker{maxDist: maxDist, nextID: 1}
}

// assign returns, per slot, the index into dets of the face occupying it
// (or -1) and the slot's tracking ID. Faces beyond MaxBodies are dropped,
// lowest score first.
func (t *slotTracker) assign(dets []Detection, width float64) (idx [sensor.MaxBodies]int, ids [sensor.MaxBodies]uint64) {
	for i := range idx {
		idx[i] = -1
	}
	if width <= 0 {
		t.slots = [sensor.MaxBodies]trackedFace{}
		return idx, ids
	}

	used := make([]bool, len(dets))
	var next [sensor.MaxBodies]trackedFace

	// Existing slots claim their nearest face first.
	for s, prev := range t.slots {
		if prev.id == 0 {
			continue
		}
		best, bestDist := -1, t.maxDist
		for i, d := range dets {
			if used[i] {
				continue
			}
			cx, cy := d.Center()
			if dist := math.Hypot(cx-prev.cx, cy-prev.cy) / width; dist <= bestDist {
				best, bestDist = i, dist
			}
		}
		if best >= 0 {
			used[best] = true
			cx, cy := dets[best].Center()
			next[s] = trackedFace{id: prev.id, cx: cx, cy: cy}
			idx[s] = best
		}
	}

	// Unmatched faces take free slots, best score first.
	for {
		best := -1
		for i, d := range dets {
			if !used[i] && (best < 0 || d.Score > dets[best].Score) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		used[best] = true

		free := -1
		for s := range next {
			if next[s].id == 0 {
				free = s
				break
			}
		}
		if free < 0 {
			break
		}
		cx, cy := dets[best].Center()
		next[free] = trackedFace{id: t.nextID, cx: cx, cy: cy}
		t.nextID++
		idx[free] = best
	}

	t.slots = next
	for s := range next {
		ids[s] = next[s].id
	}
	return idx, ids
}
