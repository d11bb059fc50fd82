package mock

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// skeleton is a standing pose relative to the spine base, in metres.
var skeleton = [sensor.JointCount]r3.Vec{
	sensor.JointSpineBase:     {X: 0, Y: 0, Z: 0},
	sensor.JointSpineMid:      {X: 0, Y: 0.30, Z: 0},
	sensor.JointNeck:          {X: 0, Y: 0.60, Z: 0},
	sensor.JointHead:          {X: 0, Y: 0.75, Z: 0},
	sensor.JointShoulderLeft:  {X: -0.18, Y: 0.55, Z: 0},
	sensor.JointElbowLeft:     {X: -0.30, Y: 0.30, Z: 0},
	sensor.JointWristLeft:     {X: -0.35, Y: 0.08, Z: 0},
	sensor.JointHandLeft:      {X: -0.37, Y: 0, Z: 0},
	sensor.JointShoulderRight: {X: 0.18, Y: 0.55, Z: 0},
	sensor.JointElbowRight:    {X: 0.30, Y: 0.30, Z: 0},
	sensor.JointWristRight:    {X: 0.35, Y: 0.08, Z: 0},
	sensor.JointHandRight:     {X: 0.37, Y: 0, Z: 0},
	sensor.JointHipLeft:       {X: -0.10, Y: -0.05, Z: 0},
	sensor.JointKneeLeft:      {X: -0.12, Y: -0.45, Z: 0},
	sensor.JointAnkleLeft:     {X: -0.13, Y: -0.85, Z: 0},
	sensor.JointFootLeft:      {X: -0.13, Y: -0.90, Z: -0.10},
	sensor.JointHipRight:      {X: 0.10, Y: -0.05, Z: 0},
	sensor.JointKneeRight:     {X: 0.12, Y: -0.45, Z: 0},
	sensor.JointAnkleRight:    {X: 0.13, Y: -0.85, Z: 0},
	sensor.JointFootRight:     {X: 0.13, Y: -0.90, Z: -0.10},
	sensor.JointSpineShoulder: {X: 0, Y: 0.52, Z: 0},
	sensor.JointHandTipLeft:   {X: -0.38, Y: -0.08, Z: 0},
	sensor.JointThumbLeft:     {X: -0.34, Y: 0, Z: -0.03},
	sensor.JointHandTipRight:  {X: 0.38, Y: -0.08, Z: 0},
	sensor.JointThumbRight:    {X: 0.34, Y: 0, Z: -0.03},
}

const (
	backgroundDepth = 4000 // mm
	bodyHalfWidth   = 0.25 // m, silhouette half width around the skeleton
	trackingIDBase  = 72057594037927000
)

var identity = quat.Number{Real: 1}

// TrackingID returns the tracking ID the mock assigns to a body slot.
func TrackingID(slot int) uint64 {
	return trackingIDBase + uint64(slot)
}

// SkeletonAt returns the body the mock generates for a slot at a frame
// sequence. Joint depth projections are left zero.
func SkeletonAt(seq uint64, slot, fps int) sensor.Body {
	t := float64(seq) / float64(fps)
	sway := 0.05 * math.Sin(2*math.Pi*0.5*t+float64(slot))
	base := r3.Vec{
		X: -0.6 + 0.6*float64(slot%3) + sway,
		Y: 0,
		Z: 2.0 + 0.8*float64(slot/3),
	}

	b := sensor.Body{
		Tracked:    true,
		TrackingID: TrackingID(slot),
		HandLeft:   sensor.HandOpen,
		HandRight:  sensor.HandOpen,
		Lean:       sensor.Lean{X: sway * 4, Y: 0},
		LeanState:  sensor.Tracked,
	}
	if int(t)%2 == 1 {
		b.HandRight = sensor.HandClosed
	}
	for j := range b.Joints {
		b.Joints[j] = sensor.Joint{
			Type:        sensor.JointType(j),
			Position:    r3.Add(base, skeleton[j]),
			Orientation: identity,
			State:       sensor.Tracked,
		}
	}
	return b
}

// generate builds a full frame set. Called with d.mu held.
func (d *Device) generate(seq uint64) {
	ts := d.started.Add(time.Duration(seq) * time.Second / time.Duration(d.cfg.FPS))
	hdr := sensor.FrameHeader{Seq: seq, Timestamp: ts}

	bf := &sensor.BodyFrame{FrameHeader: hdr, FloorClipPlane: [4]float64{0, 1, 0, 0.9}}
	for slot := 0; slot < d.cfg.Bodies; slot++ {
		bf.Bodies[slot] = SkeletonAt(seq, slot, d.cfg.FPS)
	}
	d.bodies = bf.Bodies
	d.frames[sensor.StreamBody] = bf

	needDepth := d.readers[sensor.StreamDepth] > 0 || d.readers[sensor.StreamBodyIndex] > 0
	if needDepth {
		depth, index := d.depthAndIndex(seq)
		if d.malformed[sensor.StreamDepth] {
			depth = depth[:len(depth)-1]
		}
		if d.malformed[sensor.StreamBodyIndex] {
			index = index[:len(index)-1]
		}
		d.frames[sensor.StreamDepth] = &sensor.DepthFrame{
			FrameHeader: hdr,
			Desc:        d.cfg.depthDesc(),
			Data:        depth,
			MinReliable: 500,
			MaxReliable: 4500,
		}
		d.frames[sensor.StreamBodyIndex] = &sensor.BodyIndexFrame{
			FrameHeader: hdr,
			Desc:        d.cfg.bodyIndexDesc(),
			Data:        index,
		}
	}

	if d.readers[sensor.StreamColor] > 0 {
		color := d.color(seq)
		if d.malformed[sensor.StreamColor] {
			color = color[:len(color)-1]
		}
		d.frames[sensor.StreamColor] = &sensor.ColorFrame{
			FrameHeader: hdr,
			Desc:        d.cfg.colorDesc(),
			Data:        color,
		}
	}

	if d.readers[sensor.StreamInfrared] > 0 {
		ir := d.infrared(seq)
		if d.malformed[sensor.StreamInfrared] {
			ir = ir[:len(ir)-1]
		}
		d.frames[sensor.StreamInfrared] = &sensor.InfraredFrame{
			FrameHeader: hdr,
			Desc:        d.cfg.depthDesc(),
			Data:        ir,
		}
	}

	for _, ft := range d.faces {
		ft.generate(hdr)
	}
	for _, ht := range d.hdFaces {
		ht.generate(hdr)
	}
}

// FlatDepthValue is the depth WithFlatDepth uses for a frame sequence.
func FlatDepthValue(seq uint64) uint16 {
	return uint16(500 + seq%3000)
}

func (d *Device) depthAndIndex(seq uint64) ([]uint16, []byte) {
	n := d.cfg.DepthWidth * d.cfg.DepthHeight
	depth := make([]uint16, n)
	index := make([]byte, n)

	if d.flatDepth {
		v := FlatDepthValue(seq)
		for i := range depth {
			depth[i] = v
			index[i] = sensor.NoBody
		}
		return depth, index
	}

	for i := range depth {
		depth[i] = backgroundDepth
		index[i] = sensor.NoBody
	}

	// Paint each body's bounding box, nearest body last.
	for slot := d.cfg.Bodies - 1; slot >= 0; slot-- {
		b := &d.bodies[slot]
		if !b.Tracked {
			continue
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, j := range b.Joints {
			for _, dx := range []float64{-bodyHalfWidth / 2, bodyHalfWidth / 2} {
				p := d.mapperFn.MapCameraPointToDepthSpace(r3.Vec{X: j.Position.X + dx, Y: j.Position.Y, Z: j.Position.Z})
				minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
				minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
			}
		}
		z := uint16(b.Joints[sensor.JointSpineMid].Position.Z * 1000)
		x0, x1 := clamp(int(minX), d.cfg.DepthWidth), clamp(int(maxX)+1, d.cfg.DepthWidth)
		y0, y1 := clamp(int(minY), d.cfg.DepthHeight), clamp(int(maxY)+1, d.cfg.DepthHeight)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				i := y*d.cfg.DepthWidth + x
				depth[i] = z
				index[i] = byte(slot)
			}
		}
	}
	return depth, index
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

func (d *Device) color(seq uint64) []byte {
	w, h := d.cfg.ColorWidth, d.cfg.ColorHeight
	buf := make([]byte, w*h*4)
	shift := int(seq)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			buf[i] = byte((x + shift) * 255 / w)   // B
			buf[i+1] = byte(y * 255 / h)           // G
			buf[i+2] = byte(255 - (x * 255 / w))   // R
			buf[i+3] = 0
		}
	}
	return buf
}

func (d *Device) infrared(seq uint64) []uint16 {
	w, h := d.cfg.DepthWidth, d.cfg.DepthHeight
	buf := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf[y*w+x] = uint16(((x + y + int(seq)) * 512) & 0xFFFF)
		}
	}
	return buf
}
