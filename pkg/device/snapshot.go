package device

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/decode"
	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// snapshot is the most recent decoded state of every stream.
type snapshot struct {
	headers [sensor.NumStreams]sensor.FrameHeader

	color     []byte
	colorDesc sensor.FrameDescription
	infrared  []byte
	irDesc    sensor.FrameDescription

	depth     []sensor.DepthPixel
	bodyIndex []byte
	depthDesc sensor.FrameDescription

	depthCoords []sensor.DepthSpacePoint
	colorCoords []sensor.ColorSpacePoint
	intrinsics  sensor.CameraIntrinsics

	bodies         [sensor.MaxBodies]sensor.Body
	floorClipPlane [4]float64

	faces         [sensor.MaxBodies]sensor.FaceFrame
	faceVertices  [sensor.MaxBodies][]r3.Vec
	faceStatus    [sensor.MaxBodies]sensor.ModelStatus
	faceTriangles []uint32
}

// stage holds the data decoded in one poll cycle before it is swapped in.
// Its slices trade places with the snapshot's on commit, so the two sets
// of buffers alternate and steady-state polling does not allocate.
type stage struct {
	changed [sensor.NumStreams]bool
	headers [sensor.NumStreams]sensor.FrameHeader

	color     []byte
	colorDesc sensor.FrameDescription
	infrared  []byte
	irDesc    sensor.FrameDescription

	depth     []sensor.DepthPixel
	bodyIndex []byte
	depthDesc sensor.FrameDescription

	depthCoords    []sensor.DepthSpacePoint
	colorCoords    []sensor.ColorSpacePoint
	depthCoordsNew bool
	colorCoordsNew bool
	intrinsics     sensor.CameraIntrinsics
	intrinsicsNew  bool

	bodies         [sensor.MaxBodies]sensor.Body
	floorClipPlane [4]float64

	faces         [sensor.MaxBodies]sensor.FaceFrame
	facesNew      [sensor.MaxBodies]bool
	faceVertices  [sensor.MaxBodies][]r3.Vec
	faceStatus    [sensor.MaxBodies]sensor.ModelStatus
	hdFacesNew    [sensor.MaxBodies]bool
	faceTriangles []uint32
}

func (s *stage) reset() {
	s.changed = [sensor.NumStreams]bool{}
	s.depthCoordsNew = false
	s.colorCoordsNew = false
	s.intrinsicsNew = false
	s.facesNew = [sensor.MaxBodies]bool{}
	s.hdFacesNew = [sensor.MaxBodies]bool{}
}

func (s *stage) mark(kind sensor.StreamKind, hdr sensor.FrameHeader) {
	s.changed[kind] = true
	s.headers[kind] = hdr
}

// poll runs one acquisition cycle. Depth is decoded first so that joints
// can be projected onto the current depth frame, and bodies before faces
// so that trackers follow this frame's tracking IDs.
func (p *Poller) poll() {
	st := &p.stage
	st.reset()
	p.stats.cycles.Add(1)

	depthNew := p.pollDepth(st)
	if p.updatingColor.Load() {
		p.pollColor(st)
	}
	p.pollInfrared(st)
	if depthNew {
		p.pollCoordinates(st)
	}
	p.pollIntrinsics(st)
	p.pollBodies(st)
	p.pollFaces(st)
	p.pollHDFaces(st)

	if !p.commit(st) {
		return
	}
	p.updateTextures(st)
	if p.onUpdate != nil {
		for kind, ok := range st.changed {
			if ok {
				p.onUpdate(sensor.StreamKind(kind))
			}
		}
	}
}

// acquire fetches the newest frame of a stream. A missing reader or
// sensor.ErrNoFrame yields nil without counting an error.
func (p *Poller) acquire(kind sensor.StreamKind) sensor.Frame {
	r := p.readers[kind]
	if r == nil {
		return nil
	}
	f, err := r.AcquireLatest()
	switch {
	case err == nil:
		return f
	case errors.Is(err, sensor.ErrNoFrame):
		return nil
	default:
		p.stats.readErrors[kind].Add(1)
		p.logger.Debug("acquire failed", "stream", kind.String(), "error", err)
		return nil
	}
}

func (p *Poller) decodeFailed(kind sensor.StreamKind, err error) {
	p.stats.decodeFailures[kind].Add(1)
	p.logger.Debug("frame dropped", "stream", kind.String(), "error", err)
}

func unexpectedFrame(kind sensor.StreamKind, f sensor.Frame) error {
	return sensor.Malformed(kind, "unexpected frame type %T", f)
}

func (p *Poller) pollDepth(st *stage) bool {
	depthNew, indexNew := false, false

	if f := p.acquire(sensor.StreamDepth); f != nil {
		df, ok := f.(*sensor.DepthFrame)
		switch {
		case !ok:
			p.decodeFailed(sensor.StreamDepth, unexpectedFrame(sensor.StreamDepth, f))
		case len(df.Data) != df.Desc.Pixels():
			p.decodeFailed(sensor.StreamDepth, sensor.Malformed(sensor.StreamDepth,
				"expected %d pixels for %dx%d, got %d", df.Desc.Pixels(), df.Desc.Width, df.Desc.Height, len(df.Data)))
		default:
			p.rawDepth = decode.Grow(p.rawDepth, len(df.Data))
			copy(p.rawDepth, df.Data)
			p.depthDesc = df.Desc
			st.mark(sensor.StreamDepth, df.FrameHeader)
			depthNew = true
		}
	}

	if f := p.acquire(sensor.StreamBodyIndex); f != nil {
		bf, ok := f.(*sensor.BodyIndexFrame)
		if !ok {
			p.decodeFailed(sensor.StreamBodyIndex, unexpectedFrame(sensor.StreamBodyIndex, f))
		} else if idx, err := decode.BodyIndexCopy(p.rawIndex, bf.Data, bf.Desc); err != nil {
			p.decodeFailed(sensor.StreamBodyIndex, err)
		} else {
			p.rawIndex = idx
			st.bodyIndex = decode.Grow(st.bodyIndex, len(idx))
			copy(st.bodyIndex, idx)
			st.depthDesc = bf.Desc
			st.mark(sensor.StreamBodyIndex, bf.FrameHeader)
			indexNew = true
		}
	}

	if !depthNew && !(indexNew && p.rawDepth != nil) {
		return false
	}

	// Pair depth with whichever body index is current; a stale index of a
	// different size is ignored.
	index := p.rawIndex
	if len(index) != len(p.rawDepth) {
		index = nil
	}
	merged, err := decode.MergeDepth(st.depth, p.rawDepth, index, p.depthDesc)
	if err != nil {
		p.decodeFailed(sensor.StreamDepth, err)
		st.changed[sensor.StreamDepth] = false
		return false
	}
	st.depth = merged
	st.depthDesc = p.depthDesc
	if !depthNew {
		// Body index refreshed an existing depth frame.
		st.headers[sensor.StreamDepth] = p.snap.headers[sensor.StreamDepth]
		st.changed[sensor.StreamDepth] = true
	}
	return depthNew
}

func (p *Poller) pollColor(st *stage) {
	f := p.acquire(sensor.StreamColor)
	if f == nil {
		return
	}
	cf, ok := f.(*sensor.ColorFrame)
	if !ok {
		p.decodeFailed(sensor.StreamColor, unexpectedFrame(sensor.StreamColor, f))
		return
	}
	rgba, err := decode.ColorBGRAToRGBA(st.color, cf.Data, cf.Desc)
	if err != nil {
		p.decodeFailed(sensor.StreamColor, err)
		return
	}
	st.color = rgba
	st.colorDesc = cf.Desc
	st.mark(sensor.StreamColor, cf.FrameHeader)
}

func (p *Poller) pollInfrared(st *stage) {
	f := p.acquire(sensor.StreamInfrared)
	if f == nil {
		return
	}
	irf, ok := f.(*sensor.InfraredFrame)
	if !ok {
		p.decodeFailed(sensor.StreamInfrared, unexpectedFrame(sensor.StreamInfrared, f))
		return
	}
	gray, err := decode.InfraredTo8Bit(st.infrared, irf.Data, irf.Desc)
	if err != nil {
		p.decodeFailed(sensor.StreamInfrared, err)
		return
	}
	st.infrared = gray
	st.irDesc = irf.Desc
	st.mark(sensor.StreamInfrared, irf.FrameHeader)
}

func (p *Poller) pollCoordinates(st *stage) {
	if p.mapper == nil {
		return
	}
	if p.cfg.DepthCoordinates {
		colorPixels := p.descs[sensor.StreamColor].Pixels()
		if colorPixels == 0 {
			if d, err := p.dev.Description(sensor.StreamColor); err == nil {
				colorPixels = d.Pixels()
			}
		}
		if colorPixels > 0 {
			st.depthCoords = decode.Grow(st.depthCoords, colorPixels)
			if err := p.mapper.MapColorFrameToDepthSpace(p.rawDepth, st.depthCoords); err != nil {
				p.decodeFailed(sensor.StreamDepth, fmt.Errorf("map color to depth: %w", err))
			} else {
				st.depthCoordsNew = true
			}
		}
	}
	if p.cfg.ColorCoordinates {
		st.colorCoords = decode.Grow(st.colorCoords, len(p.rawDepth))
		if err := p.mapper.MapDepthFrameToColorSpace(p.rawDepth, st.colorCoords); err != nil {
			p.decodeFailed(sensor.StreamDepth, fmt.Errorf("map depth to color: %w", err))
		} else {
			st.colorCoordsNew = true
		}
	}
}

// pollIntrinsics queries calibration until the sensor reports it. The
// sensor returns zeros while it warms up.
func (p *Poller) pollIntrinsics(st *stage) {
	if p.mapper == nil || !p.snap.intrinsics.IsZero() {
		return
	}
	intr, err := p.mapper.DepthCameraIntrinsics()
	if err != nil {
		p.logger.Debug("intrinsics unavailable", "error", err)
		return
	}
	if intr.IsZero() {
		return
	}
	st.intrinsics = intr
	st.intrinsicsNew = true
	p.logger.Info("camera intrinsics ready",
		"fx", intr.FocalLengthX, "fy", intr.FocalLengthY,
		"cx", intr.PrincipalPointX, "cy", intr.PrincipalPointY)
}

func (p *Poller) pollBodies(st *stage) {
	f := p.acquire(sensor.StreamBody)
	if f == nil {
		return
	}
	bf, ok := f.(*sensor.BodyFrame)
	if !ok {
		p.decodeFailed(sensor.StreamBody, unexpectedFrame(sensor.StreamBody, f))
		return
	}

	st.bodies = bf.Bodies
	st.floorClipPlane = bf.FloorClipPlane
	var depth []uint16
	if len(p.rawDepth) == p.depthDesc.Pixels() && len(p.rawDepth) > 0 {
		depth = p.rawDepth
	}
	for i := range st.bodies {
		decode.ProjectJoints(&st.bodies[i], p.mapper, depth, p.depthDesc)
	}
	st.mark(sensor.StreamBody, bf.FrameHeader)

	for slot := range st.bodies {
		p.retarget(slot, &st.bodies[slot])
	}
}

// retarget points the face trackers of a slot at the body now in it.
func (p *Poller) retarget(slot int, b *sensor.Body) {
	var id uint64
	if b.Tracked {
		id = b.TrackingID
	}
	if p.trackingIDs[slot] == id {
		return
	}
	p.trackingIDs[slot] = id
	if ft := p.faces[slot]; ft != nil {
		ft.SetTrackingID(id)
	}
	if ht := p.hdFaces[slot]; ht != nil {
		ht.SetTrackingID(id)
	}
	p.logger.Debug("face trackers retargeted", "slot", slot, "tracking_id", id)
}

func (p *Poller) pollFaces(st *stage) {
	for slot, ft := range p.faces {
		if ft == nil {
			continue
		}
		f, err := ft.AcquireLatest()
		if err != nil {
			if !errors.Is(err, sensor.ErrNoFrame) {
				p.stats.readErrors[sensor.StreamFace].Add(1)
				p.logger.Debug("acquire failed", "stream", "face", "slot", slot, "error", err)
			}
			continue
		}
		st.faces[slot] = *f
		st.facesNew[slot] = true
		st.mark(sensor.StreamFace, f.FrameHeader)
	}
}

func (p *Poller) pollHDFaces(st *stage) {
	for slot, ht := range p.hdFaces {
		if ht == nil {
			continue
		}
		f, err := ht.AcquireLatest()
		if err != nil {
			if !errors.Is(err, sensor.ErrNoFrame) {
				p.stats.readErrors[sensor.StreamHDFace].Add(1)
				p.logger.Debug("acquire failed", "stream", "hd_face", "slot", slot, "error", err)
			}
			continue
		}

		st.faceStatus[slot] = f.Status
		st.faceVertices[slot] = st.faceVertices[slot][:0]
		if f.Valid && f.Model != nil {
			verts, err := f.Model.Vertices(f.Alignment)
			if err != nil {
				p.decodeFailed(sensor.StreamHDFace, err)
				continue
			}
			st.faceVertices[slot] = append(st.faceVertices[slot], verts...)
			if p.snap.faceTriangles == nil && st.faceTriangles == nil {
				st.faceTriangles = f.Model.Triangles()
			}
		}
		st.hdFacesNew[slot] = true
		st.mark(sensor.StreamHDFace, f.FrameHeader)
	}
}

// commit swaps the staged data into the snapshot. It reports whether
// anything changed.
func (p *Poller) commit(st *stage) bool {
	dirty := st.intrinsicsNew
	for _, ok := range st.changed {
		dirty = dirty || ok
	}
	if !dirty {
		return false
	}

	now := time.Now()
	p.mu.Lock()
	s := &p.snap
	if st.changed[sensor.StreamColor] {
		s.color, st.color = st.color, s.color
		s.colorDesc = st.colorDesc
	}
	if st.changed[sensor.StreamInfrared] {
		s.infrared, st.infrared = st.infrared, s.infrared
		s.irDesc = st.irDesc
	}
	if st.changed[sensor.StreamDepth] {
		s.depth, st.depth = st.depth, s.depth
		s.depthDesc = st.depthDesc
	}
	if st.changed[sensor.StreamBodyIndex] {
		s.bodyIndex, st.bodyIndex = st.bodyIndex, s.bodyIndex
		s.depthDesc = st.depthDesc
	}
	if st.depthCoordsNew {
		s.depthCoords, st.depthCoords = st.depthCoords, s.depthCoords
	}
	if st.colorCoordsNew {
		s.colorCoords, st.colorCoords = st.colorCoords, s.colorCoords
	}
	if st.intrinsicsNew {
		s.intrinsics = st.intrinsics
	}
	if st.changed[sensor.StreamBody] {
		s.bodies = st.bodies
		s.floorClipPlane = st.floorClipPlane
	}
	for slot := range st.faces {
		if st.facesNew[slot] {
			s.faces[slot] = st.faces[slot]
		}
		if st.hdFacesNew[slot] {
			s.faceVertices[slot], st.faceVertices[slot] = st.faceVertices[slot], s.faceVertices[slot]
			s.faceStatus[slot] = st.faceStatus[slot]
		}
	}
	if st.faceTriangles != nil {
		s.faceTriangles = st.faceTriangles
		st.faceTriangles = nil
	}
	for kind, ok := range st.changed {
		if ok {
			s.headers[kind] = st.headers[kind]
		}
	}
	p.mu.Unlock()

	for kind, ok := range st.changed {
		if ok {
			p.stats.frames[kind].Add(1)
		}
	}
	p.stats.lastFrame.Store(now.UnixNano())
	return true
}
