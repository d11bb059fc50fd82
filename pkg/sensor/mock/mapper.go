package mock

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-kinect/pkg/sensor"
)

// Native focal lengths, scaled to the configured resolution.
const (
	nativeDepthFocal = 365.456
	nativeColorFocal = 1081.37
)

// mapper is an ideal pinhole model shared by the depth and color cameras.
// It ignores the baseline between the two cameras.
type mapper struct {
	cfg *Config
	dev *Device

	depthFocal float64
	colorFocal float64
}

func newMapper(cfg *Config, dev *Device) *mapper {
	return &mapper{
		cfg:        cfg,
		dev:        dev,
		depthFocal: nativeDepthFocal * float64(cfg.DepthWidth) / float64(sensor.DepthDescription.Width),
		colorFocal: nativeColorFocal * float64(cfg.ColorWidth) / float64(sensor.ColorDescription.Width),
	}
}

var negInf = math.Inf(-1)

func (m *mapper) MapCameraPointToDepthSpace(p r3.Vec) sensor.DepthSpacePoint {
	if p.Z <= 0 {
		return sensor.DepthSpacePoint{X: negInf, Y: negInf}
	}
	return sensor.DepthSpacePoint{
		X: m.depthFocal*p.X/p.Z + float64(m.cfg.DepthWidth)/2,
		Y: float64(m.cfg.DepthHeight)/2 - m.depthFocal*p.Y/p.Z,
	}
}

func (m *mapper) cameraToColor(p r3.Vec) sensor.ColorSpacePoint {
	if p.Z <= 0 {
		return sensor.ColorSpacePoint{X: negInf, Y: negInf}
	}
	return sensor.ColorSpacePoint{
		X: m.colorFocal*p.X/p.Z + float64(m.cfg.ColorWidth)/2,
		Y: float64(m.cfg.ColorHeight)/2 - m.colorFocal*p.Y/p.Z,
	}
}

func (m *mapper) MapColorFrameToDepthSpace(depth []uint16, out []sensor.DepthSpacePoint) error {
	dw, dh := m.cfg.DepthWidth, m.cfg.DepthHeight
	cw, ch := m.cfg.ColorWidth, m.cfg.ColorHeight
	if len(depth) != dw*dh {
		return sensor.Malformed(sensor.StreamDepth, "mapper expects %d depth pixels, got %d", dw*dh, len(depth))
	}
	if len(out) != cw*ch {
		return sensor.Malformed(sensor.StreamColor, "mapper expects %d output points, got %d", cw*ch, len(out))
	}

	sx := float64(dw) / float64(cw)
	sy := float64(dh) / float64(ch)
	for y := 0; y < ch; y++ {
		dy := int(float64(y) * sy)
		for x := 0; x < cw; x++ {
			dx := int(float64(x) * sx)
			i := y*cw + x
			if depth[dy*dw+dx] == 0 {
				out[i] = sensor.DepthSpacePoint{X: negInf, Y: negInf}
				continue
			}
			out[i] = sensor.DepthSpacePoint{X: float64(x) * sx, Y: float64(y) * sy}
		}
	}
	return nil
}

func (m *mapper) MapDepthFrameToColorSpace(depth []uint16, out []sensor.ColorSpacePoint) error {
	dw, dh := m.cfg.DepthWidth, m.cfg.DepthHeight
	if len(depth) != dw*dh {
		return sensor.Malformed(sensor.StreamDepth, "mapper expects %d depth pixels, got %d", dw*dh, len(depth))
	}
	if len(out) != len(depth) {
		return sensor.Malformed(sensor.StreamDepth, "mapper expects %d output points, got %d", len(depth), len(out))
	}

	sx := float64(m.cfg.ColorWidth) / float64(dw)
	sy := float64(m.cfg.ColorHeight) / float64(dh)
	for i, d := range depth {
		if d == 0 {
			out[i] = sensor.ColorSpacePoint{X: negInf, Y: negInf}
			continue
		}
		out[i] = sensor.ColorSpacePoint{X: float64(i%dw) * sx, Y: float64(i/dw) * sy}
	}
	return nil
}

// DepthCameraIntrinsics reports zeros until the first frame, like the
// real sensor during warm-up.
func (m *mapper) DepthCameraIntrinsics() (sensor.CameraIntrinsics, error) {
	if m.dev.Seq() == 0 {
		return sensor.CameraIntrinsics{}, nil
	}
	return sensor.CameraIntrinsics{
		FocalLengthX:                m.depthFocal,
		FocalLengthY:                m.depthFocal,
		PrincipalPointX:             float64(m.cfg.DepthWidth) / 2,
		PrincipalPointY:             float64(m.cfg.DepthHeight) / 2,
		RadialDistortionSecondOrder: 0.0927,
		RadialDistortionFourthOrder: -0.2734,
		RadialDistortionSixthOrder:  0.0913,
	}, nil
}

var _ sensor.CoordinateMapper = (*mapper)(nil)
