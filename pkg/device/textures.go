package device

import (
	"weak"

	"github.com/teslashibe/go-kinect/pkg/sensor"
	"github.com/teslashibe/go-kinect/pkg/texture"
)

// ColorTexture returns the live color texture, creating one seeded with the
// latest color frame when none exists. The poller holds only a weak
// reference: once every caller drops the texture it stops being updated
// and the next call creates a fresh one.
func (p *Poller) ColorTexture() *texture.Texture {
	p.texMu.Lock()
	defer p.texMu.Unlock()

	if t := p.colorTex.Value(); t != nil {
		return t
	}

	p.mu.RLock()
	desc := p.snap.colorDesc
	if desc.IsZero() {
		desc = p.descs[sensor.StreamColor]
	}
	t := texture.New(desc.Width, desc.Height)
	if len(p.snap.color) > 0 {
		if err := t.Write(p.snap.color); err != nil {
			p.logger.Debug("color texture seed failed", "error", err)
		}
	}
	p.mu.RUnlock()

	p.colorTex = weak.Make(t)
	return t
}

// InfraredTexture returns the live infrared texture, with the same
// ownership rules as ColorTexture. Intensities are expanded to gray RGBA.
func (p *Poller) InfraredTexture() *texture.Texture {
	p.texMu.Lock()
	defer p.texMu.Unlock()

	if t := p.irTex.Value(); t != nil {
		return t
	}

	p.mu.RLock()
	desc := p.snap.irDesc
	if desc.IsZero() {
		desc = p.descs[sensor.StreamInfrared]
	}
	t := texture.New(desc.Width, desc.Height)
	if len(p.snap.infrared) > 0 {
		if err := t.WriteGray(p.snap.infrared); err != nil {
			p.logger.Debug("infrared texture seed failed", "error", err)
		}
	}
	p.mu.RUnlock()

	p.irTex = weak.Make(t)
	return t
}

// updateTextures pushes freshly committed pixels into live textures,
// resizing a target whose size no longer matches the frame. It runs on the
// poll goroutine, which may read the snapshot unlocked.
func (p *Poller) updateTextures(st *stage) {
	if !st.changed[sensor.StreamColor] && !st.changed[sensor.StreamInfrared] {
		return
	}

	p.texMu.Lock()
	color := p.colorTex.Value()
	ir := p.irTex.Value()
	p.texMu.Unlock()

	if color != nil && st.changed[sensor.StreamColor] {
		p.writeTexture(color, p.snap.colorDesc, sensor.StreamColor, func() error {
			return color.Write(p.snap.color)
		})
	}
	if ir != nil && st.changed[sensor.StreamInfrared] {
		p.writeTexture(ir, p.snap.irDesc, sensor.StreamInfrared, func() error {
			return ir.WriteGray(p.snap.infrared)
		})
	}
}

func (p *Poller) writeTexture(t *texture.Texture, desc sensor.FrameDescription, kind sensor.StreamKind, write func() error) {
	if t.Resize(desc.Width, desc.Height) {
		p.logger.Debug("texture resized", "stream", kind.String(), "width", desc.Width, "height", desc.Height)
	}
	if err := write(); err != nil {
		p.stats.textureFailures.Add(1)
		p.logger.Debug("texture write failed", "stream", kind.String(), "error", err)
	}
}
