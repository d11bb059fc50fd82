// Package texture provides an RGBA pixel target that stands in for an
// engine texture. A Texture is owned by its consumer; producers such as the
// device poller hold it weakly and write into it while it is alive.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
	"time"
)

// ErrSizeMismatch is returned when written pixels do not match the texture.
var ErrSizeMismatch = errors.New("texture: size mismatch")

// Texture is an RGBA8 pixel buffer guarded by its own lock.
type Texture struct {
	mu      sync.RWMutex
	width   int
	height  int
	pix     []byte
	version uint64
	updated time.Time
}

// New creates a black, fully transparent texture.
func New(width, height int) *Texture {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Texture{
		width:  width,
		height: height,
		pix:    make([]byte, width*height*4),
	}
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.width
}

// Height returns the texture height in pixels.
func (t *Texture) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height
}

// Resize reallocates the texture to width x height, cleared to black.
// It reports whether the size changed; a same-size call keeps the pixels.
func (t *Texture) Resize(width, height int) bool {
	width, height = max(width, 0), max(height, 0)

	t.mu.Lock()
	defer t.mu.Unlock()
	if width == t.width && height == t.height {
		return false
	}
	t.width, t.height = width, height
	t.pix = make([]byte, width*height*4)
	return true
}

// Version increments on every successful write.
func (t *Texture) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Updated returns the time of the last write.
func (t *Texture) Updated() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updated
}

// Write replaces the texture contents with RGBA pixels.
func (t *Texture) Write(rgba []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(rgba) != len(t.pix) {
		return fmt.Errorf("%w: %dx%d texture needs %d bytes, got %d",
			ErrSizeMismatch, t.width, t.height, len(t.pix), len(rgba))
	}
	copy(t.pix, rgba)
	t.version++
	t.updated = time.Now()
	return nil
}

// WriteGray replaces the texture contents with 8-bit grayscale pixels,
// replicated across the color channels.
func (t *Texture) WriteGray(gray []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(gray)*4 != len(t.pix) {
		return fmt.Errorf("%w: %dx%d texture needs %d gray pixels, got %d",
			ErrSizeMismatch, t.width, t.height, len(t.pix)/4, len(gray))
	}
	for i, v := range gray {
		o := i * 4
		t.pix[o] = v
		t.pix[o+1] = v
		t.pix[o+2] = v
		t.pix[o+3] = 0xFF
	}
	t.version++
	t.updated = time.Now()
	return nil
}

// Pixels returns a copy of the RGBA contents.
func (t *Texture) Pixels() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]byte, len(t.pix))
	copy(out, t.pix)
	return out
}

// Image returns a copy of the contents as an image.
func (t *Texture) Image() *image.RGBA {
	t.mu.RLock()
	defer t.mu.RUnlock()

	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	copy(img.Pix, t.pix)
	return img
}

// EncodeJPEG writes the texture as a JPEG.
func (t *Texture) EncodeJPEG(w io.Writer, quality int) error {
	return jpeg.Encode(w, t.Image(), &jpeg.Options{Quality: quality})
}

// EncodePNG writes the texture as a PNG.
func (t *Texture) EncodePNG(w io.Writer) error {
	return png.Encode(w, t.Image())
}
