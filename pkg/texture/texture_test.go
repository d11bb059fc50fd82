package texture

import (
	"bytes"
	"errors"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTexture_Write(t *testing.T) {
	tex := New(2, 1)
	assert.Equal(t, uint64(0), tex.Version())
	assert.True(t, tex.Updated().IsZero())

	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, tex.Write(pix))

	assert.Equal(t, uint64(1), tex.Version())
	assert.False(t, tex.Updated().IsZero())
	assert.Equal(t, pix, tex.Pixels())

	// Pixels must be a copy.
	out := tex.Pixels()
	out[0] = 99
	assert.Equal(t, byte(1), tex.Pixels()[0])
}

func TestTexture_WriteSizeMismatch(t *testing.T) {
	tex := New(2, 2)

	err := tex.Write(make([]byte, 4))
	assert.True(t, errors.Is(err, ErrSizeMismatch))
	assert.Equal(t, uint64(0), tex.Version())

	err = tex.WriteGray(make([]byte, 3))
	assert.True(t, errors.Is(err, ErrSizeMismatch))
}

func TestTexture_WriteGray(t *testing.T) {
	tex := New(2, 1)
	require.NoError(t, tex.WriteGray([]byte{10, 200}))

	assert.Equal(t, []byte{10, 10, 10, 255, 200, 200, 200, 255}, tex.Pixels())
}

func TestTexture_NegativeSize(t *testing.T) {
	tex := New(-1, 5)
	assert.Equal(t, 0, tex.Width())
	assert.Empty(t, tex.Pixels())
}

func TestTexture_Encode(t *testing.T) {
	tex := New(4, 3)
	require.NoError(t, tex.WriteGray(bytes.Repeat([]byte{128}, 12)))

	var jbuf bytes.Buffer
	require.NoError(t, tex.EncodeJPEG(&jbuf, 80))
	img, err := jpeg.Decode(&jbuf)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	var pbuf bytes.Buffer
	require.NoError(t, tex.EncodePNG(&pbuf))
	pimg, err := png.Decode(&pbuf)
	require.NoError(t, err)
	r, g, b, a := pimg.At(1, 1).RGBA()
	assert.Equal(t, uint32(128<<8|128), r)
	assert.Equal(t, r, g)
	assert.Equal(t, r, b)
	assert.Equal(t, uint32(0xFFFF), a)
}

func TestTexture_Resize(t *testing.T) {
	tex := New(0, 0)
	assert.ErrorIs(t, tex.Write(make([]byte, 8)), ErrSizeMismatch)

	assert.True(t, tex.Resize(2, 1))
	assert.Equal(t, 2, tex.Width())
	assert.Equal(t, 1, tex.Height())
	require.NoError(t, tex.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	assert.False(t, tex.Resize(2, 1), "same size is a no-op")
	assert.Equal(t, byte(1), tex.Pixels()[0], "same size keeps pixels")

	assert.True(t, tex.Resize(1, 1))
	assert.Equal(t, make([]byte, 4), tex.Pixels())
	assert.Equal(t, uint64(1), tex.Version(), "resize alone is not a write")
}
