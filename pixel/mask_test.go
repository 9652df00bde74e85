package pixel

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastelan/retropix/internal/testutil"
)

func transparentHalf(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(0)
			if y >= h/2 {
				a = 180
			}
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 9, A: a})
		}
	}
	return img
}

func TestAlphaMask(t *testing.T) {
	t.Parallel()

	img := transparentHalf(8, 8)
	mask := AlphaMask(img)

	assert.Equal(t, uint8(0), mask.Pix[mask.PixOffset(3, 1)])
	assert.Equal(t, uint8(180), mask.Pix[mask.PixOffset(3, 6)])
}

func TestHardAlphaMaskIsBinary(t *testing.T) {
	t.Parallel()

	img := transparentHalf(8, 8)
	mask := HardAlphaMask(img)

	for _, a := range mask.Pix {
		assert.True(t, a == 0 || a == 255, "hard mask value %d", a)
	}
	assert.Equal(t, uint8(0), mask.Pix[mask.PixOffset(0, 0)])
	assert.Equal(t, uint8(255), mask.Pix[mask.PixOffset(0, 7)])
}

func TestCompositeSelects(t *testing.T) {
	t.Parallel()

	a := testutil.UniformRGBA(4, 4, color.RGBA{R: 255, A: 255})
	b := testutil.UniformRGBA(4, 4, color.RGBA{B: 255, A: 255})

	white := image.NewAlpha(image.Rect(0, 0, 4, 4))
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	black := image.NewAlpha(image.Rect(0, 0, 4, 4))

	fromA, err := Composite(a, b, white)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, fromA.Pix)

	fromB, err := Composite(a, b, black)
	require.NoError(t, err)
	assert.Equal(t, b.Pix, fromB.Pix)
}

func TestCompositeSizeMismatch(t *testing.T) {
	t.Parallel()

	a := testutil.UniformRGBA(4, 4, color.RGBA{A: 255})
	b := testutil.UniformRGBA(4, 4, color.RGBA{A: 255})
	mask := image.NewAlpha(image.Rect(0, 0, 8, 8))

	_, err := Composite(a, b, mask)
	assert.ErrorIs(t, err, ErrMaskSize)
}

func TestBlendAlphaSelects(t *testing.T) {
	t.Parallel()

	a := image.NewAlpha(image.Rect(0, 0, 2, 2))
	b := image.NewAlpha(image.Rect(0, 0, 2, 2))
	sel := image.NewAlpha(image.Rect(0, 0, 2, 2))
	for i := range a.Pix {
		a.Pix[i] = 10
		b.Pix[i] = 200
	}
	sel.Pix[0] = 255 // others 0

	out := BlendAlpha(a, b, sel)
	assert.Equal(t, uint8(10), out.Pix[0])
	assert.Equal(t, uint8(200), out.Pix[1])
}

func TestApplyAlpha(t *testing.T) {
	t.Parallel()

	img := testutil.UniformRGBA(2, 2, color.RGBA{R: 7, A: 255})
	mask := image.NewAlpha(image.Rect(0, 0, 2, 2))
	mask.Pix[0] = 42

	ApplyAlpha(img, mask)
	assert.Equal(t, color.RGBA{R: 7, A: 42}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 7, A: 0}, img.RGBAAt(1, 0))
}

func TestLoadMaskAndPaste(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "mask.png")

	authored := image.NewAlpha(image.Rect(0, 0, 4, 4))
	for i := range authored.Pix {
		authored.Pix[i] = 255
	}
	testutil.WriteMaskPNG(t, path, authored)

	mask, err := LoadMask(path)
	require.NoError(t, err)
	assert.Equal(t, 4, mask.Bounds().Dx())
	for _, v := range mask.Pix {
		assert.Equal(t, uint8(255), v)
	}

	hard := image.NewAlpha(image.Rect(0, 0, 4, 4))
	hard.Pix[0] = 255 // rest transparent
	PasteMask(mask, hard)
	assert.Equal(t, hard.Pix, mask.Pix)
}

func TestLoadMaskMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadMask(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}
