// Package pixel implements the texture transforms: nearest-neighbor
// pixelation, alpha-preserving mask compositing, and black-shadow hardening.
package pixel

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Sentinel errors.
var (
	// ErrResizeAmount is returned when the pixelation factor is outside (0, 1].
	ErrResizeAmount = errors.New("pixel: resize amount must be in (0, 1]")

	// ErrMaskSize is returned when an authored mask's dimensions do not match
	// the texture being composited.
	ErrMaskSize = errors.New("pixel: mask dimensions do not match image")
)

// DefaultShadowThreshold is the default lower alpha bound for shadow
// hardening. Observed values vary between 64 and 127 across patch releases;
// the threshold stays a parameter rather than a constant of the algorithm.
const DefaultShadowThreshold uint8 = 64

// Pixelate downscales img by factor with nearest-neighbor sampling and
// upscales the result back to the original dimensions, again with
// nearest-neighbor. The output always has the same bounds as the input, and
// because nearest-neighbor never blends samples, alpha values travel with
// their color channels and no new alpha values are introduced.
func Pixelate(img *image.RGBA, factor float64) (*image.RGBA, error) {
	if factor <= 0 || factor > 1 {
		return nil, ErrResizeAmount
	}

	b := img.Bounds()
	w := int(math.RoundToEven(float64(b.Dx()) * factor))
	h := int(math.RoundToEven(float64(b.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(small, small.Bounds(), img, b, draw.Src, nil)

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.NearestNeighbor.Scale(out, out.Bounds(), small, small.Bounds(), draw.Src, nil)
	return out, nil
}

// HardenShadows recolors semi-transparent pure-black pixels to fully opaque
// black, in place. A pixel qualifies when R=G=B=0 and threshold < A < 255:
// strictly above the threshold so faint haze survives, strictly below 255 so
// already-opaque black is untouched. Source engines render soft shadows as
// semi-transparent black; pixelating them naively yields washed-out blur, and
// this pass flattens them into hard retro-style shadows.
func HardenShadows(img *image.RGBA, threshold uint8) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			a := row[i+3]
			if row[i] == 0 && row[i+1] == 0 && row[i+2] == 0 && a > threshold && a < 255 {
				row[i+3] = 255
			}
		}
	}
}

// OffsetCorrect shifts a pixelated image by round((1/factor)/2) pixels on
// both axes and re-stamps the right edge, bottom edge, and bottom-right
// corner from the first row and column to hide boundary spillover from the
// downscale/upscale cycle.
//
// Legacy: the correction produces visible artifacts on some textures and is
// not applied on the default pipeline path.
func OffsetCorrect(img *image.RGBA, factor float64) *image.RGBA {
	offset := int(math.RoundToEven((1 / factor) / 2))
	if offset <= 0 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	draw.Draw(out, image.Rect(offset, offset, w, h), img, b.Min, draw.Src)

	// Right edge from the first column, bottom edge from the first row.
	for i := 0; i < offset; i++ {
		for y := 0; y < h-offset; y++ {
			out.SetRGBA(w-1-i, y+offset, img.RGBAAt(b.Min.X, b.Min.Y+y))
		}
		for x := 0; x < w-offset; x++ {
			out.SetRGBA(x+offset, h-1-i, img.RGBAAt(b.Min.X+x, b.Min.Y))
		}
	}

	corner := img.RGBAAt(b.Min.X, b.Min.Y)
	for i := 0; i < offset; i++ {
		for j := 0; j < offset; j++ {
			out.SetRGBA(w-1-i, h-1-j, corner)
		}
	}
	return out
}
