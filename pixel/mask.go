package pixel

import (
	"fmt"
	"image"
	"os"

	_ "image/png" // mask decoding

	_ "golang.org/x/image/bmp" // mask decoding
)

// AlphaMask extracts the alpha channel of img as a grayscale mask.
func AlphaMask(img *image.RGBA) *image.Alpha {
	b := img.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.PixOffset(b.Min.X, y)
		dst := mask.PixOffset(0, y-b.Min.Y)
		for x := 0; x < b.Dx(); x++ {
			mask.Pix[dst+x] = img.Pix[src+x*4+3]
		}
	}
	return mask
}

// HardAlphaMask extracts a binary opacity mask from img: any alpha above
// zero becomes 255, fully transparent stays 0. Partial transparency is
// deliberately ignored so the mask marks the whole opaque footprint.
func HardAlphaMask(img *image.RGBA) *image.Alpha {
	mask := AlphaMask(img)
	for i, a := range mask.Pix {
		if a > 0 {
			mask.Pix[i] = 255
		}
	}
	return mask
}

// LoadMask reads an authored mask file (PNG or BMP) and reduces it to a
// grayscale mask via standard luminance weighting.
func LoadMask(path string) (*image.Alpha, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mask: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode mask %s: %w", path, err)
	}

	b := img.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R 601 luma, on 16-bit channel values.
			l := (299*r + 587*g + 114*bl) / 1000
			mask.Pix[mask.PixOffset(x-b.Min.X, y-b.Min.Y)] = uint8(l >> 8)
		}
	}
	return mask, nil
}

// PasteMask copies src over dst at the origin, overwriting dst values in the
// overlapping region. dst keeps its own values outside src's bounds.
func PasteMask(dst, src *image.Alpha) {
	w := min(dst.Bounds().Dx(), src.Bounds().Dx())
	h := min(dst.Bounds().Dy(), src.Bounds().Dy())
	for y := 0; y < h; y++ {
		copy(dst.Pix[dst.PixOffset(0, y):dst.PixOffset(0, y)+w],
			src.Pix[src.PixOffset(0, y):src.PixOffset(0, y)+w])
	}
}

// Composite blends the color channels of a and b through mask: where the
// mask is white the result comes from a, where black from b, with
// intermediate values blending linearly. The alpha channel of the result is
// blended the same way; callers that need a specific transparency pattern
// reapply it afterwards with ApplyAlpha.
func Composite(a, b *image.RGBA, mask *image.Alpha) (*image.RGBA, error) {
	if !sameSize(a.Bounds(), b.Bounds()) || a.Bounds().Dx() != mask.Bounds().Dx() ||
		a.Bounds().Dy() != mask.Bounds().Dy() {
		return nil, ErrMaskSize
	}

	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		ra := a.Pix[a.PixOffset(a.Bounds().Min.X, a.Bounds().Min.Y+y):]
		rb := b.Pix[b.PixOffset(b.Bounds().Min.X, b.Bounds().Min.Y+y):]
		rm := mask.Pix[mask.PixOffset(0, y):]
		ro := out.Pix[out.PixOffset(0, y):]
		for x := 0; x < w; x++ {
			m := uint32(rm[x])
			inv := 255 - m
			for c := 0; c < 4; c++ {
				i := x*4 + c
				ro[i] = uint8((uint32(ra[i])*m + uint32(rb[i])*inv + 127) / 255)
			}
		}
	}
	return out, nil
}

// BlendAlpha selects between two alpha channels through mask, the same way
// Composite selects color channels.
func BlendAlpha(a, b, mask *image.Alpha) *image.Alpha {
	w, h := mask.Bounds().Dx(), mask.Bounds().Dy()
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		ra := a.Pix[a.PixOffset(0, y):]
		rb := b.Pix[b.PixOffset(0, y):]
		rm := mask.Pix[mask.PixOffset(0, y):]
		ro := out.Pix[out.PixOffset(0, y):]
		for x := 0; x < w; x++ {
			m := uint32(rm[x])
			ro[x] = uint8((uint32(ra[x])*m + uint32(rb[x])*(255-m) + 127) / 255)
		}
	}
	return out
}

// ApplyAlpha overwrites img's alpha channel with mask, in place.
func ApplyAlpha(img *image.RGBA, mask *image.Alpha) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := mask.PixOffset(0, y-b.Min.Y)
		dst := img.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			img.Pix[dst+x*4+3] = mask.Pix[src+x]
		}
	}
}

func sameSize(a, b image.Rectangle) bool {
	return a.Dx() == b.Dx() && a.Dy() == b.Dy()
}
