// Package testutil provides fixture helpers shared by tests: synthetic
// bitmaps and on-disk container files.
package testutil

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/kastelan/retropix/bundle"
)

// UniformRGBA returns a w×h bitmap filled with c.
func UniformRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// GradientRGBA returns a w×h bitmap with position-dependent colors and
// alpha, useful for asserting per-pixel behavior.
func GradientRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) % 256),
				A: uint8(y * 255 / max(h-1, 1)),
			})
		}
	}
	return img
}

// WriteContainer builds a container file at path holding the given named
// textures plus one raw object, and returns the serialized bytes.
func WriteContainer(tb testing.TB, path string, textures map[string]*image.RGBA) []byte {
	tb.Helper()

	env := bundle.New()
	env.AddRaw("manifest", []byte("fixture"))
	names := make([]string, 0, len(textures))
	for name := range textures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := env.AddTexture(name, textures[name]); err != nil {
			tb.Fatalf("AddTexture(%q) error = %v", name, err)
		}
	}

	data, err := env.Serialize()
	if err != nil {
		tb.Fatalf("Serialize() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("WriteFile() error = %v", err)
	}
	return data
}

// WriteMaskPNG writes mask as a grayscale PNG at path.
func WriteMaskPNG(tb testing.TB, path string, mask *image.Alpha) {
	tb.Helper()

	gray := image.NewGray(mask.Bounds())
	copy(gray.Pix, mask.Pix)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("MkdirAll() error = %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("Create() error = %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, gray); err != nil {
		tb.Fatalf("png.Encode() error = %v", err)
	}
}
