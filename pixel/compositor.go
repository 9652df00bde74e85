package pixel

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
)

// Compositor applies the full per-texture transform: pixelation, optional
// authored-mask compositing, alpha restoration, and optional shadow
// hardening. The zero value is not usable; construct with NewCompositor.
type Compositor struct {
	resizeAmount    float64
	shadowThreshold uint8
	logger          *slog.Logger
}

// NewCompositor creates a Compositor with the given pixelation strength.
func NewCompositor(resizeAmount float64, opts ...CompositorOption) (*Compositor, error) {
	if resizeAmount <= 0 || resizeAmount > 1 {
		return nil, ErrResizeAmount
	}
	c := &Compositor{
		resizeAmount:    resizeAmount,
		shadowThreshold: DefaultShadowThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CompositorOption configures a Compositor.
type CompositorOption func(*Compositor)

// WithShadowThreshold sets the lower alpha bound for shadow hardening.
func WithShadowThreshold(threshold uint8) CompositorOption {
	return func(c *Compositor) {
		c.shadowThreshold = threshold
	}
}

// WithLogger sets a logger for the compositor. If nil, output is discarded.
func WithLogger(logger *slog.Logger) CompositorOption {
	return func(c *Compositor) {
		c.logger = logger
	}
}

func (c *Compositor) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.logger
}

// Process transforms one texture and returns a new image with identical
// dimensions. Fully transparent source pixels are fully transparent in the
// output. A missing mask file is expected and falls back to the texture's own
// opacity footprint; only IO or format failures return an error.
//
// blackShadows is per texture so callers can exclude individual textures
// from shadow hardening.
func (c *Compositor) Process(img *image.RGBA, maskPath, name string, blackShadows bool) (*image.RGBA, error) {
	alpha := AlphaMask(img)
	hardAlpha := HardAlphaMask(img)

	pixelated, err := Pixelate(img, c.resizeAmount)
	if err != nil {
		return nil, err
	}

	if blackShadows {
		HardenShadows(pixelated, c.shadowThreshold)
	}

	mask, err := c.resolveMask(maskPath, name, hardAlpha)
	if err != nil {
		return nil, err
	}

	final, err := Composite(pixelated, img, mask)
	if err != nil {
		return nil, fmt.Errorf("composite %s: %w", name, err)
	}

	// Restore transparency. Shadow hardening lives in the alpha channel, so
	// with shadows enabled the output alpha must follow the pixelated
	// pattern inside the opaque footprint and the original pattern outside
	// it; otherwise the original alpha comes back unchanged.
	if blackShadows {
		ApplyAlpha(final, BlendAlpha(AlphaMask(pixelated), alpha, hardAlpha))
		c.log().Info("hardened shadows", "texture", name)
	} else {
		ApplyAlpha(final, alpha)
	}
	return final, nil
}

// resolveMask loads the authored mask and pastes the hard alpha mask over
// its origin, so the mask can never select fully transparent source pixels
// for pixelation regardless of what was authored. Without an authored mask
// the hard alpha mask is used directly.
func (c *Compositor) resolveMask(maskPath, name string, hardAlpha *image.Alpha) (*image.Alpha, error) {
	if maskPath == "" {
		c.log().Warn("no custom mask configured, using alpha channel", "texture", name)
		return hardAlpha, nil
	}
	if _, err := os.Stat(maskPath); err != nil {
		c.log().Warn("custom mask not found, using alpha channel",
			"texture", name, "mask", maskPath)
		return hardAlpha, nil
	}

	mask, err := LoadMask(maskPath)
	if err != nil {
		return nil, err
	}
	PasteMask(mask, hardAlpha)
	c.log().Info("pixelating with custom mask", "texture", name, "mask", maskPath)
	return mask, nil
}
