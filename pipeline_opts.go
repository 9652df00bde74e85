package retropix

import (
	"log/slog"

	"github.com/kastelan/retropix/bundle"
	"github.com/kastelan/retropix/pixel"
	"github.com/kastelan/retropix/swap"
)

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a logger for the pipeline. It is propagated to the
// compositor and the replacement manager. If nil, output is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = logger
		return nil
	}
}

// WithProgress sets a callback receiving progress events during a run.
// Rendered events carry a "current/total" substring host UIs may parse.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) error {
		p.progress = fn
		return nil
	}
}

// WithShadowThreshold sets the lower alpha bound for black-shadow hardening.
// The default is pixel.DefaultShadowThreshold.
func WithShadowThreshold(threshold uint8) Option {
	return func(p *Pipeline) error {
		p.shadowThreshold = threshold
		return nil
	}
}

// WithSwapOptions configures lock polling for the replacement phase.
func WithSwapOptions(opts swap.Options) Option {
	return func(p *Pipeline) error {
		p.swapOpts = opts
		return nil
	}
}

// WithDebugDir overrides the edition's debug export folder. Transformed
// textures are additionally written there as standalone PNG files mirroring
// the container layout. Observability only; never affects the edit itself.
func WithDebugDir(dir string) Option {
	return func(p *Pipeline) error {
		p.debugDir = dir
		return nil
	}
}

// WithBundleOptions passes options through to the container codec, e.g.
// bundle.WithCompressor to override the payload compression implementation.
func WithBundleOptions(opts ...bundle.Option) Option {
	return func(p *Pipeline) error {
		p.bundleOpts = append(p.bundleOpts, opts...)
		return nil
	}
}

// New creates a Pipeline.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		shadowThreshold: pixel.DefaultShadowThreshold,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.swapOpts.Logger == nil {
		p.swapOpts.Logger = p.logger
	}
	p.manager = swap.NewManager(p.swapOpts)
	return p, nil
}
