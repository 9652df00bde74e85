// Package bundle reads and writes asset container files: serialized bundles
// of named typed objects, including textures decodable into RGBA bitmaps.
//
// The pipeline treats this package as an opaque collaborator: it loads a
// container, walks its objects, rewrites texture payloads, and serializes
// the whole container back to bytes. Texture payloads are zstd-compressed
// and carry a digest of the uncompressed pixels, verified on decode.
package bundle

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/opencontainers/go-digest"
)

// Sentinel errors.
var (
	// ErrBadMagic is returned when a file does not start with the container
	// signature.
	ErrBadMagic = errors.New("bundle: bad magic")

	// ErrTruncated is returned when a container ends mid-record.
	ErrTruncated = errors.New("bundle: truncated container")

	// ErrDigestMismatch is returned when a texture payload does not match its
	// recorded digest.
	ErrDigestMismatch = errors.New("bundle: payload digest mismatch")

	// ErrNoImage is returned when a texture object carries no decodable
	// pixel payload.
	ErrNoImage = errors.New("bundle: texture has no image payload")
)

// Kind identifies the type of a container object.
type Kind uint8

const (
	// KindRaw is an opaque non-texture object, carried through untouched.
	KindRaw Kind = iota

	// KindTexture is a named object decodable into an RGBA bitmap.
	KindTexture
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindTexture:
		return "texture"
	default:
		return "unknown"
	}
}

// Environment is a loaded container: an ordered collection of named objects.
// It is stateful and not safe for concurrent use; each container file is
// owned by at most one Environment at a time.
type Environment struct {
	objects    []*Object
	compressor Compressor
}

// Option configures an Environment.
type Option func(*Environment)

// WithCompressor overrides the payload codec. This is the seam for swapping
// a broken or alternative compression implementation without forking the
// format; the default is zstd.
func WithCompressor(c Compressor) Option {
	return func(e *Environment) {
		if c != nil {
			e.compressor = c
		}
	}
}

// New creates an empty container.
func New(opts ...Option) *Environment {
	e := &Environment{compressor: defaultCompressor}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads and parses a container file.
func Load(path string, opts ...Option) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load container: %w", err)
	}
	e := New(opts...)
	if err := e.decode(data); err != nil {
		return nil, fmt.Errorf("load container %s: %w", path, err)
	}
	return e, nil
}

// Objects returns the container's objects in file order.
func (e *Environment) Objects() []*Object {
	return e.objects
}

// AddRaw appends an opaque object. Used when building containers.
func (e *Environment) AddRaw(name string, payload []byte) *Object {
	obj := &Object{name: name, kind: KindRaw, raw: append([]byte(nil), payload...)}
	e.objects = append(e.objects, obj)
	return obj
}

// AddTexture appends a texture object holding img. Used when building
// containers.
func (e *Environment) AddTexture(name string, img *image.RGBA) (*Object, error) {
	tex := &Texture{name: name, env: e}
	tex.SetImage(img)
	if err := tex.Save(); err != nil {
		return nil, err
	}
	obj := &Object{name: name, kind: KindTexture, tex: tex}
	e.objects = append(e.objects, obj)
	return obj, nil
}

// Object is one named entry in a container.
type Object struct {
	name string
	kind Kind
	tex  *Texture
	raw  []byte
}

// Name returns the object's name.
func (o *Object) Name() string {
	return o.name
}

// Kind returns the object's type.
func (o *Object) Kind() Kind {
	return o.kind
}

// AsTexture returns the object's texture data when the object is a texture.
func (o *Object) AsTexture() (*Texture, bool) {
	if o.kind != KindTexture || o.tex == nil {
		return nil, false
	}
	return o.tex, true
}

// Texture is a named bitmap inside a container.
type Texture struct {
	name    string
	env     *Environment
	width   int
	height  int
	dgst    digest.Digest
	payload []byte // compressed pixels
	rawSize int

	pending *image.RGBA // set by SetImage, committed by Save
}

// Name returns the texture's name.
func (t *Texture) Name() string {
	return t.name
}

// Bounds returns the texture dimensions.
func (t *Texture) Bounds() image.Rectangle {
	return image.Rect(0, 0, t.width, t.height)
}

// Image decodes the texture's payload into a fresh RGBA bitmap. The payload
// digest is verified; a mismatch means the container is corrupt.
func (t *Texture) Image() (*image.RGBA, error) {
	if t.payload == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoImage, t.name)
	}
	raw, err := t.env.compressor.Decompress(t.payload, t.rawSize)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", t.name, err)
	}
	if digest.FromBytes(raw) != t.dgst {
		return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, t.name)
	}
	if len(raw) != t.width*t.height*4 {
		return nil, fmt.Errorf("%w: %s: payload is %d bytes for %dx%d",
			ErrNoImage, t.name, len(raw), t.width, t.height)
	}
	return &image.RGBA{
		Pix:    raw,
		Stride: t.width * 4,
		Rect:   image.Rect(0, 0, t.width, t.height),
	}, nil
}

// SetImage stages a replacement bitmap. The container is not modified until
// Save commits it.
func (t *Texture) SetImage(img *image.RGBA) {
	t.pending = img
}

// Save commits the staged bitmap into the texture's serialized payload.
// On failure the staged bitmap is discarded and the texture keeps its
// previous payload, so the container remains serializable.
func (t *Texture) Save() error {
	if t.pending == nil {
		return nil
	}
	raw := flattenRGBA(t.pending)
	compressed, err := t.env.compressor.Compress(raw)
	if err != nil {
		t.pending = nil
		return fmt.Errorf("compress %s: %w", t.name, err)
	}
	t.width = t.pending.Bounds().Dx()
	t.height = t.pending.Bounds().Dy()
	t.dgst = digest.FromBytes(raw)
	t.rawSize = len(raw)
	t.payload = compressed
	t.pending = nil
	return nil
}

// flattenRGBA returns img's pixels as a tightly packed buffer with origin
// bounds, copying when the source has offset bounds or row padding.
func flattenRGBA(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if b.Min == (image.Point{}) && img.Stride == w*4 && len(img.Pix) == w*h*4 {
		return append([]byte(nil), img.Pix...)
	}
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*w*4:(y+1)*w*4], img.Pix[src:src+w*4])
	}
	return out
}
