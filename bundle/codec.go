package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
)

// Container signature and format version.
var magic = [4]byte{'K', 'X', 'B', '1'}

// Compressor encodes and decodes object payloads. Implementations must be
// deterministic: serializing an unchanged container twice yields identical
// bytes, which the run-to-run idempotence contract relies on.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, originalSize int) ([]byte, error)
}

// defaultCompressor is the stock zstd codec.
var defaultCompressor Compressor = newZstdCompressor()

type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() *zstdCompressor {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	if err != nil {
		panic("bundle: create zstd encoder: " + err.Error())
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("bundle: create zstd decoder: " + err.Error())
	}
	return &zstdCompressor{enc: enc, dec: dec}
}

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, nil), nil
}

func (z *zstdCompressor) Decompress(src []byte, originalSize int) ([]byte, error) {
	if originalSize < 0 {
		originalSize = 0
	}
	return z.dec.DecodeAll(src, make([]byte, 0, originalSize))
}

// Serialize encodes the whole container back to bytes. Objects that were
// never modified round-trip byte-identically.
func (e *Environment) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	writeUint32(&buf, uint32(len(e.objects)))

	for _, obj := range e.objects {
		if err := writeString(&buf, obj.name); err != nil {
			return nil, err
		}
		buf.WriteByte(byte(obj.kind))

		switch obj.kind {
		case KindTexture:
			tex := obj.tex
			if tex.pending != nil {
				// Serializing with uncommitted image edits is a caller bug.
				return nil, fmt.Errorf("bundle: texture %s has unsaved changes", tex.name)
			}
			writeUint32(&buf, uint32(tex.width))
			writeUint32(&buf, uint32(tex.height))
			if err := writeString(&buf, string(tex.dgst)); err != nil {
				return nil, err
			}
			writeUint32(&buf, uint32(tex.rawSize))
			writeUint32(&buf, uint32(len(tex.payload)))
			buf.Write(tex.payload)
		default:
			writeUint32(&buf, uint32(len(obj.raw)))
			buf.Write(obj.raw)
		}
	}
	return buf.Bytes(), nil
}

func (e *Environment) decode(data []byte) error {
	r := &reader{data: data}

	var got [4]byte
	if err := r.read(got[:]); err != nil {
		return ErrBadMagic
	}
	if got != magic {
		return ErrBadMagic
	}
	count, err := r.uint32()
	if err != nil {
		return err
	}

	e.objects = make([]*Object, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.string()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}

		obj := &Object{name: name, kind: Kind(kind)}
		switch obj.kind {
		case KindTexture:
			tex := &Texture{name: name, env: e}
			if tex.width, err = r.dim(); err != nil {
				return err
			}
			if tex.height, err = r.dim(); err != nil {
				return err
			}
			dgst, err := r.string()
			if err != nil {
				return err
			}
			tex.dgst = digest.Digest(dgst)
			if tex.rawSize, err = r.dim(); err != nil {
				return err
			}
			if tex.payload, err = r.bytes(); err != nil {
				return err
			}
			obj.tex = tex
		default:
			if obj.raw, err = r.bytes(); err != nil {
				return err
			}
		}
		e.objects = append(e.objects, obj)
	}
	return nil
}

// reader is a bounds-checked cursor over the serialized container.
type reader struct {
	data []byte
	off  int
}

func (r *reader) read(dst []byte) error {
	if r.off+len(dst) > len(r.data) {
		return ErrTruncated
	}
	copy(dst, r.data[r.off:])
	r.off += len(dst)
	return nil
}

func (r *reader) byte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	var buf [4]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *reader) dim() (int, error) {
	v, err := r.uint32()
	return int(v), err
}

func (r *reader) string() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if r.off+int(n) > len(r.data) {
		return "", ErrTruncated
	}
	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.data) {
		return nil, ErrTruncated
	}
	b := append([]byte(nil), r.data[r.off:r.off+int(n)]...)
	r.off += int(n)
	return b, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 1<<20 {
		return fmt.Errorf("bundle: string too long: %d bytes", len(s))
	}
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
	return nil
}
