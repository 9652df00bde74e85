package retropix

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// debugExport is one transformed texture queued for the debug side channel.
type debugExport struct {
	entry PixelateEntry
	img   *image.RGBA
}

// exportDebug writes transformed textures as standalone PNG files under
// debugDir, mirroring the container-relative layout. The exports are
// independent files, so they are written concurrently; failures are logged
// and never affect the edit itself.
func (p *Pipeline) exportDebug(ctx context.Context, debugDir string, exports []debugExport) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, ex := range exports {
		ex := ex
		g.Go(func() error {
			path := filepath.Join(debugDir, filepath.FromSlash(ex.entry.Dir), ex.entry.File)
			if err := writePNG(path, ex.img); err != nil {
				p.log().Warn("debug export failed", "file", path, "error", err)
				return nil
			}
			p.log().Debug("exported debug image", "file", path)
			return nil
		})
	}
	_ = g.Wait()
}

func writePNG(path string, img *image.RGBA) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
