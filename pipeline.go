package retropix

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/opencontainers/go-digest"

	"github.com/kastelan/retropix/bundle"
	"github.com/kastelan/retropix/pixel"
	"github.com/kastelan/retropix/swap"
)

// Pipeline runs edition-level pixelation: grouping, container editing, and
// replacement of originals with edited temp files.
//
// A Pipeline is safe to reuse across runs, but containers and textures
// within one run are processed strictly sequentially: each container load
// is a heavyweight stateful resource with no intra-run parallelism.
type Pipeline struct {
	logger          *slog.Logger
	progress        ProgressFunc
	shadowThreshold uint8
	swapOpts        swap.Options
	debugDir        string
	bundleOpts      []bundle.Option
	manager         *swap.Manager
}

func (p *Pipeline) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.logger
}

func (p *Pipeline) emit(ev ProgressEvent) {
	if p.progress != nil {
		p.progress(ev)
	}
}

// Manager returns the replacement manager used by ReplaceAll, for callers
// that drive replacements or restores themselves.
func (p *Pipeline) Manager() *swap.Manager {
	return p.manager
}

// ProcessEdition edits every requested texture of the edition and returns
// the (original, temp) pairs awaiting replacement.
//
// resizeAmount overrides the edition's configured strength when non-zero and
// must be in (0, 1]. Configuration-level problems (missing folders, empty
// request list, bad strength) return an error before anything on disk is
// touched. Below that level, failures are isolated: a container that fails
// to load or serialize is skipped, a texture that fails to decode or
// transform is skipped, and the run continues. Partial success is the
// normal outcome, not an error state.
func (p *Pipeline) ProcessEdition(ctx context.Context, edition Edition, resizeAmount float64, blackShadows bool) ([]Replacement, error) {
	if resizeAmount == 0 {
		resizeAmount = edition.ResizeAmount
	}
	if resizeAmount <= 0 || resizeAmount > 1 {
		return nil, fmt.Errorf("%w: got %g", ErrResizeAmount, resizeAmount)
	}

	group, err := p.GroupEntries(edition)
	if err != nil {
		return nil, err
	}

	comp, err := pixel.NewCompositor(resizeAmount,
		pixel.WithShadowThreshold(p.shadowThreshold),
		pixel.WithLogger(p.logger),
	)
	if err != nil {
		return nil, err
	}

	debugDir := p.debugDir
	if debugDir == "" {
		debugDir = edition.DebugFolder
	}

	total := group.TotalEntries()
	p.log().Info("starting edition run",
		"edition", edition.Name,
		"containers", group.Len(),
		"textures", total,
		"resize_amount", resizeAmount,
		"black_shadows", blackShadows,
	)

	run := &editionRun{
		pipeline:     p,
		edition:      edition,
		compositor:   comp,
		blackShadows: blackShadows,
		debugDir:     debugDir,
		total:        total,
	}

	var replacements []Replacement
	for i, containerPath := range group.Paths() {
		if err := ctx.Err(); err != nil {
			return replacements, err
		}
		p.emit(ProgressEvent{Stage: StageLoading, Name: containerPath, Done: i + 1, Total: group.Len()})

		processed, temp := run.processContainer(ctx, containerPath, group.Entries(containerPath))
		run.processed += processed
		if temp != "" {
			replacements = append(replacements, Replacement{Original: containerPath, Temp: temp})
		}
	}

	p.log().Info("edition run finished",
		"edition", edition.Name,
		"processed_textures", fmt.Sprintf("%d/%d", run.processed, total),
		"prepared_files", fmt.Sprintf("%d/%d", len(replacements), group.Len()),
	)
	return replacements, nil
}

// editionRun carries per-run state across containers.
type editionRun struct {
	pipeline     *Pipeline
	edition      Edition
	compositor   *pixel.Compositor
	blackShadows bool
	debugDir     string
	total        int
	processed    int
}

// processContainer edits one container file and serializes it to a sibling
// .tmp file. It returns the number of textures processed and the temp path,
// or an empty path when the container was skipped.
func (r *editionRun) processContainer(ctx context.Context, containerPath string, entries []PixelateEntry) (int, string) {
	p := r.pipeline
	log := p.log().With("container", containerPath)

	// Always re-derive from the last known pristine snapshot so repeated
	// runs never pixelate an already-pixelated file.
	restored, err := p.manager.RestoreLatest(containerPath)
	switch {
	case err == nil:
		p.emit(ProgressEvent{Stage: StageRestoring, Name: restored})
	case !errors.Is(err, swap.ErrNoBackup):
		log.Warn("could not restore backup, editing current file", "error", err)
	}

	env, err := bundle.Load(containerPath, p.bundleOpts...)
	if err != nil {
		log.Warn("skipping container", "error", err)
		return 0, ""
	}

	processed := 0
	var exports []debugExport
	remaining := append([]PixelateEntry(nil), entries...)

	for _, obj := range env.Objects() {
		tex, ok := obj.AsTexture()
		if !ok {
			continue
		}
		for i, entry := range remaining {
			if entry.Name != tex.Name() {
				continue
			}
			// First match wins for each entry.
			remaining = append(remaining[:i:i], remaining[i+1:]...)

			if img, perr := r.processTexture(tex, entry); perr != nil {
				log.Warn("skipping texture", "texture", entry.Name, "error", perr)
			} else {
				processed++
				p.emit(ProgressEvent{
					Stage: StagePixelating,
					Name:  entry.Name,
					Done:  r.processed + processed,
					Total: r.total,
				})
				if r.debugDir != "" {
					exports = append(exports, debugExport{entry: entry, img: img})
				}
			}
			break
		}
	}

	if processed == 0 {
		log.Info("no matching textures in container")
	} else {
		log.Info("modified textures", "count", processed)
	}

	if len(exports) > 0 {
		p.exportDebug(ctx, r.debugDir, exports)
	}

	p.emit(ProgressEvent{Stage: StageSerializing, Name: containerPath})
	temp, err := p.writeTemp(env, containerPath)
	if err != nil {
		log.Warn("could not write temp file, container left untouched", "error", err)
		return processed, ""
	}
	return processed, temp
}

// processTexture transforms a single matched texture in place and returns
// the transformed bitmap for the debug side channel.
func (r *editionRun) processTexture(tex *bundle.Texture, entry PixelateEntry) (*image.RGBA, error) {
	img, err := tex.Image()
	if err != nil {
		return nil, err
	}

	shadows := r.blackShadows && !r.edition.ShadowsIgnored(entry)
	out, err := r.compositor.Process(img, entry.MaskPath, entry.Name, shadows)
	if err != nil {
		return nil, err
	}

	tex.SetImage(out)
	if err := tex.Save(); err != nil {
		return nil, err
	}
	return out, nil
}

// writeTemp serializes env to containerPath+".tmp" and verifies the write:
// the file must exist, be non-empty, and digest-match the serialized bytes.
func (p *Pipeline) writeTemp(env *bundle.Environment, containerPath string) (string, error) {
	data, err := env.Serialize()
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("serialized container is empty")
	}

	temp := containerPath + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return "", err
	}

	written, err := os.ReadFile(temp)
	if err != nil {
		return "", err
	}
	want := digest.FromBytes(data)
	if digest.FromBytes(written) != want {
		_ = os.Remove(temp)
		return "", fmt.Errorf("temp file %s does not match serialized content", temp)
	}

	p.log().Info("prepared temp file", "file", temp, "bytes", len(data), "digest", want)
	return temp, nil
}

// ReplaceAll swaps every prepared temp file into place via the replacement
// manager. It returns the number of successful replacements and the pairs
// that failed, so callers can retry or alert the user; it never aborts the
// batch on a single failure.
func (p *Pipeline) ReplaceAll(ctx context.Context, replacements []Replacement) (int, []Replacement) {
	var failed []Replacement
	for i, rep := range replacements {
		p.emit(ProgressEvent{Stage: StageReplacing, Name: rep.Original, Done: i + 1, Total: len(replacements)})
		if err := p.manager.Replace(ctx, rep.Original, rep.Temp); err != nil {
			p.log().Warn("replacement failed", "file", rep.Original, "error", err)
			failed = append(failed, rep)
		}
	}
	p.log().Info("replacement finished",
		"replaced", fmt.Sprintf("%d/%d", len(replacements)-len(failed), len(replacements)))
	return len(replacements) - len(failed), failed
}
