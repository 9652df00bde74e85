package retropix

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastelan/retropix/bundle"
	"github.com/kastelan/retropix/internal/testutil"
	"github.com/kastelan/retropix/pixel"
	"github.com/kastelan/retropix/swap"
)

// loadTexture loads the named texture from a container file.
func loadTexture(t *testing.T, containerPath, name string) *bundle.Texture {
	t.Helper()
	env, err := bundle.Load(containerPath)
	require.NoError(t, err)
	for _, obj := range env.Objects() {
		if tex, ok := obj.AsTexture(); ok && tex.Name() == name {
			return tex
		}
	}
	t.Fatalf("texture %q not found in %s", name, containerPath)
	return nil
}

func TestProcessEditionEndToEnd(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t)
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	tree := testutil.GradientRGBA(64, 64)
	rock := testutil.GradientRGBA(32, 32)
	testutil.WriteContainer(t, filepath.Join(assets, "sharedassets0.assets"),
		map[string]*image.RGBA{"tree_large": tree, "rock": rock})

	edition.PixelateFiles = []string{
		"sharedassets0.assets/tree_large.png",
		"sharedassets0.assets/rock.png",
	}

	p := newTestPipeline(t)
	replacements, err := p.ProcessEdition(context.Background(), edition, 0, false)
	require.NoError(t, err)
	require.Len(t, replacements, 1)

	rep := replacements[0]
	assert.Equal(t, filepath.Join(assets, "sharedassets0.assets"), rep.Original)
	assert.Equal(t, rep.Original+".tmp", rep.Temp)

	info, err := os.Stat(rep.Temp)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	// The temp container holds the compositor's output for each request.
	comp, err := pixel.NewCompositor(0.5)
	require.NoError(t, err)
	want, err := comp.Process(tree, "", "tree_large", false)
	require.NoError(t, err)

	tex := loadTexture(t, rep.Temp, "tree_large")
	got, err := tex.Image()
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)
}

func TestProcessEditionThenReplaceAll(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t)
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	containerPath := filepath.Join(assets, "sharedassets0.assets")
	pristine := testutil.WriteContainer(t, containerPath,
		map[string]*image.RGBA{"tree_large": testutil.GradientRGBA(48, 48)})

	edition.PixelateFiles = []string{"sharedassets0.assets/tree_large.png"}

	p := newTestPipeline(t)
	ctx := context.Background()
	replacements, err := p.ProcessEdition(ctx, edition, 0, false)
	require.NoError(t, err)
	require.Len(t, replacements, 1)

	replaced, failed := p.ReplaceAll(ctx, replacements)
	assert.Equal(t, 1, replaced)
	assert.Empty(t, failed)

	// Original now holds the edit, the temp is gone, and exactly one
	// backup holds the pristine content.
	_, err = os.Stat(containerPath + ".tmp")
	assert.True(t, os.IsNotExist(err))

	backup, err := os.ReadFile(containerPath + ".backup001")
	require.NoError(t, err)
	assert.Equal(t, pristine, backup)

	edited, err := os.ReadFile(containerPath)
	require.NoError(t, err)
	assert.NotEqual(t, pristine, edited)
}

func TestRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t)
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	containerPath := filepath.Join(assets, "sharedassets0.assets")
	testutil.WriteContainer(t, containerPath,
		map[string]*image.RGBA{"tree_large": testutil.GradientRGBA(40, 40)})

	edition.PixelateFiles = []string{"sharedassets0.assets/tree_large.png"}

	p := newTestPipeline(t)
	ctx := context.Background()

	runOnce := func() []byte {
		replacements, err := p.ProcessEdition(ctx, edition, 0, false)
		require.NoError(t, err)
		require.Len(t, replacements, 1)
		replaced, failed := p.ReplaceAll(ctx, replacements)
		require.Equal(t, 1, replaced)
		require.Empty(t, failed)
		data, err := os.ReadFile(containerPath)
		require.NoError(t, err)
		return data
	}

	first := runOnce()
	second := runOnce()

	// The second run restores the backup before editing, so it pixelates
	// the original asset again instead of compounding onto the first
	// run's output.
	assert.Equal(t, first, second)
}

func TestProcessEditionSkipsUnreadableContainer(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t)
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	require.NoError(t, os.WriteFile(filepath.Join(assets, "broken.assets"), []byte("garbage"), 0o644))
	testutil.WriteContainer(t, filepath.Join(assets, "good.assets"),
		map[string]*image.RGBA{"tree": testutil.GradientRGBA(16, 16)})

	edition.PixelateFiles = []string{
		"broken.assets/tree.png",
		"good.assets/tree.png",
	}

	p := newTestPipeline(t)
	replacements, err := p.ProcessEdition(context.Background(), edition, 0, false)
	require.NoError(t, err)

	// The broken container is skipped; the good one is still prepared.
	require.Len(t, replacements, 1)
	assert.Equal(t, filepath.Join(assets, "good.assets"), replacements[0].Original)
}

func TestProcessEditionUnmatchedTextureIsIsolated(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t)
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	containerPath := filepath.Join(assets, "sharedassets0.assets")
	testutil.WriteContainer(t, containerPath,
		map[string]*image.RGBA{"tree": testutil.GradientRGBA(16, 16)})

	edition.PixelateFiles = []string{
		"sharedassets0.assets/tree.png",
		"sharedassets0.assets/no_such_texture.png",
	}

	p := newTestPipeline(t)
	replacements, err := p.ProcessEdition(context.Background(), edition, 0, false)
	require.NoError(t, err)

	// The unmatched entry does not abort the container; the matched one
	// is still edited and the container still serializes.
	require.Len(t, replacements, 1)
}

// sizeFailCompressor stores payloads uncompressed but rejects payloads of
// exactly failSize bytes.
type sizeFailCompressor struct{ failSize int }

func (c sizeFailCompressor) Compress(src []byte) ([]byte, error) {
	if len(src) == c.failSize {
		return nil, errors.New("encoder rejected payload")
	}
	return append([]byte(nil), src...), nil
}

func (c sizeFailCompressor) Decompress(src []byte, _ int) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

func TestProcessEditionIsolatesFailedTextureSave(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t)
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	containerPath := filepath.Join(assets, "sharedassets0.assets")

	good := testutil.GradientRGBA(16, 16)
	bad := testutil.GradientRGBA(8, 8)
	build := bundle.New(bundle.WithCompressor(sizeFailCompressor{}))
	_, err := build.AddTexture("good", good)
	require.NoError(t, err)
	_, err = build.AddTexture("bad", bad)
	require.NoError(t, err)
	data, err := build.Serialize()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(containerPath, data, 0o644))

	edition.PixelateFiles = []string{
		"sharedassets0.assets/good.png",
		"sharedassets0.assets/bad.png",
	}

	// The 8x8 texture's edit cannot be committed; it must be skipped
	// without taking the rest of the container down with it.
	p := newTestPipeline(t,
		WithBundleOptions(bundle.WithCompressor(sizeFailCompressor{failSize: 8 * 8 * 4})))
	replacements, err := p.ProcessEdition(context.Background(), edition, 0, false)
	require.NoError(t, err)
	require.Len(t, replacements, 1)

	loaded, err := bundle.Load(replacements[0].Temp, bundle.WithCompressor(sizeFailCompressor{}))
	require.NoError(t, err)
	for _, obj := range loaded.Objects() {
		tex, ok := obj.AsTexture()
		require.True(t, ok)
		img, err := tex.Image()
		require.NoError(t, err)
		switch tex.Name() {
		case "good":
			assert.NotEqual(t, good.Pix, img.Pix, "good texture should carry its edit")
		case "bad":
			assert.Equal(t, bad.Pix, img.Pix, "bad texture should keep its original pixels")
		}
	}
}

func TestNewKeepsSwapLogger(t *testing.T) {
	t.Parallel()

	var swapLog, pipeLog bytes.Buffer
	p := newTestPipeline(t,
		WithLogger(slog.New(slog.NewTextHandler(&pipeLog, nil))),
		WithSwapOptions(swap.Options{Logger: slog.New(slog.NewTextHandler(&swapLog, nil))}),
	)

	dir := t.TempDir()
	original := filepath.Join(dir, "shared.assets")
	require.NoError(t, os.WriteFile(original, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(original+".tmp", []byte("new"), 0o644))
	require.NoError(t, p.Manager().Replace(context.Background(), original, original+".tmp"))

	assert.Contains(t, swapLog.String(), "replaced file")
	assert.NotContains(t, pipeLog.String(), "replaced file")
}

func TestProcessEditionValidatesResize(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t, "sharedassets0.assets")
	edition.PixelateFiles = []string{"sharedassets0.assets/tree.png"}

	p := newTestPipeline(t)
	for _, resize := range []float64{-1, 1.5} {
		_, err := p.ProcessEdition(context.Background(), edition, resize, false)
		assert.ErrorIs(t, err, ErrResizeAmount, "resize %g", resize)
	}

	// Nothing on disk changed: no temp files appeared.
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	_, err := os.Stat(filepath.Join(assets, "sharedassets0.assets.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessEditionEmitsProgress(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t)
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	testutil.WriteContainer(t, filepath.Join(assets, "sharedassets0.assets"),
		map[string]*image.RGBA{"tree": testutil.GradientRGBA(16, 16)})
	edition.PixelateFiles = []string{"sharedassets0.assets/tree.png"}

	var events []ProgressEvent
	p := newTestPipeline(t, WithProgress(func(ev ProgressEvent) {
		events = append(events, ev)
	}))

	_, err := p.ProcessEdition(context.Background(), edition, 0, false)
	require.NoError(t, err)

	stages := make(map[ProgressStage]bool)
	for _, ev := range events {
		stages[ev.Stage] = true
	}
	assert.True(t, stages[StageLoading])
	assert.True(t, stages[StagePixelating])
	assert.True(t, stages[StageSerializing])
}

func TestProcessEditionDebugExport(t *testing.T) {
	t.Parallel()

	edition := editionFixture(t)
	assets := filepath.Join(edition.TargetFolder, "Game_Data")
	testutil.WriteContainer(t, filepath.Join(assets, "sharedassets0.assets"),
		map[string]*image.RGBA{"tree": testutil.GradientRGBA(16, 16)})
	edition.PixelateFiles = []string{"sharedassets0.assets/tree.png"}

	debugDir := t.TempDir()
	p := newTestPipeline(t, WithDebugDir(debugDir))

	_, err := p.ProcessEdition(context.Background(), edition, 0, false)
	require.NoError(t, err)

	exported := filepath.Join(debugDir, "sharedassets0.assets", "tree.png")
	info, err := os.Stat(exported)
	require.NoError(t, err, "debug export missing")
	assert.Positive(t, info.Size())
}
