package retropix

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// Sentinel errors. Configuration errors are raised before anything on disk
// is touched; everything below that level degrades to a logged skip.
var (
	// ErrNoTargetFolder is returned when the edition's target folder is unset
	// or does not exist.
	ErrNoTargetFolder = errors.New("retropix: target folder does not exist")

	// ErrNoAssetsFolder is returned when the assets subfolder does not exist
	// under the target folder.
	ErrNoAssetsFolder = errors.New("retropix: assets folder does not exist")

	// ErrNoMasksFolder is returned when the masks folder does not exist.
	ErrNoMasksFolder = errors.New("retropix: masks folder does not exist")

	// ErrNoRequests is returned when the edition lists no files to pixelate.
	ErrNoRequests = errors.New("retropix: no files to pixelate")

	// ErrResizeAmount is returned when the pixelation strength is outside (0, 1].
	ErrResizeAmount = errors.New("retropix: resize amount must be in (0, 1]")

	// ErrEditionNotFound is returned when a named edition is missing from the
	// configuration file.
	ErrEditionNotFound = errors.New("retropix: edition not found")
)

// PixelateEntry identifies one texture to transform inside a container.
// Entries are constructed once per requested file and immutable afterwards.
type PixelateEntry struct {
	// Dir is the container-relative directory of the request, which doubles
	// as the container file's name under the assets folder.
	Dir string

	// File is the request's base name including extension.
	File string

	// Name is the texture name without extension. It is matched against
	// container object names with a case-sensitive exact compare.
	Name string

	// Ext is the request's extension, including the leading dot.
	Ext string

	// MaskPath is the location of the optional authored mask for this
	// texture. A missing mask file is expected and non-fatal.
	MaskPath string
}

// newPixelateEntry builds an entry from a request path relative to the assets
// folder, e.g. "sharedassets0.assets/tree_large.png".
func newPixelateEntry(request, masksRoot string) PixelateEntry {
	dir := path.Dir(request)
	file := path.Base(request)
	ext := path.Ext(file)
	return PixelateEntry{
		Dir:      dir,
		File:     file,
		Name:     strings.TrimSuffix(file, ext),
		Ext:      ext,
		MaskPath: filepath.Join(masksRoot, filepath.FromSlash(dir), file),
	}
}

// ContainerGroup maps absolute container file paths to the entries that
// target them, preserving first-appearance order of the containers.
type ContainerGroup struct {
	paths   []string
	entries map[string][]PixelateEntry
}

// Paths returns the container paths in grouping order.
func (g *ContainerGroup) Paths() []string {
	return g.paths
}

// Entries returns the entries targeting the given container path.
func (g *ContainerGroup) Entries(containerPath string) []PixelateEntry {
	return g.entries[containerPath]
}

// Len returns the number of grouped containers.
func (g *ContainerGroup) Len() int {
	return len(g.paths)
}

// TotalEntries returns the number of entries across all containers.
func (g *ContainerGroup) TotalEntries() int {
	n := 0
	for _, p := range g.paths {
		n += len(g.entries[p])
	}
	return n
}

func (g *ContainerGroup) add(containerPath string, entry PixelateEntry) {
	if g.entries == nil {
		g.entries = make(map[string][]PixelateEntry)
	}
	if _, ok := g.entries[containerPath]; !ok {
		g.paths = append(g.paths, containerPath)
	}
	g.entries[containerPath] = append(g.entries[containerPath], entry)
}

// Replacement pairs an edited container's original path with the temp file
// holding its new content, awaiting an atomic swap.
type Replacement struct {
	Original string
	Temp     string
}
