package retropix

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// GroupEntries validates the edition's folders and groups its requested
// files by the container each one resolves to.
//
// A request "dir/file.png" resolves to the container file
// TargetFolder/AssetsFolder/dir. Requests whose container does not exist are
// dropped with a warning; a missing container for one request must not block
// the others.
func (p *Pipeline) GroupEntries(edition Edition) (*ContainerGroup, error) {
	if err := validateEdition(edition); err != nil {
		return nil, err
	}

	group := &ContainerGroup{}
	for _, request := range edition.PixelateFiles {
		request = filepath.ToSlash(request)
		containerPath := filepath.Join(
			edition.TargetFolder,
			filepath.FromSlash(edition.AssetsFolder),
			filepath.FromSlash(path.Dir(request)),
		)
		if _, err := os.Stat(containerPath); err != nil {
			p.log().Warn("container missing, skipping request",
				"container", containerPath, "request", request)
			continue
		}
		group.add(containerPath, newPixelateEntry(request, edition.MasksFolder))
	}
	return group, nil
}

func validateEdition(edition Edition) error {
	if edition.TargetFolder == "" {
		return ErrNoTargetFolder
	}
	if _, err := os.Stat(edition.TargetFolder); err != nil {
		return fmt.Errorf("%w: %s", ErrNoTargetFolder, edition.TargetFolder)
	}
	assetsPath := filepath.Join(edition.TargetFolder, filepath.FromSlash(edition.AssetsFolder))
	if _, err := os.Stat(assetsPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNoAssetsFolder, assetsPath)
	}
	if edition.MasksFolder != "" {
		if _, err := os.Stat(edition.MasksFolder); err != nil {
			return fmt.Errorf("%w: %s", ErrNoMasksFolder, edition.MasksFolder)
		}
	}
	if len(edition.PixelateFiles) == 0 {
		return ErrNoRequests
	}
	return nil
}
