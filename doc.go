// Package retropix selectively pixelates named textures inside game asset
// containers while preserving alpha transparency, honoring optional authored
// masks, and optionally hardening semi-transparent shadows into flat black.
//
// This package provides the high-level API through [Pipeline] for running a
// full edition: grouping requests, transforming textures, and handing the
// results to the [swap] subpackage for safe replacement. For low-level image
// operations without a pipeline, use the [pixel] subpackage.
//
// A run is driven by an [Edition]: a target game folder, a list of requested
// texture files, a mask folder, and a pixelation strength. Every touched
// container is serialized to a sibling .tmp file and verified before the
// original is backed up and replaced, so an interrupted run never leaves an
// original missing or half-written.
//
// # Quick Start
//
// Process an edition from a config file and swap the results into place:
//
//	cfg, err := retropix.LoadConfig("editions.json")
//	if err != nil {
//	    return err
//	}
//	edition, err := cfg.Edition("standard")
//	if err != nil {
//	    return err
//	}
//	p, err := retropix.New(
//	    retropix.WithProgress(func(ev retropix.ProgressEvent) {
//	        fmt.Println(ev)
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	replacements, err := p.ProcessEdition(ctx, edition, 0, false)
//	if err != nil {
//	    return err
//	}
//	replaced, failed := p.ReplaceAll(ctx, replacements)
//
// # Backups
//
// Each replacement renames the original to the next free numbered backup
// (file.assets.backup001, .backup002, ...) before the edited file takes its
// place. Re-running an edition restores the latest backup first, so repeated
// runs edit the pristine asset rather than compounding onto a previous edit.
package retropix
