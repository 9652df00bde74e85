package retropix

import "fmt"

// ProgressEvent represents a progress update during an edition run.
type ProgressEvent struct {
	// Stage identifies the current phase of the run.
	Stage ProgressStage

	// Name is the container or texture currently being processed, if any.
	Name string

	// Done is the number of items completed in the current stage.
	Done int

	// Total is the total number of items for the current stage.
	// Zero indicates the total is unknown.
	Total int
}

// String renders the event as a single log line. When a total is known the
// line carries a "current/total" substring that host UIs may parse for a
// progress bar.
func (e ProgressEvent) String() string {
	if e.Total > 0 {
		return fmt.Sprintf("%s %d/%d: %s", e.Stage, e.Done, e.Total, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Name)
}

// ProgressFunc receives progress updates during an edition run.
type ProgressFunc func(ProgressEvent)

// ProgressStage identifies the current phase of an edition run.
type ProgressStage uint8

const (
	// StageRestoring indicates a stale backup is being restored before editing.
	StageRestoring ProgressStage = iota

	// StageLoading indicates a container file is being loaded.
	StageLoading

	// StagePixelating indicates a texture is being transformed.
	StagePixelating

	// StageSerializing indicates an edited container is being written to its
	// temp file.
	StageSerializing

	// StageReplacing indicates originals are being swapped with temp files.
	StageReplacing
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageRestoring:
		return "restoring backup"
	case StageLoading:
		return "loading container"
	case StagePixelating:
		return "pixelating texture"
	case StageSerializing:
		return "serializing container"
	case StageReplacing:
		return "replacing file"
	default:
		return "unknown"
	}
}
