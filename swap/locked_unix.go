//go:build unix

package swap

import (
	"os"
	"syscall"
)

// isLocked reports whether another process holds path. Opening for
// read+write catches permission-level denial; a non-blocking flock catches
// advisory locks held by a running game client.
func isLocked(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return !os.IsNotExist(err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return true
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false
}
