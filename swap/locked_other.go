//go:build !unix

package swap

import "os"

// isLocked reports whether another process holds path. On platforms with
// mandatory file locking (Windows), an open-for-write denial is the signal.
func isLocked(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return !os.IsNotExist(err)
	}
	f.Close()
	return false
}
