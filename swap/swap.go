// Package swap replaces asset files with edited copies using numbered
// backups and atomic renames, so a failed or interrupted replacement never
// leaves an original file missing.
//
// Backups are named <original>.backupNNN with NNN zero-padded from 001. The
// chain is append-only: each replacement takes the first unused number, and
// the highest number present is the most recent pre-edit snapshot.
package swap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrLocked is returned when the target file is still held by another
	// process after the maximum wait.
	ErrLocked = errors.New("swap: file locked")

	// ErrNoBackup is returned when a restore finds no backup for the file.
	ErrNoBackup = errors.New("swap: no backup found")
)

// Defaults for lock polling.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 30 * time.Second
)

// Options configures a Manager.
type Options struct {
	// PollInterval is the delay between lock checks. Zero uses
	// DefaultPollInterval.
	PollInterval time.Duration

	// MaxWait bounds the total time spent waiting for a lock to clear.
	// Zero uses DefaultMaxWait.
	MaxWait time.Duration

	// Logger receives replacement progress. If nil, output is discarded.
	Logger *slog.Logger
}

// Manager performs lock-aware, backup-numbered file replacement.
type Manager struct {
	opts Options

	// rename and locked are swappable in tests to simulate a failure
	// between the backup rename and the temp-file rename, and an
	// externally held file lock.
	rename func(oldpath, newpath string) error
	locked func(path string) bool
}

// NewManager creates a Manager with the given options.
func NewManager(opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	return &Manager{opts: opts, rename: os.Rename, locked: isLocked}
}

func (m *Manager) log() *slog.Logger {
	if m.opts.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m.opts.Logger
}

// Replace swaps original with temp. It waits for any external lock on
// original to clear, moves original to the next unused backup number, and
// renames temp into place. On failure after the backup rename, the backup is
// moved back so original is never left missing.
//
// After a nil return, original holds temp's content, temp is gone, and
// exactly one new backup holds the pre-edit content. After an error,
// original's content is unchanged.
func (m *Manager) Replace(ctx context.Context, original, temp string) error {
	if err := m.waitUnlocked(ctx, original); err != nil {
		return err
	}

	backup := NextBackup(original)
	m.log().Info("creating backup", "file", original, "backup", backup)
	if err := m.rename(original, backup); err != nil {
		return fmt.Errorf("swap: create backup: %w", err)
	}

	if err := m.rename(temp, original); err != nil {
		// Never leave the original missing: if the backup rename went
		// through but the swap did not, put the backup back.
		if _, statErr := os.Stat(original); errors.Is(statErr, fs.ErrNotExist) {
			if restoreErr := os.Rename(backup, original); restoreErr != nil {
				return errors.Join(
					fmt.Errorf("swap: replace %s: %w", original, err),
					fmt.Errorf("swap: restore backup: %w", restoreErr),
				)
			}
			m.log().Warn("replacement failed, original restored from backup", "file", original)
		}
		return fmt.Errorf("swap: replace %s: %w", original, err)
	}

	m.log().Info("replaced file", "file", original)
	return nil
}

// Restore moves a backup back over its original. Any existing original is
// moved aside to a scratch name first and deleted once the backup is in place.
func (m *Manager) Restore(backup, original string) error {
	scratch := original + ".old"
	hadOriginal := false
	if _, err := os.Stat(original); err == nil {
		if err := m.rename(original, scratch); err != nil {
			return fmt.Errorf("swap: move aside %s: %w", original, err)
		}
		hadOriginal = true
	}

	if err := m.rename(backup, original); err != nil {
		if hadOriginal {
			_ = os.Rename(scratch, original)
		}
		return fmt.Errorf("swap: restore %s: %w", backup, err)
	}

	if hadOriginal {
		if err := os.Remove(scratch); err != nil {
			m.log().Warn("could not remove scratch file", "file", scratch, "error", err)
		}
	}
	m.log().Info("restored backup", "file", original, "backup", backup)
	return nil
}

// RestoreLatest replaces path with its highest-numbered backup, deleting the
// current file. It returns the consumed backup path, or ErrNoBackup when the
// chain is empty. Running this before every edit keeps edits anchored to the
// original asset instead of compounding onto a previous run's output.
func (m *Manager) RestoreLatest(path string) (string, error) {
	backup, ok := LatestBackup(path)
	if !ok {
		return "", ErrNoBackup
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("swap: remove %s: %w", path, err)
		}
	}
	if err := os.Rename(backup, path); err != nil {
		return "", fmt.Errorf("swap: restore latest: %w", err)
	}
	m.log().Info("restored latest backup before editing", "file", path, "backup", backup)
	return backup, nil
}

func (m *Manager) waitUnlocked(ctx context.Context, path string) error {
	deadline := time.Now().Add(m.opts.MaxWait)
	for m.locked(path) {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrLocked, path, m.opts.MaxWait)
		}
		m.log().Info("file locked, waiting", "file", path)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.opts.PollInterval):
		}
	}
	return nil
}

// backupSuffix formats backup number n for path.
func backupSuffix(path string, n int) string {
	return fmt.Sprintf("%s.backup%03d", path, n)
}

// statFile is swapped in tests to exercise stat failures.
var statFile = os.Stat

// NextBackup returns the first unused backup path for path, scanning upward
// from 001. A slot that cannot be stat'd (permissions, IO) is treated as
// free rather than scanned past, so the scan always terminates; the caller's
// rename surfaces the real error.
func NextBackup(path string) string {
	for n := 1; ; n++ {
		candidate := backupSuffix(path, n)
		if _, err := statFile(candidate); err != nil {
			return candidate
		}
	}
}

// LatestBackup returns the highest-numbered existing backup for path. The
// scan stops at the first slot that cannot be stat'd, same as NextBackup.
func LatestBackup(path string) (string, bool) {
	latest := ""
	for n := 1; ; n++ {
		candidate := backupSuffix(path, n)
		if _, err := statFile(candidate); err != nil {
			break
		}
		latest = candidate
	}
	return latest, latest != ""
}

// BackupInfo describes one backup file found under a directory tree.
type BackupInfo struct {
	// Path is the backup file's absolute path.
	Path string

	// Original is the path the backup belongs to.
	Original string

	// ModTime is the backup file's modification time.
	ModTime time.Time
}

func isBackupNumber(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// FindBackups walks root recursively and returns every backup file found,
// oldest first within walk order.
func FindBackups(root string) ([]BackupInfo, error) {
	var found []BackupInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		idx := strings.LastIndex(d.Name(), ".backup")
		if idx < 0 || !isBackupNumber(d.Name()[idx+len(".backup"):]) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		found = append(found, BackupInfo{
			Path:     path,
			Original: path[:strings.LastIndex(path, ".backup")],
			ModTime:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("swap: find backups: %w", err)
	}
	return found, nil
}
