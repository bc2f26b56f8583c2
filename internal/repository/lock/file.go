package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/docker-image-updater/internal/config"
	"github.com/oshokin/docker-image-updater/internal/logger"
)

const (
	// DefaultPath is the conventional marker location shown by the CLI help.
	DefaultPath = "/var/run/docker-image-updater.pid"

	// markerLifetime is how long an unreadable marker is assumed to be in the middle of being written.
	markerLifetime = 30 * time.Second

	// acquireAttempts bounds the create and reclaim loop.
	acquireAttempts = 3
)

var (
	// ErrLocked is returned when another live process holds the lock.
	ErrLocked = errors.New("another update run is in progress")
	// ErrNotHeld is returned by Release when the lock was never acquired.
	ErrNotHeld = errors.New("lock is not held")
)

// FileLock is a PID marker file.
type FileLock struct {
	// path is the filesystem location of the marker.
	path string
	// pid is written into the marker, os.Getpid() by default.
	pid int
	// alive reports whether a PID belongs to a running updater.
	alive func(pid int) (bool, error)
	// held tracks whether this instance owns the marker.
	held bool
	// mu protects held.
	mu sync.Mutex
}

// NewFileLock creates a lock backed by the marker at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path:  filepath.Clean(path),
		pid:   os.Getpid(),
		alive: isUpdaterProcess,
	}
}

// Path returns the marker location.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire creates the marker. A marker left by a process that is no longer
// running is removed and the creation retried.
func (l *FileLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil
	}

	for range acquireAttempts {
		created, err := l.create()
		if err != nil {
			return err
		}

		if created {
			l.held = true

			logger.DebugKV(ctx, "Run lock acquired", "path", l.path, "pid", l.pid)

			return nil
		}

		stale, holder, err := l.isStale()
		if err != nil {
			return err
		}

		if !stale {
			return fmt.Errorf("%w: pid %d holds %s", ErrLocked, holder, l.path)
		}

		logger.InfoKV(ctx, "Removing stale run lock", "path", l.path, "pid", holder)

		if err = os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock file: %w", err)
		}
	}

	return fmt.Errorf("%w: unable to create %s", ErrLocked, l.path)
}

// Release removes the marker if it still carries our PID.
func (l *FileLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return ErrNotHeld
	}

	l.held = false

	holder, err := readPID(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	if holder != l.pid {
		logger.WarnKV(ctx, "Run lock was taken over by another process", "path", l.path, "pid", holder)
		return nil
	}

	if err = os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}

	logger.DebugKV(ctx, "Run lock released", "path", l.path)

	return nil
}

// create writes the marker exclusively. It returns false if the marker exists.
func (l *FileLock) create() (bool, error) {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}

		return false, fmt.Errorf("create lock file: %w", err)
	}

	_, writeErr := file.WriteString(strconv.Itoa(l.pid) + "\n")
	closeErr := file.Close()

	if err = errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(l.path)
		return false, fmt.Errorf("write lock file: %w", err)
	}

	return true, nil
}

// isStale inspects an existing marker and reports whether it may be reclaimed.
func (l *FileLock) isStale() (bool, int, error) {
	holder, err := readPID(l.path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return true, 0, nil
	case err != nil:
		// A marker that was just created may not carry a PID yet.
		info, statErr := os.Stat(l.path)
		if statErr != nil {
			return true, 0, nil //nolint:nilerr // The marker vanished in between.
		}

		return time.Since(info.ModTime()) > markerLifetime, 0, nil
	}

	alive, err := l.alive(holder)
	if err != nil {
		return false, holder, fmt.Errorf("check lock holder %d: %w", holder, err)
	}

	return !alive, holder, nil
}

// readPID parses the PID stored in the marker.
func readPID(path string) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse lock file %s: %w", path, err)
	}

	return pid, nil
}

// isUpdaterProcess reports whether pid is running an executable with our name.
// A PID reused by an unrelated program does not hold the lock.
func isUpdaterProcess(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	if process == nil {
		return false, nil
	}

	self, err := ps.FindProcess(os.Getpid())
	if err != nil || self == nil {
		return true, nil //nolint:nilerr // Without our own name any live process counts.
	}

	return process.Executable() == self.Executable(), nil
}
