package lock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestLock returns a lock in a temp dir with a controllable liveness check.
func newTestLock(t *testing.T, live map[int]bool) *FileLock {
	t.Helper()

	l := NewFileLock(filepath.Join(t.TempDir(), "updater.pid"))
	l.alive = func(pid int) (bool, error) {
		return live[pid], nil
	}

	return l
}

// TestFileLock_AcquireRelease writes our PID and removes the marker on release.
func TestFileLock_AcquireRelease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLock(t, nil)

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx), "re-acquiring a held lock is a no-op")

	pid, err := readPID(l.Path())
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)

	require.NoError(t, l.Release(ctx))
	require.NoFileExists(t, l.Path())
	require.ErrorIs(t, l.Release(ctx), ErrNotHeld)
}

// TestFileLock_HeldByLiveProcess refuses to start while the holder runs.
func TestFileLock_HeldByLiveProcess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first := newTestLock(t, nil)
	require.NoError(t, first.Acquire(ctx))

	second := NewFileLock(first.Path())
	second.pid = first.pid + 1
	second.alive = func(pid int) (bool, error) {
		return pid == first.pid, nil
	}

	err := second.Acquire(ctx)
	require.ErrorIs(t, err, ErrLocked)
	require.Contains(t, err.Error(), strconv.Itoa(first.pid))

	require.NoError(t, first.Release(ctx))
	require.NoError(t, second.Acquire(ctx))
	require.NoError(t, second.Release(ctx))
}

// TestFileLock_StaleMarker reclaims a marker whose process is gone.
func TestFileLock_StaleMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLock(t, map[int]bool{})

	require.NoError(t, os.WriteFile(l.Path(), []byte("999999\n"), 0o600))
	require.NoError(t, l.Acquire(ctx))

	pid, err := readPID(l.Path())
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)
}

// TestFileLock_UnreadableMarker treats a fresh garbage marker as held and an old one as stale.
func TestFileLock_UnreadableMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLock(t, nil)

	require.NoError(t, os.WriteFile(l.Path(), []byte("garbage"), 0o600))
	require.ErrorIs(t, l.Acquire(ctx), ErrLocked)

	old := time.Now().Add(-2 * markerLifetime)
	require.NoError(t, os.Chtimes(l.Path(), old, old))
	require.NoError(t, l.Acquire(ctx))
}

// TestFileLock_ReleaseAfterTakeover keeps a marker that now belongs to someone else.
func TestFileLock_ReleaseAfterTakeover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLock(t, nil)
	require.NoError(t, l.Acquire(ctx))

	require.NoError(t, os.WriteFile(l.Path(), []byte("424242\n"), 0o600))
	require.NoError(t, l.Release(ctx))
	require.FileExists(t, l.Path())
}

// TestIsUpdaterProcess recognises the current process.
func TestIsUpdaterProcess(t *testing.T) {
	t.Parallel()

	alive, err := isUpdaterProcess(os.Getpid())
	require.NoError(t, err)
	require.True(t, alive)
}
