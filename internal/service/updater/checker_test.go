package updater

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/docker-image-updater/internal/domain/image"
	"github.com/oshokin/docker-image-updater/internal/logger"
)

// TestChecker_Check covers the before/after comparison.
func TestChecker_Check(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		before  image.ID
		after   image.ID
		changed bool
	}{
		"identical IDs": {
			before:  "sha256:aaa",
			after:   "sha256:aaa",
			changed: false,
		},
		"new content": {
			before:  "sha256:aaa",
			after:   "sha256:bbb",
			changed: true,
		},
		"absent before pull": {
			before:  image.NoID,
			after:   "sha256:bbb",
			changed: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rt := newFakeRuntime()
			if !tc.before.IsZero() {
				rt.before["nginx:latest"] = tc.before
			}

			rt.after["nginx:latest"] = tc.after

			changed, err := NewChecker(rt).Check(context.Background(), "nginx:latest")
			require.NoError(t, err)
			require.Equal(t, tc.changed, changed)
			require.Equal(t, []string{"nginx:latest"}, rt.pulls)
			require.Len(t, rt.inspects, 2)
			require.Equal(t, 1, rt.closed)
		})
	}
}

// TestChecker_Failures verifies that every failing step fails the check.
func TestChecker_Failures(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tcs := map[string]struct {
		setup      func(rt *fakeRuntime)
		wantPulled bool
	}{
		"inspect fails": {
			setup: func(rt *fakeRuntime) {
				rt.inspectErr["app"] = errBoom
			},
		},
		"pull fails": {
			setup: func(rt *fakeRuntime) {
				rt.pullErr["app"] = errBoom
			},
		},
		"stream reports an error": {
			setup: func(rt *fakeRuntime) {
				rt.events = []image.PullEvent{{Status: "Pulling fs layer", Layer: "l1"}}
				rt.streamErr = errBoom
			},
			wantPulled: true,
		},
		"image still missing after pull": {
			setup:      func(*fakeRuntime) {},
			wantPulled: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rt := newFakeRuntime()
			tc.setup(rt)

			changed, err := NewChecker(rt).Check(context.Background(), "app")
			require.Error(t, err)
			require.False(t, changed)

			if tc.wantPulled {
				require.Equal(t, 1, rt.closed, "stream must be closed")
			}
		})
	}
}

// TestChecker_Progress prints one dot per event and a final newline.
func TestChecker_Progress(t *testing.T) {
	t.Parallel()

	rt := newFakeRuntime()
	rt.after["redis"] = "sha256:new"
	rt.events = []image.PullEvent{
		{Status: "Pulling fs layer", Layer: "l1"},
		{Status: "Downloading", Layer: "l1", Current: 10, Total: 1000},
		{Status: "Pull complete", Layer: "l1"},
	}

	var progress bytes.Buffer

	changed, err := NewChecker(rt, WithProgress(&progress)).Check(context.Background(), "redis")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "...\n", progress.String())
}

// TestChecker_LogsDownloadedSize sums the largest total seen per layer.
func TestChecker_LogsDownloadedSize(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())

	rt := newFakeRuntime()
	rt.before["redis"] = "sha256:old"
	rt.after["redis"] = "sha256:old"
	rt.events = []image.PullEvent{
		{Status: "Downloading", Layer: "l1", Current: 10, Total: 1000},
		{Status: "Downloading", Layer: "l1", Current: 900, Total: 1000},
		{Status: "Downloading", Layer: "l2", Current: 500, Total: 1000},
		{Status: "Verifying Checksum", Layer: "l2"},
	}

	changed, err := NewChecker(rt).Check(ctx, "redis")
	require.NoError(t, err)
	require.False(t, changed)

	entries := logs.FilterMessage("Pull finished").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	require.Equal(t, "2.0 kB", fields["downloaded"])
	require.EqualValues(t, 2, fields["layers"])
	require.EqualValues(t, 4, fields["events"])

	require.Equal(t, 1, logs.FilterMessage("Image checked").Len())
}

// TestChecker_PullTimeout aborts a pull that never finishes.
func TestChecker_PullTimeout(t *testing.T) {
	t.Parallel()

	rt := newFakeRuntime()
	rt.block = true

	started := time.Now()

	_, err := NewChecker(rt, WithPullTimeout(20*time.Millisecond)).Check(context.Background(), "slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), 2*time.Second)
	require.Equal(t, 1, rt.closed)
}
