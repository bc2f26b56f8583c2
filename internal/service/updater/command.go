package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/docker-image-updater/internal/config"
	"github.com/oshokin/docker-image-updater/internal/domain/watch"
	"github.com/oshokin/docker-image-updater/internal/logger"
	"github.com/oshokin/docker-image-updater/internal/repository/lock"
	"github.com/oshokin/docker-image-updater/internal/service/common"
	"github.com/oshokin/docker-image-updater/internal/service/hook"
	"github.com/oshokin/docker-image-updater/internal/version"
)

// loggerName is attached to every log line of a run.
const loggerName = "docker-image-updater"

// ErrUpdateFailed is returned when at least one image check or command failed.
var ErrUpdateFailed = errors.New("update finished with errors")

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPaths are merged in order, the default file is used when empty.
	ConfigPaths []string
	// LockFile is the run lock marker, empty disables locking.
	LockFile string
	// PullTimeout bounds each image pull, zero disables it.
	PullTimeout time.Duration
	// CommandTimeout bounds each command, zero disables it.
	CommandTimeout time.Duration
	// Runtime replaces the Docker client when set.
	Runtime Runtime
	// Runner replaces the shell runner when set.
	Runner CommandRunner
	// Progress receives pull progress dots. When nil, stdout is used if it is a terminal.
	Progress io.Writer
}

// Run loads the configuration, checks every watched image and runs the
// commands of updated groups. Configuration and startup errors are returned
// before any image is touched. Per-image and per-command failures only
// surface as ErrUpdateFailed once the whole run has finished.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	ctx = logger.WithName(ctx, loggerName)

	cfg, groups, err := loadGroups(ctx, opts.ConfigPaths)
	if err != nil {
		return nil, err
	}

	if opts.LockFile != "" {
		runLock := lock.NewFileLock(opts.LockFile)
		if err = runLock.Acquire(ctx); err != nil {
			return nil, err
		}

		defer func() {
			if releaseErr := runLock.Release(ctx); releaseErr != nil {
				logger.WarnKV(ctx, "Failed to release run lock", "error", releaseErr)
			}
		}()
	}

	runtime := opts.Runtime
	if runtime == nil {
		dockerClient, dialErr := common.Dial(ctx, cfg.Settings.Docker)
		if dialErr != nil {
			return nil, dialErr
		}

		defer func() {
			if closeErr := dockerClient.Close(); closeErr != nil {
				logger.WarnKV(ctx, "Failed to close docker client", "error", closeErr)
			}
		}()

		runtime = dockerClient
	}

	runner := opts.Runner
	if runner == nil {
		runner = hook.NewShellRunner(hook.WithTimeout(opts.CommandTimeout))
	}

	logStart(ctx, cfg, groups)

	checker := NewChecker(runtime,
		WithProgress(progressWriter(opts.Progress)),
		WithPullTimeout(opts.PullTimeout))

	report, err := New(checker, runner).Run(ctx, groups)
	if err != nil {
		logger.WarnKV(ctx, "Update run interrupted", "error", err, "errors", report.Errors)
		return report, err
	}

	logger.InfoKV(ctx, "Update run finished",
		"groups", len(report.Groups),
		"updated", report.UpdatedGroups(),
		"errors", report.Errors)

	if report.Errors > 0 {
		return report, fmt.Errorf("%w: %d error(s)", ErrUpdateFailed, report.Errors)
	}

	return report, nil
}

// PrintConfig writes the merged and validated configuration of paths to w as YAML.
func PrintConfig(ctx context.Context, paths []string, w io.Writer) error {
	ctx = logger.WithName(ctx, loggerName)

	cfg, _, err := loadGroups(ctx, paths)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err = encoder.Encode(cfg.Document.Node()); err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}

	return encoder.Close()
}

// loadGroups merges the configuration files and builds the watch groups.
func loadGroups(ctx context.Context, paths []string) (*config.Config, []*watch.Group, error) {
	cfg, err := config.Load(ctx, paths...)
	if err != nil {
		return nil, nil, err
	}

	groups, err := watch.Build(cfg.Document)
	if err != nil {
		return nil, nil, fmt.Errorf("error in configuration: %w", err)
	}

	return cfg, groups, nil
}

// logStart records who runs what.
func logStart(ctx context.Context, cfg *config.Config, groups []*watch.Group) {
	actor, err := common.DetectActor()
	if err != nil {
		logger.DebugKV(ctx, "Unable to detect actor", "error", err)
	}

	logger.InfoKV(ctx, "Starting update run",
		"version", version.Short(),
		"actor", actor.String(),
		"sources", cfg.Sources,
		"groups", len(groups))
}

// progressWriter returns w, or stdout when w is nil and stdout is a terminal.
func progressWriter(w io.Writer) io.Writer {
	if w != nil {
		return w
	}

	if term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // File descriptors fit in int.
		return os.Stdout
	}

	return nil
}
