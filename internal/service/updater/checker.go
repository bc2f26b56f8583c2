package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/docker-image-updater/internal/domain/image"
	"github.com/oshokin/docker-image-updater/internal/logger"
)

// statusDownloading is the daemon status carrying layer download sizes.
const statusDownloading = "Downloading"

// Runtime is the part of the container runtime the checker talks to.
type Runtime interface {
	// InspectImage returns the local image ID, image.ErrNotFound if ref is absent.
	InspectImage(ctx context.Context, ref string) (image.ID, error)
	// PullImage starts a pull of ref from its registry.
	PullImage(ctx context.Context, ref string) (image.PullStream, error)
}

// Checker pulls an image and tells whether its local content changed.
type Checker struct {
	// runtime performs the inspect and pull calls.
	runtime Runtime
	// progress receives one dot per pull event, nil disables it.
	progress io.Writer
	// pullTimeout bounds a whole pull, zero disables it.
	pullTimeout time.Duration
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithProgress prints pull progress dots to w.
func WithProgress(w io.Writer) CheckerOption {
	return func(c *Checker) {
		c.progress = w
	}
}

// WithPullTimeout aborts pulls that take longer than timeout.
func WithPullTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) {
		if timeout > 0 {
			c.pullTimeout = timeout
		}
	}
}

// NewChecker creates a checker backed by runtime.
func NewChecker(runtime Runtime, opts ...CheckerOption) *Checker {
	c := &Checker{
		runtime: runtime,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Check pulls ref and reports whether the local image ID differs from the one
// before the pull. An image that was absent before counts as changed.
func (c *Checker) Check(ctx context.Context, ref string) (bool, error) {
	before, err := c.runtime.InspectImage(ctx, ref)
	if err != nil {
		if !errors.Is(err, image.ErrNotFound) {
			return false, err
		}

		logger.InfoKV(ctx, "Image not present locally", "image", ref)

		before = image.NoID
	}

	logger.InfoKV(ctx, "Pulling image", "image", ref, "current_id", before.Short())

	if err = c.pull(ctx, ref); err != nil {
		return false, err
	}

	after, err := c.runtime.InspectImage(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("inspect pulled image %s: %w", ref, err)
	}

	changed := after != before

	logger.DebugKV(ctx, "Image checked",
		"image", ref,
		"before", before.String(),
		"after", after.String(),
		"changed", changed)

	return changed, nil
}

// pull runs a pull to completion. The stream is always closed.
func (c *Checker) pull(ctx context.Context, ref string) error {
	if c.pullTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.pullTimeout)
		defer cancel()
	}

	stream, err := c.runtime.PullImage(ctx, ref)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close pull stream", "image", ref, "error", closeErr)
		}
	}()

	var (
		events     int
		layerSizes = make(map[string]int64)
	)

	for {
		event, nextErr := stream.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			c.endProgress(events)

			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("pull %s: %w", ref, ctxErr)
			}

			return fmt.Errorf("pull %s: %w", ref, nextErr)
		}

		events++

		if event.Status == statusDownloading && event.Layer != "" && event.Total > layerSizes[event.Layer] {
			layerSizes[event.Layer] = event.Total
		}

		c.tick()
	}

	c.endProgress(events)

	var downloaded int64
	for _, size := range layerSizes {
		downloaded += size
	}

	logger.DebugKV(ctx, "Pull finished",
		"image", ref,
		"events", events,
		"layers", len(layerSizes),
		"downloaded", humanize.Bytes(uint64(downloaded))) //nolint:gosec // Sizes are non-negative.

	return nil
}

func (c *Checker) tick() {
	if c.progress != nil {
		_, _ = io.WriteString(c.progress, ".")
	}
}

func (c *Checker) endProgress(events int) {
	if c.progress != nil && events > 0 {
		_, _ = io.WriteString(c.progress, "\n")
	}
}
