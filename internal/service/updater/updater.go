package updater

import (
	"context"
	"errors"

	"github.com/oshokin/docker-image-updater/internal/domain/watch"
	"github.com/oshokin/docker-image-updater/internal/logger"
	"github.com/oshokin/docker-image-updater/internal/service/hook"
)

// ImageChecker pulls an image and reports whether it changed.
type ImageChecker interface {
	Check(ctx context.Context, ref string) (bool, error)
}

// CommandRunner executes one configured command line.
type CommandRunner interface {
	Run(ctx context.Context, command string) error
}

// GroupState is the processing stage of a watch group.
type GroupState int

// Group states in processing order.
const (
	StatePending GroupState = iota
	StateChecking
	StateUpdated
	StateUnchanged
	StateRunningCommands
	StateSkipped
	StateDone
)

// String implements fmt.Stringer.
func (s GroupState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateChecking:
		return "checking"
	case StateUpdated:
		return "updated"
	case StateUnchanged:
		return "unchanged"
	case StateRunningCommands:
		return "running-commands"
	case StateSkipped:
		return "skipped"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// GroupResult is the outcome of processing one group.
type GroupResult struct {
	// Name of the group.
	Name string
	// State is the last state reached, StateDone unless the run was cancelled.
	State GroupState
	// Updated is true when at least one image of the group changed in this run.
	Updated bool
	// UpdatedImages lists the images seen as updated, in check order.
	UpdatedImages []string
	// FailedImages lists the images whose check failed.
	FailedImages []string
	// CommandsRun lists the commands that were started.
	CommandsRun []string
	// FailedCommands lists the commands that failed.
	FailedCommands []string
}

// Report summarises a whole run.
type Report struct {
	// Groups holds one result per processed group, in configuration order.
	Groups []*GroupResult
	// Errors is the number of failed image checks and commands.
	Errors int
}

// UpdatedGroups returns the names of groups whose commands were triggered.
func (r *Report) UpdatedGroups() []string {
	var names []string

	for _, g := range r.Groups {
		if g.Updated {
			names = append(names, g.Name)
		}
	}

	return names
}

// Updater checks every group in order and runs the commands of updated groups.
// An image shared by several groups is pulled at most once per run.
// Failures are counted and logged, they never stop the run.
type Updater struct {
	checker ImageChecker
	runner  CommandRunner

	// updated holds images found to be updated during this run.
	updated map[string]struct{}
	// errorCount is the number of failures so far.
	errorCount int
}

// New creates an updater.
func New(checker ImageChecker, runner CommandRunner) *Updater {
	return &Updater{
		checker: checker,
		runner:  runner,
		updated: make(map[string]struct{}),
	}
}

// ErrorCount returns the failures counted by the last run.
func (u *Updater) ErrorCount() int {
	return u.errorCount
}

// Run processes groups sequentially. The context is checked before every image
// check and every command. On cancellation the partial report is returned
// together with the context error.
func (u *Updater) Run(ctx context.Context, groups []*watch.Group) (*Report, error) {
	u.updated = make(map[string]struct{})
	u.errorCount = 0

	report := &Report{
		Groups: make([]*GroupResult, 0, len(groups)),
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			report.Errors = u.errorCount
			return report, err
		}

		result, err := u.processGroup(ctx, group)
		report.Groups = append(report.Groups, result)

		if err != nil {
			report.Errors = u.errorCount
			return report, err
		}
	}

	report.Errors = u.errorCount

	return report, nil
}

// processGroup moves one group through its states.
func (u *Updater) processGroup(ctx context.Context, group *watch.Group) (*GroupResult, error) {
	ctx = logger.WithKV(ctx, "group", group.Name)

	result := &GroupResult{
		Name:  group.Name,
		State: StatePending,
	}

	logger.Infof(ctx, "Checking images in set %s", group.Name)
	u.transition(ctx, result, StateChecking)

	for _, ref := range group.Images {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := u.checkImage(ctx, result, ref); err != nil {
			return result, err
		}
	}

	if !result.Updated {
		u.transition(ctx, result, StateUnchanged)
		logger.Debug(ctx, "No image in set updated, skipping commands")
		u.transition(ctx, result, StateSkipped)
		u.transition(ctx, result, StateDone)

		return result, nil
	}

	u.transition(ctx, result, StateUpdated)
	u.transition(ctx, result, StateRunningCommands)

	for _, command := range group.Commands {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := u.runCommand(ctx, result, command); err != nil {
			return result, err
		}
	}

	u.transition(ctx, result, StateDone)

	return result, nil
}

// checkImage checks a single image unless it was already updated earlier in the run.
// Only a cancellation error is returned, other failures are counted.
func (u *Updater) checkImage(ctx context.Context, result *GroupResult, ref string) error {
	if _, seen := u.updated[ref]; seen {
		logger.DebugKV(ctx, "Image already updated in this run", "image", ref)

		result.Updated = true
		result.UpdatedImages = append(result.UpdatedImages, ref)

		return nil
	}

	logger.InfoKV(ctx, "Updating image", "image", ref)

	changed, err := u.checker.Check(ctx, ref)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		u.errorCount++
		result.FailedImages = append(result.FailedImages, ref)

		logger.ErrorKV(ctx, "Failed to update image", "image", ref, "error", err)

		return nil
	}

	if !changed {
		logger.InfoKV(ctx, "Image is already at the latest version", "image", ref)
		return nil
	}

	u.updated[ref] = struct{}{}
	result.Updated = true
	result.UpdatedImages = append(result.UpdatedImages, ref)

	logger.InfoKV(ctx, "Image updated to the latest version", "image", ref)

	return nil
}

// runCommand runs one command of an updated group.
// Only a cancellation error is returned, other failures are counted.
func (u *Updater) runCommand(ctx context.Context, result *GroupResult, command string) error {
	result.CommandsRun = append(result.CommandsRun, command)

	err := u.runner.Run(ctx, command)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	u.errorCount++
	result.FailedCommands = append(result.FailedCommands, command)

	var exitErr *hook.ExitError
	if errors.As(err, &exitErr) {
		logger.ErrorKV(ctx, "Command exited with non-zero exit code",
			"command", command,
			"exit_code", exitErr.Code)

		return nil
	}

	logger.ErrorKV(ctx, "Command execution failed", "command", command, "error", err)

	return nil
}

func (u *Updater) transition(ctx context.Context, result *GroupResult, state GroupState) {
	logger.DebugKV(ctx, "Group state changed", "from", result.State.String(), "to", state.String())
	result.State = state
}
