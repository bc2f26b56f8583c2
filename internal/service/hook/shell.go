package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/oshokin/docker-image-updater/internal/logger"
)

var (
	// ErrNonZeroExit is matched by every *ExitError.
	ErrNonZeroExit = errors.New("command exited with non-zero exit code")
	// ErrUnsupportedOS indicates that no shell is known for the current OS.
	ErrUnsupportedOS = errors.New("unsupported operating system")
)

// waitDelay bounds how long Run waits for output pipes once the shell has exited.
const waitDelay = 2 * time.Second

// ExitError reports a command that ran to completion with a non-zero status.
type ExitError struct {
	// Command is the command line as configured.
	Command string
	// Code is the exit status, -1 when the process was killed by a signal.
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrNonZeroExit, e.Code, e.Command)
}

// Is lets errors.Is match ErrNonZeroExit.
func (e *ExitError) Is(target error) bool {
	return target == ErrNonZeroExit
}

// ShellRunner executes command lines through the platform shell.
type ShellRunner struct {
	// stdout and stderr receive the command output.
	stdout io.Writer
	stderr io.Writer
	// timeout bounds a single command, zero disables it.
	timeout time.Duration
	// shell builds the argv for a command line.
	shell func(command string) ([]string, error)
}

// Option configures a ShellRunner.
type Option func(*ShellRunner)

// WithOutput redirects command output, os.Stdout and os.Stderr by default.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *ShellRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithTimeout kills commands still running after timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *ShellRunner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewShellRunner creates a runner for the current platform.
func NewShellRunner(opts ...Option) *ShellRunner {
	r := &ShellRunner{
		stdout: os.Stdout,
		stderr: os.Stderr,
		shell:  platformShell,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes command and waits for it to finish.
// The command line goes to the shell verbatim, so a blank one succeeds like `sh -c ""`.
// A non-zero exit status is reported as *ExitError, a launch failure as the wrapped exec error.
func (r *ShellRunner) Run(ctx context.Context, command string) error {
	argv, err := r.shell(command)
	if err != nil {
		return err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logger.InfoKV(ctx, "Running command", "command", command)

	//nolint:gosec // G204: running configured shell commands is the whole point.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	// Children of the shell may keep the output pipes open after it was killed.
	cmd.WaitDelay = waitDelay

	err = cmd.Run()
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		logger.Info(ctx, "Command exited successfully")
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("run %q: %w", command, ctxErr)
		}

		return &ExitError{
			Command: command,
			Code:    exitErr.ExitCode(),
		}
	}

	return fmt.Errorf("run %q: %w", command, err)
}

// platformShell wraps command for sh on Unix-like systems and cmd.exe on Windows.
func platformShell(command string) ([]string, error) {
	switch runtime.GOOS {
	case "windows":
		return []string{"cmd.exe", "/C", command}, nil
	case "plan9", "js", "wasip1":
		return nil, fmt.Errorf("%s: %w", runtime.GOOS, ErrUnsupportedOS)
	default:
		return []string{"/bin/sh", "-c", command}, nil
	}
}
