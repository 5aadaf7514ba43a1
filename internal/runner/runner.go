// Package runner starts child processes attached to the user's terminal.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/agilira/go-errors"
)

// ErrCodeCommandFailed marks a command that could not start or exited non-zero.
const ErrCodeCommandFailed = "RUN_2001"

// RunOptions tunes a single command.
type RunOptions struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the parent environment.
	Env []string
}

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts RunOptions) error
}

// Func adapts a function to Runner.
type Func func(ctx context.Context, name string, args []string, opts RunOptions) error

// Run implements Runner.
func (f Func) Run(ctx context.Context, name string, args []string, opts RunOptions) error {
	return f(ctx, name, args, opts)
}

// Exec runs commands with os/exec, inheriting stdin, stdout and stderr.
type Exec struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExec returns a runner wired to the process's standard streams.
func NewExec() *Exec {
	return &Exec{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run implements Runner. Any non-zero exit is reported as a failure.
func (e *Exec) Run(ctx context.Context, name string, args []string, opts RunOptions) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if err := cmd.Run(); err != nil {
		return NewCommandFailedError(name, args, err)
	}
	return nil
}

// NewCommandFailedError describes a failed command line.
func NewCommandFailedError(name string, args []string, cause error) *errors.Error {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	exitCode := -1
	var exitErr *exec.ExitError
	if stderrors.As(cause, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return errors.Wrap(cause, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", line)).
		WithUserMessage("Command failed.").
		WithContext("command", line).
		WithContext("exit_code", exitCode).
		WithSeverity("error")
}

// Shell runs a command line through sh -c.
func Shell(ctx context.Context, r Runner, line string, opts RunOptions) error {
	return r.Run(ctx, "sh", []string{"-c", line}, opts)
}
