// Package process runs the external compiler, bundler and package manager
// commands and adapts their exit status to classified errors.
package process

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
)

// Command describes one external process invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Name, c.Args)
}

// Process is a started, long-running child process.
type Process interface {
	// Wait blocks until the process exits. A non-zero exit yields *ExitError.
	Wait() error
	Kill() error
	Pid() int
}

// Executor abstracts process creation so tests can script compiler behavior.
type Executor interface {
	// Run starts the command and waits for it. Start failures are returned as
	// spawn-category ClassifiedErrors, non-zero exits as *ExitError.
	Run(ctx context.Context, cmd Command) error
	// Start launches the command without waiting for it.
	Start(cmd Command) (Process, error)
}

// ExitError reports a process that ran and exited with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode extracts the exit status from err: 0 for nil, -1 when err is not an exit.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// OSExecutor runs real operating system processes.
type OSExecutor struct{}

func (OSExecutor) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	wire(cmd, c)
	if err := cmd.Start(); err != nil {
		return errors.SpawnError(c.Name, err).Build()
	}
	return convertWait(cmd.Wait())
}

func (OSExecutor) Start(c Command) (Process, error) {
	cmd := exec.Command(c.Name, c.Args...)
	wire(cmd, c)
	if err := cmd.Start(); err != nil {
		return nil, errors.SpawnError(c.Name, err).Build()
	}
	return &osProcess{cmd: cmd}, nil
}

func wire(cmd *exec.Cmd, c Command) {
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
}

func convertWait(err error) error {
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return err
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Wait() error { return convertWait(p.cmd.Wait()) }

func (p *osProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *osProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
