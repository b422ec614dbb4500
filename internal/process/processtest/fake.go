// Package processtest provides a scriptable process.Executor for tests.
package processtest

import (
	"context"
	"io"
	"slices"
	"sync"

	"git.home.luguber.info/inful/pursloader/internal/process"
)

// Call is one recorded invocation.
type Call struct {
	Name  string
	Args  []string
	Dir   string
	Stdin string
}

// RunFunc scripts a synchronous invocation. Returning &process.ExitError{}
// simulates a non-zero exit.
type RunFunc func(ctx context.Context, call Call, stdout, stderr io.Writer) error

// Executor records calls and delegates to OnRun/OnStart.
type Executor struct {
	mu      sync.Mutex
	calls   []Call
	started []*Process

	OnRun   RunFunc
	OnStart func(call Call) error
}

func (e *Executor) Run(ctx context.Context, cmd process.Command) error {
	call := e.record(cmd)
	if e.OnRun == nil {
		return nil
	}
	stdout, stderr := cmd.Stdout, cmd.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return e.OnRun(ctx, call, stdout, stderr)
}

func (e *Executor) Start(cmd process.Command) (process.Process, error) {
	call := e.record(cmd)
	if e.OnStart != nil {
		if err := e.OnStart(call); err != nil {
			return nil, err
		}
	}
	p := NewProcess()
	e.mu.Lock()
	e.started = append(e.started, p)
	e.mu.Unlock()
	return p, nil
}

func (e *Executor) record(cmd process.Command) Call {
	call := Call{Name: cmd.Name, Args: slices.Clone(cmd.Args), Dir: cmd.Dir}
	if cmd.Stdin != nil {
		b, _ := io.ReadAll(cmd.Stdin)
		call.Stdin = string(b)
	}
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
	return call
}

// Calls returns a copy of every recorded invocation.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// CallsTo returns the recorded invocations whose first argument is arg.
func (e *Executor) CallsTo(arg string) []Call {
	var out []Call
	for _, c := range e.Calls() {
		if len(c.Args) > 0 && c.Args[0] == arg {
			out = append(out, c)
		}
	}
	return out
}

// Started returns the processes launched through Start.
func (e *Executor) Started() []*Process {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.started)
}

// Process is a fake long-running process that exits on Kill or Exit.
type Process struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	err    error
	killed bool
}

// NewProcess returns a running fake process.
func NewProcess() *Process {
	return &Process{done: make(chan struct{})}
}

func (p *Process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Process) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.Exit(&process.ExitError{Code: -1})
	return nil
}

func (p *Process) Pid() int { return 4242 }

// Exit terminates the process with err as its Wait result.
func (p *Process) Exit(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

// Killed reports whether Kill was called.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }
