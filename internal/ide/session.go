package ide

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/metrics"
	"git.home.luguber.info/inful/pursloader/internal/process"
	"git.home.luguber.info/inful/pursloader/internal/retry"
)

// State is the lifecycle position of the IDE server.
type State int

const (
	Disconnected State = iota
	Connecting
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "invalid"
	}
}

// Session owns the IDE server process. At most one server exists at a time;
// concurrent Connect calls share a single attempt.
type Session struct {
	exec     process.Executor
	client   *Client
	policy   retry.Policy
	recorder metrics.Recorder
	server   process.Command

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu    sync.Mutex
	state State
	proc  process.Process
	// exited is closed by the supervisor when proc terminates.
	exited chan struct{}
}

// NewSession builds a disconnected session. src and output are passed to the
// server as its source globs and output directory.
func NewSession(cfg *config.Config, exec process.Executor, client *Client, src []string, output string) *Session {
	name, prefix := cfg.IDEServerInvocation()
	flags := process.MergeFlags(map[string]any{
		process.Positional: src,
		"outputDirectory":  output,
	}, cfg.IDE.ServerArgs)

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		exec:     exec,
		client:   client,
		policy:   retry.FromConfig(cfg),
		recorder: metrics.NoopRecorder{},
		server: process.Command{
			Name: name,
			Args: append(append([]string(nil), prefix...), process.FormatFlags(flags)...),
			Dir:  cfg.Context,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// WithRecorder sets the metrics recorder.
func (s *Session) WithRecorder(r metrics.Recorder) *Session {
	s.recorder = metrics.Or(r)
	return s
}

// WithPolicy overrides the load retry policy.
func (s *Session) WithPolicy(p retry.Policy) *Session {
	s.policy = p
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Alive reports whether a loaded server is running.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Ready && s.proc != nil
}

// Connect ensures a loaded server. When disconnected it spawns the server and
// loads modules with retry; on exhaustion the server is killed and the
// session returns to Disconnected so the next call starts fresh.
func (s *Session) Connect(ctx context.Context) error {
	if s.Alive() {
		return nil
	}
	ch := s.group.DoChan("connect", func() (any, error) {
		return nil, s.connect()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) connect() error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return nil
	}
	cmd := s.server
	cmd.Stdout, cmd.Stderr = debugWriter("stdout"), debugWriter("stderr")
	slog.Debug("Starting ide server", logfields.Command(cmd.Name), logfields.Args(cmd.Args))
	proc, err := s.exec.Start(cmd)
	if err != nil {
		s.mu.Unlock()
		s.recorder.IncConnectAttempt(false)
		return err
	}
	exited := make(chan struct{})
	s.proc, s.exited, s.state = proc, exited, Connecting
	s.mu.Unlock()

	go s.supervise(proc, exited)

	s.setState(proc, Loading)
	start := time.Now()
	err = retry.Do(s.ctx, s.policy, func(attempt int) error {
		slog.Debug("Loading modules into ide server", logfields.Attempt(attempt), "attempts", s.policy.Attempts())
		return s.client.Load(s.ctx)
	})
	s.recorder.ObserveStageDuration(metrics.StageIDELoad, time.Since(start))
	if err != nil {
		slog.Warn("ide server failed to load modules, stopping it", logfields.Error(err))
		s.recorder.IncConnectAttempt(false)
		s.drop(proc)
		return err
	}
	s.recorder.IncConnectAttempt(true)
	if !s.setState(proc, Ready) {
		return errors.NewError(errors.CategoryRuntime, "ide server exited while loading modules").Build()
	}
	slog.Info("ide server ready", "pid", proc.Pid())
	return nil
}

// setState moves proc's session to st; false if proc is no longer current.
func (s *Session) setState(proc process.Process, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != proc {
		return false
	}
	s.state = st
	return true
}

// supervise clears the handle when the server exits on its own.
func (s *Session) supervise(proc process.Process, exited chan struct{}) {
	err := proc.Wait()
	close(exited)
	s.mu.Lock()
	current := s.proc == proc
	if current {
		s.proc = nil
		s.exited = nil
		s.state = Disconnected
	}
	s.mu.Unlock()
	if current {
		slog.Warn("ide server exited", logfields.ExitCode(process.ExitCode(err)))
	}
}

// debugWriter forwards server output to the debug log.
type debugWriter string

func (w debugWriter) Write(p []byte) (int, error) {
	slog.Debug("ide server output", "stream", string(w), "output", string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// drop kills proc and resets the session if proc is still current.
func (s *Session) drop(proc process.Process) {
	s.mu.Lock()
	var exited chan struct{}
	if s.proc == proc {
		exited = s.exited
		s.proc = nil
		s.exited = nil
		s.state = Disconnected
	}
	s.mu.Unlock()
	_ = proc.Kill()
	if exited != nil {
		<-exited
	}
}

// Load reloads compiled modules into a running server.
func (s *Session) Load(ctx context.Context) error {
	return s.client.Load(ctx)
}

// Rebuild asks the server to rebuild file.
func (s *Session) Rebuild(ctx context.Context, file string) (*Response, error) {
	start := time.Now()
	resp, err := s.client.Rebuild(ctx, file)
	s.recorder.ObserveStageDuration(metrics.StageRebuild, time.Since(start))
	return resp, err
}

// Close stops the server. The session can connect again afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc != nil {
		s.drop(proc)
	}
}

// Shutdown stops the server and abandons any in-flight load retry.
func (s *Session) Shutdown() {
	s.cancel()
	s.Close()
}
