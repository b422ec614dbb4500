// Package loader admits module requests from a host build pipeline and
// serves each one with compiled output, either from a shared batch compile or
// from incremental rebuilds on a persistent IDE server.
package loader

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/pursloader/internal/artifact"
	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/eventstore"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/ide"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/metrics"
	"git.home.luguber.info/inful/pursloader/internal/modulemap"
	"git.home.luguber.info/inful/pursloader/internal/notify"
	"git.home.luguber.info/inful/pursloader/internal/process"
	"git.home.luguber.info/inful/pursloader/internal/retry"
	"git.home.luguber.info/inful/pursloader/internal/state"
)

// Build modes used in logs, metrics and history.
const (
	ModeBatch       = "batch"
	ModeIncremental = "incremental"
)

// Option configures a Loader.
type Option func(*Loader)

// WithExecutor replaces the OS process executor.
func WithExecutor(exec process.Executor) Option {
	return func(l *Loader) { l.exec = exec }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(l *Loader) { l.recorder = metrics.Or(r) }
}

// WithJournal records cycle events, typically into the SQLite event store.
func WithJournal(j eventstore.Journal) Option {
	return func(l *Loader) {
		if j != nil {
			l.journal = j
		}
	}
}

// WithNotifier publishes a summary of every settled cycle.
func WithNotifier(n notify.Notifier) Option {
	return func(l *Loader) {
		if n != nil {
			l.notifier = n
		}
	}
}

// WithLoadPolicy overrides the IDE server load retry policy.
func WithLoadPolicy(p retry.Policy) Option {
	return func(l *Loader) { l.policy = &p }
}

// Loader owns the build state for one host process.
type Loader struct {
	cfg      *config.Config
	exec     process.Executor
	recorder metrics.Recorder
	journal  eventstore.Journal
	notifier notify.Notifier
	policy   *retry.Policy

	state      *state.BuildState
	output     string
	compiler   *process.Compiler
	bundler    *process.Bundler
	dispatcher *artifact.Dispatcher
	formatter  *ide.Formatter
	sources    singleflight.Group
	bundling   sync.WaitGroup

	sessionMu sync.Mutex
	session   *ide.Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Loader. With the spago package manager and no explicit output
// directory, the output path is asked from spago once for the process lifetime.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Loader, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Loader{
		cfg:      cfg,
		exec:     process.OSExecutor{},
		recorder: metrics.NoopRecorder{},
		journal:  eventstore.NopJournal{},
		notifier: notify.Nop{},
	}
	for _, opt := range opts {
		opt(l)
	}

	l.output = cfg.Output
	if cfg.PackageManager == config.PackageManagerSpago && cfg.Output == config.DefaultOutput {
		out, err := process.SpagoOutputPath(ctx, l.exec, cfg.Context)
		if err != nil {
			return nil, err
		}
		if out != "" {
			l.output = out
		}
	}

	readFrom := l.output
	if !filepath.IsAbs(readFrom) {
		readFrom = filepath.Join(cfg.Context, readFrom)
	}
	l.state = state.New(cfg.IDE.Enabled, cfg.Warnings)
	l.compiler = process.NewCompiler(cfg, l.exec, l.output).WithRecorder(l.recorder)
	l.bundler = process.NewBundler(cfg, l.exec, l.output).WithRecorder(l.recorder)
	l.dispatcher = artifact.NewDispatcher(readFrom, cfg.SourceMapsEnabled())
	l.formatter = ide.NewFormatter(cfg.Context, cfg.UseColors())
	l.ctx, l.cancel = context.WithCancel(context.WithoutCancel(ctx))

	c := l.state.Current()
	l.journal.Record(l.ctx, c.Generation(), eventstore.CycleStarted{Mode: cycleMode(c)})
	slog.Debug("Loader ready", logfields.Path(l.output), logfields.Generation(c.Generation()))
	return l, nil
}

// Output is the compiler output directory as passed to the tools.
func (l *Loader) Output() string { return l.output }

// State exposes the build state.
func (l *Loader) State() *state.BuildState { return l.state }

// Admit accepts r. It never blocks; r settles exactly once through its own
// Resolve or Reject.
func (l *Loader) Admit(r *state.Request) {
	if r.ModuleName == "" {
		r.ModuleName = modulemap.MatchModule(r.Source)
	}
	c := l.state.Current()
	if r.ModuleName == "" {
		l.reject(c, r, ModeBatch, errors.ValidationError("no module declaration found").
			WithContext("path", r.SourcePath).
			Build())
		return
	}
	if l.ctx.Err() != nil {
		l.reject(c, r, cycleMode(c), errors.NewError(errors.CategoryRuntime, "loader is closed").Build())
		return
	}
	c.AddBundleModule(r.ModuleName)
	if c.Incremental() {
		l.spawn(func(ctx context.Context) { l.rebuild(ctx, c, r) })
		return
	}
	l.enqueue(c, r, ModeBatch)
}

// Load admits r and waits for its artifact.
func (l *Loader) Load(ctx context.Context, r *state.Request) (artifact.Artifact, error) {
	l.Admit(r)
	return r.Wait(ctx)
}

// Invalidate starts a new generation. The IDE server and the hooks flag
// carry over.
func (l *Loader) Invalidate() {
	c := l.state.Reset()
	slog.Debug("Build state invalidated", logfields.Generation(c.Generation()), logfields.Mode(cycleMode(c)))
	l.journal.Record(l.ctx, c.Generation(), eventstore.CycleStarted{Mode: cycleMode(c)})
}

// Session returns the IDE session, or nil when none was created yet.
func (l *Loader) Session() *ide.Session {
	l.sessionMu.Lock()
	defer l.sessionMu.Unlock()
	return l.session
}

// EnsureServer reconnects a previously started IDE server that has exited.
// It does nothing before the first incremental request created a session.
func (l *Loader) EnsureServer(ctx context.Context) error {
	s := l.Session()
	if s == nil || s.Alive() {
		return nil
	}
	slog.Info("Reconnecting ide server")
	return s.Connect(ctx)
}

// Close stops the IDE server and waits for in-flight work. Requests still
// pending settle with a cancellation error.
func (l *Loader) Close() {
	l.cancel()
	l.shutdownSession()
	l.wg.Wait()
	// A connect that was already past its spawn when Close began.
	l.shutdownSession()
}

func (l *Loader) shutdownSession() {
	if s := l.Session(); s != nil {
		s.Shutdown()
	}
}

func (l *Loader) spawn(fn func(ctx context.Context)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn(l.ctx)
	}()
}

// sourceGlobs resolves the compiler source set once per generation.
func (l *Loader) sourceGlobs(ctx context.Context, c *state.Cycle) ([]string, error) {
	if globs := c.ResolvedSources(); globs != nil {
		return globs, nil
	}
	v, err, _ := l.sources.Do(c.Generation(), func() (any, error) {
		src := l.cfg.Src
		if l.cfg.PackageManager != config.PackageManagerNone && slices.Equal(src, config.DefaultSrc) {
			src = nil
		}
		globs, err := process.DependencySources(ctx, l.exec, l.cfg.Context, l.cfg.PackageManager, src)
		if err != nil {
			return nil, err
		}
		c.SetResolvedSources(globs)
		return globs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// ideSession returns the session, creating it with the cycle's sources on first use.
func (l *Loader) ideSession(ctx context.Context, c *state.Cycle) (*ide.Session, error) {
	if s := l.Session(); s != nil {
		return s, nil
	}
	globs, err := l.sourceGlobs(ctx, c)
	if err != nil {
		return nil, err
	}
	l.sessionMu.Lock()
	defer l.sessionMu.Unlock()
	if l.session == nil {
		s := ide.NewSession(l.cfg, l.exec, ide.NewClient(l.cfg, l.exec), globs, l.output).WithRecorder(l.recorder)
		if l.policy != nil {
			s = s.WithPolicy(*l.policy)
		}
		l.session = s
	}
	return l.session, nil
}

func cycleMode(c *state.Cycle) string {
	if c.Incremental() {
		return ModeIncremental
	}
	return ModeBatch
}
