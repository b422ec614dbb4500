package loader

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/pursloader/internal/artifact"
	"git.home.luguber.info/inful/pursloader/internal/eventstore"
	"git.home.luguber.info/inful/pursloader/internal/foundation"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/metrics"
	"git.home.luguber.info/inful/pursloader/internal/state"
)

// artifactReaders bounds parallel artifact reads during replay.
const artifactReaders = 8

// enqueue defers r behind the cycle's compile, starting it if r is first.
func (l *Loader) enqueue(c *state.Cycle, r *state.Request, mode string) {
	switch action := c.Admit(r); action {
	case state.ActionStartCompile:
		slog.Debug("Starting compile for generation", logfields.Generation(c.Generation()), logfields.Module(r.ModuleName))
		l.recorder.SetQueueDepth(c.QueueDepth())
		l.spawn(func(ctx context.Context) { l.compileAndReplay(ctx, c, mode) })
	case state.ActionWait:
		l.recorder.SetQueueDepth(c.QueueDepth())
	case state.ActionServeDirect:
		l.spawn(func(ctx context.Context) { l.serveSettled(ctx, c, r, mode) })
	case state.ActionReject:
		l.reject(c, r, mode, errors.ErrPriorStepFailed)
	}
}

// compileAndReplay runs the generation's single compile and then settles
// every deferred request.
func (l *Loader) compileAndReplay(ctx context.Context, c *state.Cycle, mode string) {
	start := time.Now()
	globs, err := l.sourceGlobs(ctx, c)
	if err == nil {
		err = l.compiler.Compile(ctx, globs, c)
	}
	finished := eventstore.CompileFinished{DurationMS: time.Since(start).Milliseconds(), Failed: err != nil}
	if err != nil {
		finished.Error = err.Error()
	}
	l.journal.Record(ctx, c.Generation(), finished)

	if err != nil {
		slog.Error("Compile failed", logfields.Generation(c.Generation()), logfields.Error(err))
		l.failQueue(c, mode, err)
		return
	}
	c.MarkCompileFinished()
	bundling := mode == ModeBatch && l.cfg.Bundle.Enabled
	if bundling {
		// Registered before any request resolves so afterCompile sees it.
		l.bundling.Add(1)
	}
	l.replay(ctx, c, mode)
	if bundling {
		l.bundle(ctx, c)
	}
}

// failQueue rejects the first deferred request with err and every other one,
// including requests that arrive before the queue settles, with
// ErrPriorStepFailed.
func (l *Loader) failQueue(c *state.Cycle, mode string, err error) {
	c.Fail(err)
	first := true
	for batch := c.DrainOrSettle(); batch != nil; batch = c.DrainOrSettle() {
		for _, r := range batch {
			if first {
				l.reject(c, r, mode, err)
				first = false
				continue
			}
			l.reject(c, r, mode, errors.ErrPriorStepFailed)
		}
	}
	l.recorder.SetQueueDepth(0)
}

// replay drains the queue until it stays empty. Incremental cycles reload the
// IDE server once per drained batch before reading artifacts.
func (l *Loader) replay(ctx context.Context, c *state.Cycle, mode string) {
	for batch := c.DrainOrSettle(); batch != nil; batch = c.DrainOrSettle() {
		l.recorder.SetQueueDepth(0)
		slog.Debug("Replaying deferred requests", logfields.Generation(c.Generation()), logfields.QueueDepth(len(batch)))
		if mode == ModeIncremental {
			if err := l.reload(ctx, c); err != nil {
				for _, r := range batch {
					l.reject(c, r, mode, err)
				}
				continue
			}
		}
		results := l.readArtifacts(ctx, batch)
		for i, r := range batch {
			results[i].Match(
				func(a artifact.Artifact) { l.resolve(c, r, mode, a) },
				func(err error) { l.reject(c, r, mode, err) },
			)
		}
	}
}

// serveSettled serves a request admitted after its generation settled.
func (l *Loader) serveSettled(ctx context.Context, c *state.Cycle, r *state.Request, mode string) {
	if mode == ModeIncremental {
		if err := l.reload(ctx, c); err != nil {
			l.reject(c, r, mode, err)
			return
		}
	}
	l.serve(c, r, mode)
}

// reload makes the IDE server pick up freshly compiled output.
func (l *Loader) reload(ctx context.Context, c *state.Cycle) error {
	s, err := l.ideSession(ctx, c)
	if err != nil {
		return err
	}
	if !s.Alive() {
		return s.Connect(ctx)
	}
	return s.Load(ctx)
}

// readArtifacts reads every request's artifact in parallel. Results keep the
// order of batch.
func (l *Loader) readArtifacts(ctx context.Context, batch []*state.Request) []foundation.Result[artifact.Artifact, error] {
	results := make([]foundation.Result[artifact.Artifact, error], len(batch))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(artifactReaders)
	for i, r := range batch {
		g.Go(func() error {
			results[i] = l.readArtifact(r)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (l *Loader) readArtifact(r *state.Request) foundation.Result[artifact.Artifact, error] {
	start := time.Now()
	a, err := l.dispatcher.Build(r.Target())
	l.recorder.ObserveStageDuration(metrics.StageArtifact, time.Since(start))
	if err != nil {
		l.recorder.IncStageResult(metrics.StageArtifact, metrics.ResultFailed)
		return foundation.Err[artifact.Artifact, error](err)
	}
	l.recorder.IncStageResult(metrics.StageArtifact, metrics.ResultSuccess)
	return foundation.Ok[artifact.Artifact, error](a)
}

// serve settles r with its artifact read from the output tree.
func (l *Loader) serve(c *state.Cycle, r *state.Request, mode string) {
	l.readArtifact(r).Match(
		func(a artifact.Artifact) { l.resolve(c, r, mode, a) },
		func(err error) { l.reject(c, r, mode, err) },
	)
}

// bundle runs the bundler once for the cycle. A failure is recorded as a
// build error; the requests have already resolved.
func (l *Loader) bundle(ctx context.Context, c *state.Cycle) {
	defer l.bundling.Done()
	modules := c.BundleModules()
	err := l.bundler.Bundle(ctx, modules)
	finished := eventstore.BundleFinished{Modules: modules, Failed: err != nil}
	if err != nil {
		finished.Error = err.Error()
		slog.Error("Bundling failed", logfields.Generation(c.Generation()), logfields.Error(err))
		c.EmitError(err.Error())
	}
	l.journal.Record(ctx, c.Generation(), finished)
}

func (l *Loader) resolve(c *state.Cycle, r *state.Request, mode string, a artifact.Artifact) {
	if !r.Resolve(a) {
		return
	}
	c.RecordOutcome(false)
	l.recorder.IncRequestOutcome(mode, metrics.ResultSuccess)
	l.journal.Record(l.ctx, c.Generation(), eventstore.ModuleSettled{Module: r.ModuleName, Mode: mode})
}

func (l *Loader) reject(c *state.Cycle, r *state.Request, mode string, err error) {
	if !r.Reject(err) {
		return
	}
	c.RecordOutcome(true)
	result := metrics.ResultFailed
	if l.ctx.Err() != nil {
		result = metrics.ResultCanceled
	}
	l.recorder.IncRequestOutcome(mode, result)
	slog.Debug("Request rejected", logfields.Module(r.ModuleName), logfields.Mode(mode), logfields.Error(err))
	l.journal.Record(l.ctx, c.Generation(), eventstore.ModuleSettled{
		Module:   r.ModuleName,
		Mode:     mode,
		Rejected: true,
		Error:    err.Error(),
	})
}
