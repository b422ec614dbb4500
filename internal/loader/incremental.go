package loader

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/pursloader/internal/eventstore"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/ide"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/metrics"
	"git.home.luguber.info/inful/pursloader/internal/state"
)

// rebuild serves r through the IDE server and routes the classified outcome.
func (l *Loader) rebuild(ctx context.Context, c *state.Cycle, r *state.Request) {
	s, err := l.ideSession(ctx, c)
	if err == nil {
		err = s.Connect(ctx)
	}
	if err != nil {
		slog.Warn("ide server unavailable", logfields.Module(r.ModuleName), logfields.Error(err))
		l.reject(c, r, ModeIncremental, err)
		return
	}

	resp, err := s.Rebuild(ctx, r.SourcePath)
	if err != nil {
		l.recorder.IncStageResult(metrics.StageRebuild, metrics.ResultFailed)
		l.reject(c, r, ModeIncremental, err)
		return
	}

	out := ide.Classify(resp, l.formatter)
	slog.Debug("Rebuild finished", logfields.Module(r.ModuleName), "outcome", out.Kind.String())
	switch out.Kind {
	case ide.OutcomeSuccess:
		if out.Diagnostics != "" {
			l.recorder.IncStageResult(metrics.StageRebuild, metrics.ResultWarning)
		} else {
			l.recorder.IncStageResult(metrics.StageRebuild, metrics.ResultSuccess)
		}
		c.EmitWarning(out.Diagnostics)
		l.serve(c, r, ModeIncremental)
	case ide.OutcomeUnknownModule:
		l.recoverStale(c, r)
	default:
		l.recorder.IncStageResult(metrics.StageRebuild, metrics.ResultFailed)
		c.EmitError(out.Diagnostics)
		if l.cfg.StrictRebuild {
			l.reject(c, r, ModeIncremental, errors.RebuildError(r.ModuleName, out.Diagnostics).Build())
			return
		}
		l.serve(c, r, ModeIncremental)
	}
}

// recoverStale defers r behind a batch compile after the server reported a module
// it does not know. The compile's replay reloads the server.
func (l *Loader) recoverStale(c *state.Cycle, r *state.Request) {
	slog.Info("Module graph is stale, compiling",
		logfields.Generation(c.Generation()),
		logfields.Error(errors.UnknownModuleError(r.ModuleName).Build()))
	l.recorder.IncUnknownModuleRecovery()
	l.journal.Record(l.ctx, c.Generation(), eventstore.UnknownModuleDetected{Module: r.ModuleName})
	l.enqueue(c, r, ModeIncremental)
}
