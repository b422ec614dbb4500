package loader

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pursloader/internal/eventstore"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/notify"
)

// Diagnostics collects the warning and error text of a build for the host.
type Diagnostics struct {
	Warnings []string
	Errors   []string
}

// AfterCompileFunc runs once the host finished a compilation. It must call
// next to let the host proceed.
type AfterCompileFunc func(ctx context.Context, d *Diagnostics, next func())

// Hooks is the host lifecycle surface the loader attaches to.
type Hooks interface {
	OnInvalid(fn func())
	OnAfterCompile(fn AfterCompileFunc)
}

// InstallHooksOnce attaches the loader to h. Calls after the first are no-ops.
func (l *Loader) InstallHooksOnce(h Hooks) {
	if !l.state.MarkHooksInstalled() {
		return
	}
	h.OnInvalid(l.Invalidate)
	h.OnAfterCompile(l.afterCompile)
	slog.Debug("Installed host hooks")
}

// afterCompile waits for a pending bundle, drains the cycle's diagnostics
// into d, records the cycle summary and hands control back to the host.
func (l *Loader) afterCompile(ctx context.Context, d *Diagnostics, next func()) {
	l.bundling.Wait()
	c := l.state.Current()
	warnings, errs := c.DrainDiagnostics()
	d.Warnings = append(d.Warnings, warnings...)
	d.Errors = append(d.Errors, errs...)

	resolved, rejected := c.Outcomes()
	l.journal.Record(ctx, c.Generation(), eventstore.CycleSettled{
		Resolved: resolved,
		Rejected: rejected,
		Warnings: len(warnings),
		Errors:   len(errs),
	})
	summary := notify.Summary{
		Generation: c.Generation(),
		Mode:       cycleMode(c),
		Modules:    c.BundleModules(),
		Resolved:   resolved,
		Rejected:   rejected,
		Warnings:   warnings,
		Errors:     errs,
		Timestamp:  time.Now().UTC(),
	}
	if err := l.notifier.Publish(ctx, summary); err != nil {
		slog.Warn("Failed to publish cycle summary", logfields.Generation(c.Generation()), logfields.Error(err))
	}
	next()
}
