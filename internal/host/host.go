// Package host runs the loader outside a bundler: it provides the lifecycle
// hooks, drives build cycles over source files, watches sources for changes
// and keeps the IDE server alive.
package host

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/loader"
)

// Host is an in-process implementation of loader.Hooks.
type Host struct {
	mu           sync.Mutex
	invalid      []func()
	afterCompile []loader.AfterCompileFunc
}

// New returns a Host with no callbacks registered.
func New() *Host {
	return &Host{}
}

func (h *Host) OnInvalid(fn func()) {
	h.mu.Lock()
	h.invalid = append(h.invalid, fn)
	h.mu.Unlock()
}

func (h *Host) OnAfterCompile(fn loader.AfterCompileFunc) {
	h.mu.Lock()
	h.afterCompile = append(h.afterCompile, fn)
	h.mu.Unlock()
}

// Invalidate fires every invalidate callback in registration order.
func (h *Host) Invalidate() {
	h.mu.Lock()
	fns := append([]func(){}, h.invalid...)
	h.mu.Unlock()
	slog.Debug("Invalidating build", "callbacks", len(fns))
	for _, fn := range fns {
		fn()
	}
}

// Complete runs the after-compile chain and returns what it collected. Each
// callback hands over to the next through its continuation; a callback that
// never continues stops the chain and Complete reports it.
func (h *Host) Complete(ctx context.Context) (loader.Diagnostics, error) {
	h.mu.Lock()
	fns := append([]loader.AfterCompileFunc{}, h.afterCompile...)
	h.mu.Unlock()

	var d loader.Diagnostics
	done := false
	var run func(i int)
	run = func(i int) {
		if i == len(fns) {
			done = true
			return
		}
		fns[i](ctx, &d, func() { run(i + 1) })
	}
	run(0)
	if !done {
		return d, errors.InternalError("after-compile callback did not continue").Build()
	}
	return d, nil
}
