// Package state holds the process-wide build state: the current build cycle
// ("generation") and the flags that outlive it.
package state

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action tells the caller what to do with a request after admission.
type Action int

const (
	// ActionWait means the request is queued behind a running compile.
	ActionWait Action = iota
	// ActionStartCompile means the request is queued and the caller owns the
	// generation's single compile.
	ActionStartCompile
	// ActionServeDirect means the generation's compile already settled and
	// the request can be served from the output tree.
	ActionServeDirect
	// ActionReject means the generation's compile failed; the request shares
	// that failure.
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionWait:
		return "wait"
	case ActionStartCompile:
		return "start_compile"
	case ActionServeDirect:
		return "serve_direct"
	case ActionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Cycle is the per-generation state. A Cycle is replaced, never cleared, on
// invalidation, so work still running for an old generation cannot touch the
// new one.
type Cycle struct {
	mu              sync.Mutex
	generation      string
	incremental     bool
	warningsEnabled bool
	startedAt       time.Time

	deferred        []*Request
	bundleModules   []string
	warnings        []string
	errors          []string
	compileStarted  bool
	compileFinished bool
	settled         bool
	failure         error
	resolvedSources []string
	resolved        int
	rejected        int
}

func newCycle(incremental, warnings bool) *Cycle {
	return &Cycle{
		generation:      uuid.NewString(),
		incremental:     incremental,
		warningsEnabled: warnings,
		startedAt:       time.Now(),
	}
}

// Generation is the unique id of this cycle.
func (c *Cycle) Generation() string { return c.generation }

// Incremental reports whether requests in this cycle go to the IDE server.
func (c *Cycle) Incremental() bool { return c.incremental }

// StartedAt is when the cycle began.
func (c *Cycle) StartedAt() time.Time { return c.startedAt }

// Admit queues r unless the cycle's compile already settled. The first
// caller to queue a request receives ActionStartCompile; compileStarted
// flips at most once per cycle.
func (c *Cycle) Admit(r *Request) Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		if c.failure != nil {
			return ActionReject
		}
		return ActionServeDirect
	}
	c.deferred = append(c.deferred, r)
	if !c.compileStarted {
		c.compileStarted = true
		return ActionStartCompile
	}
	return ActionWait
}

// QueueDepth returns the number of requests waiting on the compile.
func (c *Cycle) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deferred)
}

// MarkCompileFinished records that the cycle's compile completed successfully.
func (c *Cycle) MarkCompileFinished() {
	c.mu.Lock()
	c.compileFinished = true
	c.mu.Unlock()
}

// CompileStarted reports whether the cycle's compile has been claimed.
func (c *Cycle) CompileStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compileStarted
}

// CompileFinished reports whether the cycle's compile completed.
func (c *Cycle) CompileFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compileFinished
}

// DrainOrSettle removes and returns every queued request in FIFO order. When
// the queue is already empty the cycle is marked settled in the same step,
// so later admissions are served directly and none is stranded.
func (c *Cycle) DrainOrSettle() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.deferred) == 0 {
		c.settled = true
		return nil
	}
	batch := c.deferred
	c.deferred = nil
	return batch
}

// Fail records the error that ended the cycle's compile.
func (c *Cycle) Fail(err error) {
	c.mu.Lock()
	if c.failure == nil {
		c.failure = err
	}
	c.mu.Unlock()
}

// Failure returns the recorded compile failure, if any.
func (c *Cycle) Failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// RecordOutcome counts a settled request.
func (c *Cycle) RecordOutcome(rejected bool) {
	c.mu.Lock()
	if rejected {
		c.rejected++
	} else {
		c.resolved++
	}
	c.mu.Unlock()
}

// Outcomes returns how many requests resolved and rejected in this cycle.
func (c *Cycle) Outcomes() (resolved, rejected int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved, c.rejected
}

// Settled reports whether the cycle's queue has been fully drained.
func (c *Cycle) Settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// AddBundleModule records a module for the cycle's bundle, once.
func (c *Cycle) AddBundleModule(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" || slices.Contains(c.bundleModules, name) {
		return
	}
	c.bundleModules = append(c.bundleModules, name)
}

// BundleModules returns the recorded bundle modules in admission order.
func (c *Cycle) BundleModules() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.bundleModules)
}

// EmitWarning records a non-empty warning when warnings are enabled.
func (c *Cycle) EmitWarning(msg string) {
	if msg == "" || !c.warningsEnabled {
		return
	}
	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	c.mu.Unlock()
}

// EmitError records a non-empty error.
func (c *Cycle) EmitError(msg string) {
	if msg == "" {
		return
	}
	c.mu.Lock()
	c.errors = append(c.errors, msg)
	c.mu.Unlock()
}

// DrainDiagnostics returns and clears the recorded warnings and errors.
func (c *Cycle) DrainDiagnostics() (warnings, errs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	warnings, errs = c.warnings, c.errors
	c.warnings, c.errors = nil, nil
	return warnings, errs
}

// ResolvedSources returns the cached source globs, or nil.
func (c *Cycle) ResolvedSources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.resolvedSources)
}

// SetResolvedSources caches the source globs for the cycle.
func (c *Cycle) SetResolvedSources(globs []string) {
	c.mu.Lock()
	c.resolvedSources = slices.Clone(globs)
	c.mu.Unlock()
}

// BuildState is created once per process. Reset swaps in a new Cycle while
// keeping the hooks flag; the IDE server handle lives in ide.Session and is
// untouched by Reset.
type BuildState struct {
	mu             sync.Mutex
	cycle          *Cycle
	hooksInstalled bool
	ideEnabled     bool
	warnings       bool
}

// New creates the build state. The first cycle is always batch: the IDE
// server needs compiled output before it can load modules. Every cycle after
// a Reset is incremental when ideEnabled is set.
func New(ideEnabled, warnings bool) *BuildState {
	return &BuildState{
		cycle:      newCycle(false, warnings),
		ideEnabled: ideEnabled,
		warnings:   warnings,
	}
}

// Current returns the active cycle.
func (s *BuildState) Current() *Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// Reset starts a new generation and returns it.
func (s *BuildState) Reset() *Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle = newCycle(s.ideEnabled, s.warnings)
	return s.cycle
}

// MarkHooksInstalled sets the hooks flag and reports whether this call set it.
func (s *BuildState) MarkHooksInstalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooksInstalled {
		return false
	}
	s.hooksInstalled = true
	return true
}

// HooksInstalled reports whether the host hooks have been attached.
func (s *BuildState) HooksInstalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hooksInstalled
}
