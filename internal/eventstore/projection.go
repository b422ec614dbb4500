package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	cycleStatusRunning = "running"
	cycleStatusSettled = "settled"
	cycleStatusFailed  = "failed"
)

// CycleSummary is a read model of one build generation.
type CycleSummary struct {
	Generation  string
	Mode        string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	CompileMS   int64
	Resolved    int
	Rejected    int
	Recoveries  int
	Warnings    int
	Errors      int
	Bundled     []string
	LastError   string
}

// CycleHistoryProjection rebuilds generation summaries from stored events.
type CycleHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	cycles  map[string]*CycleSummary
	maxSize int
}

// NewCycleHistoryProjection creates a projection keeping at most maxSize cycles.
func NewCycleHistoryProjection(store Store, maxSize int) *CycleHistoryProjection {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &CycleHistoryProjection{store: store, cycles: make(map[string]*CycleSummary), maxSize: maxSize}
}

// Rebuild reconstructs the projection from every stored event.
func (p *CycleHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles = make(map[string]*CycleSummary)
	for _, e := range events {
		p.applyLocked(e)
	}
	return nil
}

// Apply folds one event into the projection.
func (p *CycleHistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *CycleHistoryProjection) applyLocked(e Event) {
	gen := e.Generation()
	if gen == "" {
		return
	}
	payload, err := Decode(e)
	if err != nil {
		return
	}
	s, ok := p.cycles[gen]
	if !ok {
		s = &CycleSummary{Generation: gen, Status: cycleStatusRunning, StartedAt: e.Timestamp()}
		p.cycles[gen] = s
	}

	switch ev := payload.(type) {
	case *CycleStarted:
		s.Mode = ev.Mode
		s.StartedAt = e.Timestamp()
	case *CompileFinished:
		s.CompileMS += ev.DurationMS
		if ev.Failed {
			s.Status = cycleStatusFailed
			s.LastError = ev.Error
		}
	case *BundleFinished:
		s.Bundled = ev.Modules
		if ev.Failed {
			s.LastError = ev.Error
		}
	case *ModuleSettled:
		if ev.Rejected {
			s.Rejected++
			s.LastError = ev.Error
		} else {
			s.Resolved++
		}
	case *UnknownModuleDetected:
		s.Recoveries++
	case *CycleSettled:
		done := e.Timestamp()
		s.CompletedAt = &done
		s.Duration = done.Sub(s.StartedAt)
		s.Warnings, s.Errors = ev.Warnings, ev.Errors
		if s.Status == cycleStatusRunning {
			s.Status = cycleStatusSettled
		}
	}
}

// GetHistory returns cycles newest first, bounded by the projection size.
func (p *CycleHistoryProjection) GetHistory() []CycleSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]CycleSummary, 0, len(p.cycles))
	for _, s := range p.cycles {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > p.maxSize {
		out = out[:p.maxSize]
	}
	return out
}

// GetCycle returns the summary for one generation.
func (p *CycleHistoryProjection) GetCycle(generation string) (CycleSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.cycles[generation]
	if !ok {
		return CycleSummary{}, false
	}
	return *s, true
}
