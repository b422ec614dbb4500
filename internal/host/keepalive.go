package host

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
)

// Prober restarts the IDE server when it is no longer running.
// *loader.Loader implements it.
type Prober interface {
	EnsureServer(ctx context.Context) error
}

// Keepalive periodically probes the IDE server so a crashed server is
// replaced before the next rebuild needs it.
type Keepalive struct {
	scheduler gocron.Scheduler
	prober    Prober
	interval  time.Duration
}

// NewKeepalive schedules a probe every interval.
func NewKeepalive(ctx context.Context, prober Prober, interval time.Duration) (*Keepalive, error) {
	if interval <= 0 {
		return nil, errors.ValidationError("keepalive interval must be > 0").Build()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to create scheduler").Build()
	}
	k := &Keepalive{scheduler: s, prober: prober, interval: interval}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(k.Probe, ctx),
		gocron.WithName("ide-keepalive"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to schedule keepalive").Build()
	}
	return k, nil
}

// Start begins probing.
func (k *Keepalive) Start() {
	slog.Info("Starting ide keepalive", "interval", k.interval.String())
	k.scheduler.Start()
}

// Stop shuts the scheduler down.
func (k *Keepalive) Stop() error {
	return k.scheduler.Shutdown()
}

// Probe runs one liveness check.
func (k *Keepalive) Probe(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := k.prober.EnsureServer(ctx); err != nil {
		slog.Warn("ide keepalive failed to restart server", logfields.Error(err))
	}
}
