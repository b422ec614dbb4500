package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/host"
	"git.home.luguber.info/inful/pursloader/internal/loader"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/metrics"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Paths    []string      `arg:"" optional:"" type:"path" help:"Source directories to watch (default: src)"`
	Metrics  string        `name:"metrics-listen" help:"Serve Prometheus metrics on this address (overrides metrics.listen)"`
	Debounce time.Duration `help:"Quiet period before a change triggers a rebuild" default:"200ms"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if w.Metrics != "" {
		cfg.Metrics.Listen = w.Metrics
	}
	cfg.Watch = true
	cfg.IDE.Enabled = true

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, cfg, w.Paths, w.Debounce)
}

// RunWatch builds once, then rebuilds changed modules until ctx is done.
func RunWatch(ctx context.Context, cfg *config.Config, paths []string, debounce time.Duration) error {
	slog.Info("Starting watch mode", "config_context", cfg.Context)

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Listen != "" {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("Serving metrics", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(stopCtx)
		}()
	}

	journal, closer, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	notifier, err := openNotifier(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = notifier.Close() }()

	l, err := loader.New(ctx, cfg,
		loader.WithRecorder(recorder),
		loader.WithJournal(journal),
		loader.WithNotifier(notifier),
	)
	if err != nil {
		return err
	}
	defer l.Close()
	h := host.New()
	l.InstallHooksOnce(h)

	files, err := sourceFiles(cfg, paths)
	if err != nil {
		return err
	}
	report, err := host.RunCycle(ctx, l, h, files)
	if err != nil {
		return err
	}
	printReport(os.Stdout, os.Stderr, report)

	cycles := make(chan []string, 1)
	watcher, err := host.NewWatcher(sourceRoots(cfg, paths), debounce, func(ctx context.Context, changed []string) {
		select {
		case cycles <- changed:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	if interval := cfg.KeepaliveDuration(); interval > 0 {
		keepalive, err := host.NewKeepalive(ctx, l, interval)
		if err != nil {
			return err
		}
		keepalive.Start()
		defer func() { _ = keepalive.Stop() }()
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received, stopping watch mode")
			return nil
		case changed := <-cycles:
			slog.Info("Rebuilding changed modules", "files", len(changed))
			h.Invalidate()
			report, err := host.RunCycle(ctx, l, h, changed)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Build cycle failed", logfields.Error(err))
				continue
			}
			printReport(os.Stdout, os.Stderr, report)
		}
	}
}

func metricsMux(reg *prom.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	return mux
}
