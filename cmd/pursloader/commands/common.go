package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/eventstore"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/modulemap"
	"git.home.luguber.info/inful/pursloader/internal/notify"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (.yaml or .toml)" default:"pursloader.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Compile every module once and report the results"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild changed modules through the IDE server"`
	Modules ModulesCmd `cmd:"" help:"List modules and their imports"`
	History HistoryCmd `cmd:"" help:"Show recorded build cycles"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honours --verbose first, then PURSLOADER_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("PURSLOADER_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig reads the configuration file when it exists and falls back to defaults.
func loadConfig(root *CLI) (*config.Config, error) {
	return config.LoadOrDefault(root.Config)
}

// openJournal opens the history store when configured. The returned closer is never nil.
func openJournal(cfg *config.Config) (eventstore.Journal, io.Closer, error) {
	if cfg.History.Path == "" {
		return eventstore.NopJournal{}, nopCloser{}, nil
	}
	if cfg.History.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
			return nil, nil, errors.WrapError(err, errors.CategoryEventStore, "create history directory").Build()
		}
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return nil, nil, err
	}
	return eventstore.NewStoreJournal(store), store, nil
}

// openNotifier connects to NATS when configured.
func openNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Notify.NATSURL == "" {
		return notify.Nop{}, nil
	}
	return notify.Connect(cfg.Notify.NATSURL, cfg.Notify.Subject)
}

// sourceFiles returns the .purs files under paths, ordered by module name.
// With no paths the src directory of the project is scanned.
func sourceFiles(cfg *config.Config, paths []string) ([]string, error) {
	roots := sourceRoots(cfg, paths)
	entries, err := modulemap.Scan(roots...)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "scan sources").Build()
	}
	files := make([]string, 0, len(entries))
	for _, name := range modulemap.Names(entries) {
		files = append(files, entries[name].Src)
	}
	return files, nil
}

func sourceRoots(cfg *config.Config, paths []string) []string {
	if len(paths) > 0 {
		return paths
	}
	return []string{joinContext(cfg, "src")}
}

func joinContext(cfg *config.Config, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.Context, p)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
