package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/host"
	"git.home.luguber.info/inful/pursloader/internal/loader"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Paths  []string `arg:"" optional:"" type:"path" help:"Source files or directories (default: src)"`
	Bundle bool     `help:"Bundle the compiled modules after the build"`
	Output string   `short:"o" help:"Override the compiler output directory"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if b.Bundle {
		cfg.Bundle.Enabled = true
	}
	if b.Output != "" {
		cfg.Output = b.Output
	}
	// A single build has no later cycle for the IDE server to serve.
	cfg.IDE.Enabled = false
	return RunBuild(context.Background(), cfg, b.Paths, os.Stdout)
}

// RunBuild compiles every module under paths once and prints the outcome.
func RunBuild(ctx context.Context, cfg *config.Config, paths []string, out io.Writer) error {
	files, err := sourceFiles(cfg, paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.ValidationError("no PureScript modules found").WithContext("paths", sourceRoots(cfg, paths)).Build()
	}

	journal, closer, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	l, err := loader.New(ctx, cfg, loader.WithJournal(journal))
	if err != nil {
		return err
	}
	defer l.Close()
	h := host.New()
	l.InstallHooksOnce(h)

	slog.Info("Starting build", "modules", len(files), "output", l.Output())
	start := time.Now()
	report, err := host.RunCycle(ctx, l, h, files)
	if err != nil {
		return err
	}
	printReport(out, os.Stderr, report)
	slog.Info("Build finished", "modules", len(files), "failed", report.Failed(), "duration", time.Since(start).Round(time.Millisecond).String())
	return report.FirstError()
}

// printReport writes one line per module to out and the drained diagnostics to diag.
func printReport(out, diag io.Writer, report host.Report) {
	okMark, failMark := color.GreenString("ok"), color.RedString("failed")
	for _, o := range report.Outcomes {
		name := o.Module
		if name == "" {
			name = o.Path
		}
		if o.Err != nil {
			_, _ = fmt.Fprintf(out, "%-6s %s\n", failMark, name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%-6s %s\n", okMark, name)
	}
	for _, w := range report.Diagnostics.Warnings {
		_, _ = fmt.Fprintln(diag, color.YellowString("warning:"), w)
	}
	for _, e := range report.Diagnostics.Errors {
		_, _ = fmt.Fprintln(diag, color.RedString("error:"), e)
	}
}
