package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"git.home.luguber.info/inful/pursloader/internal/eventstore"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Generation string `short:"g" help:"Show the events of one generation"`
	Limit      int    `short:"n" help:"Maximum number of cycles to list" default:"20"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errors.ConfigError("history.path is not configured").Build()
	}
	if _, err := os.Stat(cfg.History.Path); err != nil {
		return errors.WrapError(err, errors.CategoryEventStore, "no build history recorded").
			WithContext("path", cfg.History.Path).
			Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.Generation != "" {
		return printGeneration(ctx, os.Stdout, store, h.Generation)
	}
	projection := eventstore.NewCycleHistoryProjection(store, h.Limit)
	if err := projection.Rebuild(ctx); err != nil {
		return err
	}
	printHistory(os.Stdout, projection.GetHistory(), time.Now())
	return nil
}

func printHistory(w io.Writer, cycles []eventstore.CycleSummary, now time.Time) {
	if len(cycles) == 0 {
		_, _ = fmt.Fprintln(w, "no build cycles recorded")
		return
	}
	for _, c := range cycles {
		line := fmt.Sprintf("%s  %-11s %-8s %s  resolved=%d rejected=%d warnings=%d errors=%d",
			c.Generation, c.Mode, c.Status, humanize.RelTime(c.StartedAt, now, "ago", "from now"),
			c.Resolved, c.Rejected, c.Warnings, c.Errors)
		if c.CompileMS > 0 {
			line += fmt.Sprintf(" compile=%dms", c.CompileMS)
		}
		if c.Recoveries > 0 {
			line += fmt.Sprintf(" recoveries=%d", c.Recoveries)
		}
		_, _ = fmt.Fprintln(w, line)
		if c.LastError != "" {
			first, _, _ := strings.Cut(c.LastError, "\n")
			_, _ = fmt.Fprintln(w, "    last error: "+first)
		}
	}
}

func printGeneration(ctx context.Context, w io.Writer, store eventstore.Store, generation string) error {
	events, err := store.GetByGeneration(ctx, generation)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return errors.ValidationError("unknown generation " + generation).Build()
	}
	for _, e := range events {
		payload, err := eventstore.Decode(e)
		if err != nil {
			_, _ = fmt.Fprintf(w, "%s  %s  (undecodable: %v)\n", e.Timestamp().Format(time.RFC3339), e.Type(), err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s  %-22s %+v\n", e.Timestamp().Format(time.RFC3339), e.Type(), payload)
	}
	return nil
}
