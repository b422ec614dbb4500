package host

import (
	"context"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/pursloader/internal/artifact"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/loader"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/state"
)

// Admitter accepts module requests. *loader.Loader implements it.
type Admitter interface {
	Admit(r *state.Request)
}

// Outcome is the settled result of one source file.
type Outcome struct {
	Module   string
	Path     string
	Artifact artifact.Artifact
	Err      error
}

// Report is the result of one build cycle.
type Report struct {
	Outcomes    []Outcome
	Diagnostics loader.Diagnostics
}

// Failed counts rejected requests.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// FirstError returns the first rejection in admission order, or nil.
func (r Report) FirstError() error {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// RunCycle admits every path, waits for all of them to settle and then runs
// the host's after-compile chain.
func RunCycle(ctx context.Context, a Admitter, h *Host, paths []string) (Report, error) {
	requests := make([]*state.Request, 0, len(paths))
	report := Report{Outcomes: make([]Outcome, len(paths))}
	for i, p := range paths {
		report.Outcomes[i].Path = p
		src, err := os.ReadFile(p)
		if err != nil {
			report.Outcomes[i].Err = errors.WrapError(err, errors.CategoryFileSystem, "read source").
				WithContext("path", p).
				Build()
			requests = append(requests, nil)
			continue
		}
		r := state.NewRequest("", p, string(src))
		a.Admit(r)
		requests = append(requests, r)
	}

	for i, r := range requests {
		if r == nil {
			continue
		}
		art, err := r.Wait(ctx)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Outcomes[i].Module = r.ModuleName
		report.Outcomes[i].Artifact = art
		report.Outcomes[i].Err = err
		if err != nil {
			slog.Debug("Module failed", logfields.Module(r.ModuleName), logfields.Path(r.SourcePath), logfields.Error(err))
		}
	}

	d, err := h.Complete(ctx)
	report.Diagnostics = d
	return report, err
}
