package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/metrics"
)

// DiagnosticSink receives compiler output destined for the host diagnostics hook.
type DiagnosticSink interface {
	EmitWarning(msg string)
	EmitError(msg string)
}

// Compiler runs one batch compile of the whole source set.
type Compiler struct {
	exec     Executor
	recorder metrics.Recorder
	command  string
	prefix   []string
	args     map[string]any
	output   string
	dir      string
	warnings bool
	watch    bool
}

// NewCompiler builds a Compiler writing artifacts into output.
func NewCompiler(cfg *config.Config, exec Executor, output string) *Compiler {
	name, prefix := cfg.CompilerInvocation()
	args := cfg.Compiler.Args
	if cfg.SourceMaps {
		args = MergeFlags(args, map[string]any{"sourceMaps": true})
	}
	return &Compiler{
		exec:     exec,
		recorder: metrics.NoopRecorder{},
		command:  name,
		prefix:   prefix,
		args:     args,
		output:   output,
		dir:      cfg.Context,
		warnings: cfg.Warnings,
		watch:    cfg.Watch,
	}
}

// WithRecorder sets the metrics recorder.
func (c *Compiler) WithRecorder(r metrics.Recorder) *Compiler {
	c.recorder = metrics.Or(r)
	return c
}

// Args returns the full argument list for compiling src.
func (c *Compiler) Args(src []string) []string {
	flags := MergeFlags(map[string]any{Positional: src, "output": c.output}, c.args)
	return append(append([]string(nil), c.prefix...), FormatFlags(flags)...)
}

// Compile runs the compiler over src. Stderr is recorded on sink as a warning
// after a clean exit and as an error after a failed one. A failed compile
// returns a CompilationFailed error unless watch mode is on.
func (c *Compiler) Compile(ctx context.Context, src []string, sink DiagnosticSink) error {
	var stdout, stderr bytes.Buffer
	cmd := Command{Name: c.command, Args: c.Args(src), Dir: c.dir, Stdout: &stdout, Stderr: &stderr}

	slog.Debug("Compiling PureScript", logfields.Command(cmd.Name), logfields.Args(cmd.Args))
	start := time.Now()
	err := c.exec.Run(ctx, cmd)
	elapsed := time.Since(start)
	c.recorder.ObserveStageDuration(metrics.StageCompile, elapsed)

	if stdout.Len() > 0 {
		slog.Debug("compiler stdout", "output", stdout.String())
	}

	errOutput := stderr.String()
	var exitErr *ExitError
	switch {
	case err == nil:
		if c.warnings && errOutput != "" {
			sink.EmitWarning(errOutput)
			c.recorder.IncStageResult(metrics.StageCompile, metrics.ResultWarning)
		} else {
			c.recorder.IncStageResult(metrics.StageCompile, metrics.ResultSuccess)
		}
		slog.Debug("Finished compiling PureScript", logfields.DurationMS(float64(elapsed.Milliseconds())))
		return nil
	case stderrors.As(err, &exitErr):
		if errOutput != "" {
			sink.EmitError(errOutput)
		}
		c.recorder.IncStageResult(metrics.StageCompile, metrics.ResultFailed)
		if c.watch {
			slog.Warn("Compilation failed, continuing in watch mode", logfields.ExitCode(exitErr.Code))
			return nil
		}
		return errors.CompilationFailed(errOutput).WithContext("exit_code", exitErr.Code).Build()
	default:
		c.recorder.IncStageResult(metrics.StageCompile, metrics.ResultFailed)
		if errors.IsClassified(err) {
			return err
		}
		return errors.WrapError(err, errors.CategoryRuntime, "compiler did not complete").Build()
	}
}
