package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
	"git.home.luguber.info/inful/pursloader/internal/metrics"
)

// Bundler concatenates compiled modules into a single file.
type Bundler struct {
	exec      Executor
	recorder  metrics.Recorder
	command   string
	prefix    []string
	args      map[string]any
	output    string
	target    string
	namespace string
	dir       string
}

// NewBundler builds a Bundler reading compiled modules from output.
func NewBundler(cfg *config.Config, exec Executor, output string) *Bundler {
	name, prefix := cfg.BundleInvocation()
	return &Bundler{
		exec:      exec,
		recorder:  metrics.NoopRecorder{},
		command:   name,
		prefix:    prefix,
		args:      cfg.Bundle.Args,
		output:    output,
		target:    cfg.Bundle.Output,
		namespace: cfg.Bundle.Namespace,
		dir:       cfg.Context,
	}
}

// WithRecorder sets the metrics recorder.
func (b *Bundler) WithRecorder(r metrics.Recorder) *Bundler {
	b.recorder = metrics.Or(r)
	return b
}

// Args returns the bundler argument list for the given entry modules.
func (b *Bundler) Args(modules []string) []string {
	flags := MergeFlags(map[string]any{
		Positional:  []string{filepath.Join(b.output, "*", "*.js")},
		"output":    b.target,
		"namespace": b.namespace,
	}, b.args)
	args := append(append([]string(nil), b.prefix...), FormatFlags(flags)...)
	for _, m := range modules {
		args = append(args, "--module", m)
	}
	return args
}

// Bundle runs the bundler and appends the CommonJS export of the namespace
// to the produced file.
func (b *Bundler) Bundle(ctx context.Context, modules []string) error {
	var stdout, stderr bytes.Buffer
	cmd := Command{Name: b.command, Args: b.Args(modules), Dir: b.dir, Stdout: &stdout, Stderr: &stderr}

	slog.Debug("Bundling PureScript", logfields.Command(cmd.Name), logfields.Args(cmd.Args))
	start := time.Now()
	err := b.exec.Run(ctx, cmd)
	b.recorder.ObserveStageDuration(metrics.StageBundle, time.Since(start))

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		b.recorder.IncStageResult(metrics.StageBundle, metrics.ResultFailed)
		return errors.BundleError(stderr.String()).WithContext("exit_code", exitErr.Code).Build()
	}
	if err != nil {
		b.recorder.IncStageResult(metrics.StageBundle, metrics.ResultFailed)
		return err
	}

	target := b.target
	if !filepath.IsAbs(target) && b.dir != "" {
		target = filepath.Join(b.dir, target)
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "open bundle output").WithContext("path", target).Build()
	}
	defer func() { _ = f.Close() }()
	if _, err := fmt.Fprintf(f, "module.exports = %s", b.namespace); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "append bundle export").WithContext("path", target).Build()
	}
	b.recorder.IncStageResult(metrics.StageBundle, metrics.ResultSuccess)
	return nil
}
