package loader

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pursloader/internal/artifact"
	"git.home.luguber.info/inful/pursloader/internal/config"
	"git.home.luguber.info/inful/pursloader/internal/eventstore"
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/ide"
	"git.home.luguber.info/inful/pursloader/internal/notify"
	"git.home.luguber.info/inful/pursloader/internal/process"
	"git.home.luguber.info/inful/pursloader/internal/process/processtest"
	"git.home.luguber.info/inful/pursloader/internal/retry"
	"git.home.luguber.info/inful/pursloader/internal/state"
)

// toolchain scripts purs compile, purs bundle and purs ide client against a
// temporary project directory.
type toolchain struct {
	root    string
	modules []string

	mu            sync.Mutex
	compileStderr string
	compileCode   int
	bundleStderr  string
	gate          chan struct{}
	loadErr       error
	rebuild       func(file string) string
}

func newToolchain(t *testing.T, modules ...string) *toolchain {
	t.Helper()
	return &toolchain{root: t.TempDir(), modules: modules}
}

func (tc *toolchain) executor() *processtest.Executor {
	return &processtest.Executor{OnRun: func(ctx context.Context, call processtest.Call, stdout, stderr io.Writer) error {
		switch {
		case call.Args[0] == "compile":
			return tc.compile(ctx, stderr)
		case call.Args[0] == "bundle":
			tc.mu.Lock()
			msg := tc.bundleStderr
			tc.mu.Unlock()
			if msg != "" {
				_, _ = io.WriteString(stderr, msg)
				return &process.ExitError{Code: 1}
			}
			return nil
		case call.Args[0] == "ide" && call.Args[1] == "client":
			return tc.ideClient(call, stdout)
		}
		return &process.ExitError{Code: 127}
	}}
}

func (tc *toolchain) compile(ctx context.Context, stderr io.Writer) error {
	tc.mu.Lock()
	gate, code, msg := tc.gate, tc.compileCode, tc.compileStderr
	tc.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, m := range tc.modules {
		tc.writeArtifact(m)
	}
	_, _ = io.WriteString(stderr, msg)
	if code != 0 {
		return &process.ExitError{Code: code}
	}
	return nil
}

func (tc *toolchain) ideClient(call processtest.Call, stdout io.Writer) error {
	var req ide.Request
	if err := json.Unmarshal([]byte(call.Stdin), &req); err != nil {
		return err
	}
	tc.mu.Lock()
	loadErr, rebuild := tc.loadErr, tc.rebuild
	tc.mu.Unlock()
	if req.Command == "load" {
		if loadErr != nil {
			return loadErr
		}
		_, _ = io.WriteString(stdout, `{"resultType":"success","result":"Loaded"}`)
		return nil
	}
	file, _ := req.Params["file"].(string)
	_, _ = io.WriteString(stdout, rebuild(file))
	return nil
}

func (tc *toolchain) writeArtifact(module string) {
	dir := filepath.Join(tc.root, "output", module)
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "index.js"), []byte("// "+module+"\n"), 0o644)
}

func (tc *toolchain) config() *config.Config {
	cfg := config.Default()
	cfg.Context = tc.root
	cfg.Src = []string{"src/**/*.purs"}
	return cfg
}

type recordingJournal struct {
	mu       sync.Mutex
	payloads []eventstore.Payload
}

func (j *recordingJournal) Record(_ context.Context, _ string, p eventstore.Payload) {
	j.mu.Lock()
	j.payloads = append(j.payloads, p)
	j.mu.Unlock()
}

func (j *recordingJournal) ofType(name string) []eventstore.Payload {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []eventstore.Payload
	for _, p := range j.payloads {
		if p.EventType() == name {
			out = append(out, p)
		}
	}
	return out
}

func newLoader(t *testing.T, cfg *config.Config, exec process.Executor, opts ...Option) *Loader {
	t.Helper()
	policy := retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 8)
	opts = append([]Option{WithExecutor(exec), WithLoadPolicy(policy)}, opts...)
	l, err := New(t.Context(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func request(module string) *state.Request {
	return state.NewRequest(module, filepath.Join("src", module+".purs"), "module "+module+" where")
}

func wait(t *testing.T, r *state.Request) (artifact.Artifact, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	a, err := r.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "request %s never settled", r.ModuleName)
	return a, err
}

func diagnostics(t *testing.T, l *Loader) Diagnostics {
	t.Helper()
	var d Diagnostics
	called := false
	l.afterCompile(t.Context(), &d, func() { called = true })
	require.True(t, called)
	return d
}

func TestBatchAdmissionsShareOneCompile(t *testing.T) {
	tc := newToolchain(t, "Foo", "Bar")
	tc.gate = make(chan struct{})
	cfg := tc.config()
	cfg.Bundle.Enabled = true
	exec := tc.executor()
	l := newLoader(t, cfg, exec)

	foo, bar := request("Foo"), request("Bar")
	l.Admit(foo)
	l.Admit(bar)
	close(tc.gate)

	a, err := wait(t, foo)
	require.NoError(t, err)
	assert.Equal(t, "// Foo\n", a.Code)
	a, err = wait(t, bar)
	require.NoError(t, err)
	assert.Equal(t, "// Bar\n", a.Code)

	l.Close()
	assert.Len(t, exec.CallsTo("compile"), 1)
	bundles := exec.CallsTo("bundle")
	require.Len(t, bundles, 1)
	args := bundles[0].Args
	assert.Equal(t, []string{"--module", "Foo", "--module", "Bar"}, args[len(args)-4:])

	bundle, err := os.ReadFile(filepath.Join(tc.root, cfg.Bundle.Output))
	require.NoError(t, err)
	assert.Equal(t, "module.exports = PS", string(bundle))
}

func TestBundleFailureIsDrainedAsError(t *testing.T) {
	tc := newToolchain(t, "Foo")
	tc.bundleStderr = "bundle boom"
	cfg := tc.config()
	cfg.Bundle.Enabled = true
	l := newLoader(t, cfg, tc.executor())

	foo := request("Foo")
	l.Admit(foo)
	_, err := wait(t, foo)
	require.NoError(t, err, "requests resolve before bundling")

	d := diagnostics(t, l)
	require.Len(t, d.Errors, 1)
	assert.Contains(t, d.Errors[0], "bundle boom")
}

func TestBatchCompileFailureRejectsSiblings(t *testing.T) {
	tc := newToolchain(t)
	tc.gate = make(chan struct{})
	tc.compileCode, tc.compileStderr = 1, "Error: X"
	journal := &recordingJournal{}
	l := newLoader(t, tc.config(), tc.executor(), WithJournal(journal))

	foo, bar := request("Foo"), request("Bar")
	l.Admit(foo)
	l.Admit(bar)
	close(tc.gate)

	_, err := wait(t, foo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error: X")
	assert.NotErrorIs(t, err, errors.ErrPriorStepFailed)

	_, err = wait(t, bar)
	require.ErrorIs(t, err, errors.ErrPriorStepFailed)

	// Arrivals after the failed compile share its failure.
	baz := request("Baz")
	l.Admit(baz)
	_, err = wait(t, baz)
	require.ErrorIs(t, err, errors.ErrPriorStepFailed)

	d := diagnostics(t, l)
	assert.Equal(t, []string{"Error: X"}, d.Errors)

	finished := journal.ofType(eventstore.TypeCompileFinished)
	require.Len(t, finished, 1)
	assert.True(t, finished[0].(eventstore.CompileFinished).Failed)
}

func TestWatchModeServesAfterFailedCompile(t *testing.T) {
	tc := newToolchain(t, "Foo")
	tc.compileCode, tc.compileStderr = 1, "Error: X"
	cfg := tc.config()
	cfg.Watch = true
	l := newLoader(t, cfg, tc.executor())

	a, err := l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)
	assert.Equal(t, "// Foo\n", a.Code)
	assert.Equal(t, []string{"Error: X"}, diagnostics(t, l).Errors)
}

func TestSettledGenerationServesDirectly(t *testing.T) {
	tc := newToolchain(t, "Foo", "Bar")
	exec := tc.executor()
	l := newLoader(t, tc.config(), exec)

	_, err := l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)
	a, err := l.Load(t.Context(), request("Bar"))
	require.NoError(t, err)
	assert.Equal(t, "// Bar\n", a.Code)
	assert.Len(t, exec.CallsTo("compile"), 1)

	// A new generation compiles again.
	l.Invalidate()
	_, err = l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)
	assert.Len(t, exec.CallsTo("compile"), 2)
}

func TestModuleNameFromSource(t *testing.T) {
	tc := newToolchain(t, "Data.Thing")
	l := newLoader(t, tc.config(), tc.executor())

	r := state.NewRequest("", "src/Data/Thing.purs", "-- header\nmodule Data.Thing where\n")
	a, err := l.Load(t.Context(), r)
	require.NoError(t, err)
	assert.Equal(t, "Data.Thing", r.ModuleName)
	assert.Equal(t, "// Data.Thing\n", a.Code)

	_, err = l.Load(t.Context(), state.NewRequest("", "src/Empty.purs", "-- nothing here"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestMissingArtifactRejectsOnlyThatRequest(t *testing.T) {
	tc := newToolchain(t, "Foo")
	tc.gate = make(chan struct{})
	l := newLoader(t, tc.config(), tc.executor())

	foo, ghost := request("Foo"), request("Ghost")
	l.Admit(foo)
	l.Admit(ghost)
	close(tc.gate)

	_, err := wait(t, foo)
	require.NoError(t, err)
	_, err = wait(t, ghost)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
}

func successResponse(items string) string {
	return `{"resultType":"success","result":` + items + `}`
}

func errorResponse(items string) string {
	return `{"resultType":"error","result":` + items + `}`
}

// incremental returns a loader whose current generation rebuilds through the
// IDE server.
func incremental(t *testing.T, tc *toolchain, exec process.Executor, opts ...Option) *Loader {
	t.Helper()
	cfg := tc.config()
	cfg.IDE.Enabled = true
	l := newLoader(t, cfg, exec, opts...)
	l.Invalidate()
	require.True(t, l.State().Current().Incremental())
	return l
}

func TestIncrementalRebuildSuccess(t *testing.T) {
	tc := newToolchain(t)
	tc.writeArtifact("Foo")
	tc.rebuild = func(string) string {
		return successResponse(`[{"errorCode":"UnusedImport","message":"The import of Data.Maybe is redundant"}]`)
	}
	exec := tc.executor()
	l := incremental(t, tc, exec)

	a, err := l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)
	assert.Equal(t, "// Foo\n", a.Code)

	_, err = l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)

	assert.Empty(t, exec.CallsTo("compile"))
	assert.Len(t, exec.Started(), 1, "one server for both rebuilds")

	d := diagnostics(t, l)
	require.Len(t, d.Warnings, 2)
	assert.Contains(t, d.Warnings[0], "UnusedImport")
	assert.Empty(t, d.Errors)
}

func TestIncrementalUnknownModuleRecovers(t *testing.T) {
	tc := newToolchain(t, "Foo")
	tc.rebuild = func(string) string {
		return errorResponse(`[{"errorCode":"ModuleNotFound","message":"Module Foo was not found"}]`)
	}
	exec := tc.executor()
	journal := &recordingJournal{}
	l := incremental(t, tc, exec, WithJournal(journal))

	a, err := l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)
	assert.Equal(t, "// Foo\n", a.Code)

	assert.Len(t, exec.CallsTo("compile"), 1)
	var loads int
	for _, c := range exec.CallsTo("ide") {
		if strings.Contains(c.Stdin, `"load"`) {
			loads++
		}
	}
	assert.Equal(t, 2, loads, "initial load and reload after the compile")
	assert.Len(t, journal.ofType(eventstore.TypeUnknownModuleDetected), 1)
	assert.Empty(t, diagnostics(t, l).Errors)
}

func TestIncrementalRebuildFailure(t *testing.T) {
	response := func(string) string {
		return errorResponse(`[{"errorCode":"TypesDoNotUnify","message":"Could not match type Int with type String"}]`)
	}

	t.Run("lenient", func(t *testing.T) {
		tc := newToolchain(t)
		tc.writeArtifact("Foo")
		tc.rebuild = response
		l := incremental(t, tc, tc.executor())

		_, err := l.Load(t.Context(), request("Foo"))
		require.NoError(t, err)
		d := diagnostics(t, l)
		require.Len(t, d.Errors, 1)
		assert.Contains(t, d.Errors[0], "Could not match type Int with type String")
	})

	t.Run("strict", func(t *testing.T) {
		tc := newToolchain(t)
		tc.writeArtifact("Foo")
		tc.rebuild = response
		cfg := tc.config()
		cfg.IDE.Enabled = true
		cfg.StrictRebuild = true
		l := newLoader(t, cfg, tc.executor())
		l.Invalidate()

		_, err := l.Load(t.Context(), request("Foo"))
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryRebuild))
		assert.Len(t, diagnostics(t, l).Errors, 1)
	})
}

func TestIncrementalConnectFailureStartsFreshServer(t *testing.T) {
	tc := newToolchain(t)
	tc.writeArtifact("Foo")
	tc.loadErr = &process.ExitError{Code: 1}
	tc.rebuild = func(string) string { return successResponse(`[]`) }
	exec := tc.executor()
	l := incremental(t, tc, exec)

	_, err := l.Load(t.Context(), request("Foo"))
	require.Error(t, err)
	require.Len(t, exec.Started(), 1)
	assert.True(t, exec.Started()[0].Killed())
	assert.Equal(t, ide.Disconnected, l.Session().State())

	tc.mu.Lock()
	tc.loadErr = nil
	tc.mu.Unlock()

	_, err = l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)
	assert.Len(t, exec.Started(), 2)
	assert.Equal(t, ide.Ready, l.Session().State())
}

func TestEnsureServerReconnectsAfterExit(t *testing.T) {
	tc := newToolchain(t)
	tc.writeArtifact("Foo")
	tc.rebuild = func(string) string { return successResponse(`[]`) }
	exec := tc.executor()
	l := incremental(t, tc, exec)

	require.NoError(t, l.EnsureServer(t.Context()), "no session yet")
	assert.Empty(t, exec.Started())

	_, err := l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)
	exec.Started()[0].Exit(&process.ExitError{Code: 2})
	require.Eventually(t, func() bool { return !l.Session().Alive() }, time.Second, 5*time.Millisecond)

	require.NoError(t, l.EnsureServer(t.Context()))
	assert.Len(t, exec.Started(), 2)
	assert.True(t, l.Session().Alive())
}

type fakeHooks struct {
	invalid      []func()
	afterCompile []AfterCompileFunc
}

func (h *fakeHooks) OnInvalid(fn func())                { h.invalid = append(h.invalid, fn) }
func (h *fakeHooks) OnAfterCompile(fn AfterCompileFunc) { h.afterCompile = append(h.afterCompile, fn) }

type recordingNotifier struct {
	summaries []notify.Summary
}

func (n *recordingNotifier) Publish(_ context.Context, s notify.Summary) error {
	n.summaries = append(n.summaries, s)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func TestInstallHooksOnce(t *testing.T) {
	tc := newToolchain(t, "Foo")
	tc.compileStderr = "Warning: unused"
	notifier := &recordingNotifier{}
	l := newLoader(t, tc.config(), tc.executor(), WithNotifier(notifier))

	h := &fakeHooks{}
	l.InstallHooksOnce(h)
	l.InstallHooksOnce(h)
	require.Len(t, h.invalid, 1)
	require.Len(t, h.afterCompile, 1)
	assert.True(t, l.State().HooksInstalled())

	_, err := l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)
	generation := l.State().Current().Generation()

	var d Diagnostics
	next := false
	h.afterCompile[0](t.Context(), &d, func() { next = true })
	assert.True(t, next)
	assert.Equal(t, []string{"Warning: unused"}, d.Warnings)

	require.Len(t, notifier.summaries, 1)
	s := notifier.summaries[0]
	assert.Equal(t, generation, s.Generation)
	assert.Equal(t, ModeBatch, s.Mode)
	assert.Equal(t, []string{"Foo"}, s.Modules)
	assert.Equal(t, 1, s.Resolved)

	h.invalid[0]()
	assert.NotEqual(t, generation, l.State().Current().Generation())
	assert.True(t, l.State().HooksInstalled(), "hooks flag survives invalidation")
}

func TestSpagoSourcesAndOutput(t *testing.T) {
	tc := newToolchain(t, "Foo")
	inner := tc.executor()
	exec := &processtest.Executor{OnRun: func(ctx context.Context, call processtest.Call, stdout, stderr io.Writer) error {
		if call.Name == "spago" {
			if call.Args[0] == "path" {
				_, _ = io.WriteString(stdout, "output\n")
			} else {
				_, _ = io.WriteString(stdout, ".spago/prelude/src/**/*.purs\n")
			}
			return nil
		}
		return inner.OnRun(ctx, call, stdout, stderr)
	}}
	cfg := tc.config()
	cfg.PackageManager = config.PackageManagerSpago
	cfg.Src = append([]string(nil), config.DefaultSrc...)
	l := newLoader(t, cfg, exec)

	_, err := l.Load(t.Context(), request("Foo"))
	require.NoError(t, err)

	compiles := exec.CallsTo("compile")
	require.Len(t, compiles, 1)
	args := compiles[0].Args
	assert.Equal(t, []string{".spago/prelude/src/**/*.purs", filepath.Join("src", "**", "*.purs")}, args[len(args)-2:])
	assert.Len(t, exec.CallsTo("path"), 1)
}
