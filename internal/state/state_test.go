package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pursloader/internal/artifact"
)

func TestRequestSettlesOnce(t *testing.T) {
	r := NewRequest("Main", "src/Main.purs", "module Main where")
	assert.False(t, r.Settled())

	var wg sync.WaitGroup
	wins := make(chan bool, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				wins <- r.Resolve(artifact.Artifact{Code: "x"})
			} else {
				wins <- r.Reject(errors.New("boom"))
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for w := range wins {
		if w {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one settle takes effect")
	assert.True(t, r.Settled())
}

func TestRequestWait(t *testing.T) {
	r := NewRequest("Main", "src/Main.purs", "")
	go r.Resolve(artifact.Artifact{Code: "ok"})

	a, err := r.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ok", a.Code)
	assert.Equal(t, "src/Main.purs", r.Target().Identity)
}

func TestRequestWaitCanceled(t *testing.T) {
	r := NewRequest("Main", "", "")
	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond)
	defer cancel()
	_, err := r.Wait(ctx)
	require.Error(t, err)
	assert.False(t, r.Settled())
}

func TestAdmitStartsCompileOnce(t *testing.T) {
	c := New(false, true).Current()
	a, b := NewRequest("A", "", ""), NewRequest("B", "", "")

	assert.Equal(t, ActionStartCompile, c.Admit(a))
	assert.Equal(t, ActionWait, c.Admit(b))
	assert.True(t, c.CompileStarted())
	assert.Equal(t, 2, c.QueueDepth())

	batch := c.DrainOrSettle()
	assert.Equal(t, []*Request{a, b}, batch, "FIFO order")
	assert.False(t, c.Settled())

	late := NewRequest("C", "", "")
	assert.Equal(t, ActionWait, c.Admit(late), "arrival during replay joins the queue")
	assert.Equal(t, []*Request{late}, c.DrainOrSettle())

	assert.Nil(t, c.DrainOrSettle())
	assert.True(t, c.Settled())
	assert.Equal(t, ActionServeDirect, c.Admit(NewRequest("D", "", "")))
}

func TestResetKeepsHooksAndReplacesCycle(t *testing.T) {
	s := New(true, true)
	first := s.Current()
	assert.False(t, first.Incremental(), "first cycle is batch")
	assert.True(t, s.MarkHooksInstalled())
	assert.False(t, s.MarkHooksInstalled())

	first.Admit(NewRequest("A", "", ""))
	first.AddBundleModule("A")
	first.EmitWarning("w")
	first.SetResolvedSources([]string{"src/**/*.purs"})

	next := s.Reset()
	assert.Same(t, next, s.Current())
	assert.NotEqual(t, first.Generation(), next.Generation())
	assert.True(t, next.Incremental())
	assert.True(t, s.HooksInstalled())
	assert.Zero(t, next.QueueDepth())
	assert.Empty(t, next.BundleModules())
	assert.Nil(t, next.ResolvedSources())
	assert.False(t, next.CompileStarted())

	w, _ := next.DrainDiagnostics()
	assert.Empty(t, w)
	assert.Equal(t, 1, first.QueueDepth(), "old cycle is untouched")
}

func TestDiagnostics(t *testing.T) {
	c := New(false, true).Current()
	c.EmitWarning("")
	c.EmitWarning("w1")
	c.EmitError("")
	c.EmitError("e1")

	w, e := c.DrainDiagnostics()
	assert.Equal(t, []string{"w1"}, w)
	assert.Equal(t, []string{"e1"}, e)

	w, e = c.DrainDiagnostics()
	assert.Empty(t, w)
	assert.Empty(t, e)

	quiet := New(false, false).Current()
	quiet.EmitWarning("w")
	w, _ = quiet.DrainDiagnostics()
	assert.Empty(t, w)
}

func TestBundleModulesDeduplicated(t *testing.T) {
	c := New(false, true).Current()
	c.AddBundleModule("Foo")
	c.AddBundleModule("Bar")
	c.AddBundleModule("Foo")
	c.AddBundleModule("")
	assert.Equal(t, []string{"Foo", "Bar"}, c.BundleModules())
}

func TestFailedCycleRejectsLateAdmissions(t *testing.T) {
	c := New(false, true).Current()
	require.Equal(t, ActionStartCompile, c.Admit(NewRequest("A", "", "")))

	boom := errors.New("boom")
	c.Fail(boom)
	c.Fail(errors.New("second failure is ignored"))
	assert.Len(t, c.DrainOrSettle(), 1)
	assert.Nil(t, c.DrainOrSettle())

	assert.Equal(t, ActionReject, c.Admit(NewRequest("B", "", "")))
	assert.Equal(t, boom, c.Failure())
}

func TestOutcomes(t *testing.T) {
	c := New(false, true).Current()
	c.RecordOutcome(false)
	c.RecordOutcome(false)
	c.RecordOutcome(true)
	resolved, rejected := c.Outcomes()
	assert.Equal(t, 2, resolved)
	assert.Equal(t, 1, rejected)
}
