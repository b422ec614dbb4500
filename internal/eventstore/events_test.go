package eventstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
)

func TestJournalRoundTrip(t *testing.T) {
	store := newStore(t)
	j := NewStoreJournal(store)
	ctx := t.Context()

	j.Record(ctx, testGeneration, CycleStarted{Mode: "batch"})
	j.Record(ctx, testGeneration, ModuleSettled{Module: "Main", Mode: "batch", Rejected: true, Error: "boom"})

	events, err := store.GetByGeneration(ctx, testGeneration)
	require.NoError(t, err)
	require.Len(t, events, 2)

	p, err := Decode(events[1])
	require.NoError(t, err)
	assert.Equal(t, &ModuleSettled{Module: "Main", Mode: "batch", Rejected: true, Error: "boom"}, p)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode(&BaseEvent{EventType: "Mystery"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryEventStore, errors.GetCategory(err))
}

func TestDecodeCorruptPayload(t *testing.T) {
	_, err := Decode(&BaseEvent{EventType: TypeCycleStarted, EventPayload: []byte{0xc1}})
	require.Error(t, err)
}

func TestCycleHistoryProjection(t *testing.T) {
	store := newStore(t)
	j := NewStoreJournal(store)
	ctx := t.Context()

	j.Record(ctx, "g1", CycleStarted{Mode: "batch"})
	j.Record(ctx, "g1", CompileFinished{DurationMS: 120})
	j.Record(ctx, "g1", ModuleSettled{Module: "A", Mode: "batch"})
	j.Record(ctx, "g1", ModuleSettled{Module: "B", Mode: "batch"})
	j.Record(ctx, "g1", BundleFinished{Modules: []string{"A", "B"}})
	j.Record(ctx, "g1", CycleSettled{Resolved: 2, Warnings: 1})

	j.Record(ctx, "g2", CycleStarted{Mode: "incremental"})
	j.Record(ctx, "g2", UnknownModuleDetected{Module: "C"})
	j.Record(ctx, "g2", CompileFinished{DurationMS: 80, Failed: true, Error: "Error: X"})
	j.Record(ctx, "g2", ModuleSettled{Module: "C", Mode: "incremental", Rejected: true, Error: "Error: X"})

	p := NewCycleHistoryProjection(store, 10)
	require.NoError(t, p.Rebuild(ctx))

	g1, ok := p.GetCycle("g1")
	require.True(t, ok)
	assert.Equal(t, "settled", g1.Status)
	assert.Equal(t, 2, g1.Resolved)
	assert.Equal(t, int64(120), g1.CompileMS)
	assert.Equal(t, []string{"A", "B"}, g1.Bundled)
	assert.Equal(t, 1, g1.Warnings)
	require.NotNil(t, g1.CompletedAt)

	g2, ok := p.GetCycle("g2")
	require.True(t, ok)
	assert.Equal(t, "failed", g2.Status)
	assert.Equal(t, "incremental", g2.Mode)
	assert.Equal(t, 1, g2.Recoveries)
	assert.Equal(t, 1, g2.Rejected)
	assert.Equal(t, "Error: X", g2.LastError)

	assert.Len(t, p.GetHistory(), 2)
	_, ok = p.GetCycle("missing")
	assert.False(t, ok)
}
