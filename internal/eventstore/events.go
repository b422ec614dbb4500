package eventstore

import (
	"context"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
)

// Event type names.
const (
	TypeCycleStarted          = "CycleStarted"
	TypeCompileFinished       = "CompileFinished"
	TypeBundleFinished        = "BundleFinished"
	TypeModuleSettled         = "ModuleSettled"
	TypeUnknownModuleDetected = "UnknownModuleDetected"
	TypeCycleSettled          = "CycleSettled"
)

// Payload is the typed body of an event.
type Payload interface {
	EventType() string
}

// CycleStarted is emitted when the first request of a generation is admitted.
type CycleStarted struct {
	Mode string `msgpack:"mode"`
}

// CompileFinished is emitted after a batch compile.
type CompileFinished struct {
	DurationMS int64  `msgpack:"duration_ms"`
	Failed     bool   `msgpack:"failed"`
	Error      string `msgpack:"error,omitempty"`
}

// BundleFinished is emitted after the bundler ran.
type BundleFinished struct {
	Modules []string `msgpack:"modules"`
	Failed  bool     `msgpack:"failed"`
	Error   string   `msgpack:"error,omitempty"`
}

// ModuleSettled is emitted when a request resolves or rejects.
type ModuleSettled struct {
	Module   string `msgpack:"module"`
	Mode     string `msgpack:"mode"`
	Rejected bool   `msgpack:"rejected"`
	Error    string `msgpack:"error,omitempty"`
}

// UnknownModuleDetected is emitted when a rebuild reports a stale module graph.
type UnknownModuleDetected struct {
	Module string `msgpack:"module"`
}

// CycleSettled is emitted once the generation's queue is empty.
type CycleSettled struct {
	Resolved int `msgpack:"resolved"`
	Rejected int `msgpack:"rejected"`
	Warnings int `msgpack:"warnings"`
	Errors   int `msgpack:"errors"`
}

func (CycleStarted) EventType() string          { return TypeCycleStarted }
func (CompileFinished) EventType() string       { return TypeCompileFinished }
func (BundleFinished) EventType() string        { return TypeBundleFinished }
func (ModuleSettled) EventType() string         { return TypeModuleSettled }
func (UnknownModuleDetected) EventType() string { return TypeUnknownModuleDetected }
func (CycleSettled) EventType() string          { return TypeCycleSettled }

// Encode serializes p with msgpack.
func Encode(p Payload) ([]byte, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, errors.EventStoreError("failed to encode " + p.EventType() + " payload").WithCause(err).Build()
	}
	return b, nil
}

// Decode restores the typed payload of e.
func Decode(e Event) (Payload, error) {
	var p Payload
	switch e.Type() {
	case TypeCycleStarted:
		p = &CycleStarted{}
	case TypeCompileFinished:
		p = &CompileFinished{}
	case TypeBundleFinished:
		p = &BundleFinished{}
	case TypeModuleSettled:
		p = &ModuleSettled{}
	case TypeUnknownModuleDetected:
		p = &UnknownModuleDetected{}
	case TypeCycleSettled:
		p = &CycleSettled{}
	default:
		return nil, ErrUnknownEventType.WithContext("type", e.Type())
	}
	if err := msgpack.Unmarshal(e.Payload(), p); err != nil {
		return nil, errors.WrapError(err, errors.CategoryEventStore, ErrDecodePayloadFailed.Message()).
			WithContext("type", e.Type()).
			Build()
	}
	return p, nil
}

// Journal records typed events for a generation. Implementations log and
// swallow their own failures; a lost event never fails a build.
type Journal interface {
	Record(ctx context.Context, generation string, p Payload)
}

// NopJournal discards events.
type NopJournal struct{}

func (NopJournal) Record(context.Context, string, Payload) {}

// StoreJournal writes events to a Store.
type StoreJournal struct {
	store Store
}

// NewStoreJournal returns a Journal backed by store.
func NewStoreJournal(store Store) *StoreJournal {
	return &StoreJournal{store: store}
}

func (j *StoreJournal) Record(ctx context.Context, generation string, p Payload) {
	b, err := Encode(p)
	if err == nil {
		err = j.store.Append(ctx, generation, p.EventType(), b, nil)
	}
	if err != nil {
		slog.Warn("Failed to record build event", logfields.Generation(generation), "type", p.EventType(), logfields.Error(err))
	}
}
