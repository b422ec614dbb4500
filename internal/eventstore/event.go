package eventstore

import "time"

// Event is one stored build-cycle event.
type Event interface {
	ID() int64
	// Generation returns the build cycle this event belongs to.
	Generation() string
	Type() string
	Timestamp() time.Time
	// Payload returns the msgpack-encoded event body.
	Payload() []byte
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID         int64
	EventGeneration string
	EventType       string
	EventTimestamp  time.Time
	EventPayload    []byte
	EventMetadata   map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) Generation() string          { return e.EventGeneration }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }
