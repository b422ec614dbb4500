// Package eventstore keeps an append-only log of build-cycle events in SQLite.
package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, generation, eventType string, payload []byte, metadata map[string]string) error

	// GetByGeneration retrieves all events for one build cycle.
	GetByGeneration(ctx context.Context, generation string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
