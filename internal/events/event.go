package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrEventNotFound is returned by storage lookups for unknown event ids.
var ErrEventNotFound = errors.New("event not found")

// TypeTransactionUpdate is the event type emitted for every status
// transition of a tracked transaction.
const TypeTransactionUpdate = "transaction.update"

// Event is a domain event recorded by the store. Events are immutable once
// created, except for Processed, which transitions false to true exactly
// once, synchronously after the event has been fanned out to its
// subscriptions.
type Event struct {
	ID        uint64
	Type      string
	Scope     string
	Payload   json.RawMessage
	CreatedAt time.Time
	Processed bool
}

// EventStorage persists events. Ids are monotonic across the lifetime of the
// store.
type EventStorage interface {
	// CreateEvent stores the event with the next monotonic id, which is
	// returned. The caller provides every field except ID and Processed.
	CreateEvent(ctx context.Context, event Event) (uint64, error)

	// GetEvent returns the event with the given id, or ErrEventNotFound.
	GetEvent(ctx context.Context, id uint64) (Event, error)

	// MarkEventProcessed flips the event's processed flag to true.
	MarkEventProcessed(ctx context.Context, id uint64) error
}
