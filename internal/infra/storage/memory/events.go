package memory

import (
	"context"

	"github.com/gabapcia/meshgate/internal/events"
)

// CreateEvent stores the event under the next monotonic id. Event ids are
// never reused.
func (s *store) CreateEvent(_ context.Context, event events.Event) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	event.ID = s.nextEventID
	event.Processed = false
	s.events[event.ID] = event

	return event.ID, nil
}

// GetEvent returns the stored event, or events.ErrEventNotFound.
func (s *store) GetEvent(_ context.Context, id uint64) (events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return events.Event{}, events.ErrEventNotFound
	}

	return event, nil
}

// MarkEventProcessed flips the processed flag. Unknown ids report
// events.ErrEventNotFound.
func (s *store) MarkEventProcessed(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return events.ErrEventNotFound
	}

	event.Processed = true
	s.events[id] = event
	return nil
}

// Ensure the store satisfies the event storage interface at compile time.
var _ events.EventStorage = (*store)(nil)
