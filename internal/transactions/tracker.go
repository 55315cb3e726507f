package transactions

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/gabapcia/meshgate/internal/engine"
	"github.com/gabapcia/meshgate/internal/events"
	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/subscriptions"
)

// trackedEntry is one in-flight handle under observation. Its mutex
// serializes status-change handling for this entry; distinct entries are
// handled concurrently. unsubscribe is guarded by the service's trackerMu:
// the engine may fire the listener from its own goroutines the moment it is
// registered, racing with the assignment.
type trackedEntry struct {
	id          uint64
	handle      engine.Handle
	unsubscribe engine.UnsubscribeFunc

	handleMu sync.Mutex // serializes status-change handling for this entry
}

// track registers the handle under the smallest free id and attaches the
// status listener. Ids are small integers, probed upward from zero and reused
// after deletion; they only serve as the string scope key for the handle's
// events, not as identifiers across history.
func (s *service) track(h engine.Handle) uint64 {
	s.trackerMu.Lock()

	var id uint64
	for {
		if _, taken := s.entries[id]; !taken {
			break
		}
		id++
	}

	entry := &trackedEntry{id: id, handle: h}
	s.entries[id] = entry
	s.trackerMu.Unlock()

	unsubscribe := h.OnStatusChange(func(h engine.Handle) {
		s.handleStatusChange(context.Background(), id, h)
	})

	s.trackerMu.Lock()
	if _, ok := s.entries[id]; !ok {
		// a terminal callback already tore the entry down before the
		// unsubscribe function was stored; detach the listener here instead
		s.trackerMu.Unlock()
		unsubscribe()
		return id
	}
	entry.unsubscribe = unsubscribe
	s.trackerMu.Unlock()

	return id
}

// untrack removes the entry and detaches its listener. It reports whether the
// entry was still present, so duplicate terminal callbacks collapse into a
// no-op.
func (s *service) untrack(id uint64) bool {
	s.trackerMu.Lock()
	entry, ok := s.entries[id]
	var unsubscribe engine.UnsubscribeFunc
	if ok {
		delete(s.entries, id)
		unsubscribe = entry.unsubscribe
	}
	s.trackerMu.Unlock()

	if !ok {
		return false
	}

	if unsubscribe != nil {
		unsubscribe()
	}
	return true
}

// inFlight returns how many handles are currently tracked.
func (s *service) inFlight() int {
	s.trackerMu.Lock()
	defer s.trackerMu.Unlock()
	return len(s.entries)
}

// handleStatusChange turns one status transition into a recorded event and,
// on terminal states, tears the entry down. The engine may invoke the
// listener again for an already-removed id; that is a no-op. Any failure in
// here is logged and swallowed: a broken listener must never crash the
// process or abort the engine-side run.
func (s *service) handleStatusChange(ctx context.Context, id uint64, h engine.Handle) {
	s.trackerMu.Lock()
	entry, ok := s.entries[id]
	s.trackerMu.Unlock()
	if !ok {
		return
	}

	entry.handleMu.Lock()
	defer entry.handleMu.Unlock()

	// copy everything before the first suspension point: the engine keeps
	// mutating the handle underneath us
	snap := snapshotHandle(h)

	payload, err := json.Marshal(buildStatusPayload(snap))
	if err != nil {
		logger.Error(ctx, "error while handling transaction status change",
			"transaction.id", id,
			"error", err,
		)
		return
	}

	scope := strconv.FormatUint(id, 10)
	if _, err := s.events.CreateEvent(ctx, events.TypeTransactionUpdate, scope, payload); err != nil {
		logger.Error(ctx, "error while handling transaction status change",
			"transaction.id", id,
			"error", err,
		)
		return
	}

	if snap.Status.IsTerminal() {
		s.finalize(ctx, id, scope)
	}
}

// finalize runs the terminal-state cleanup: detach and drop the entry, then
// mark every active, non-expired subscription on this scope as done. Safe to
// call twice for the same id.
func (s *service) finalize(ctx context.Context, id uint64, scope string) {
	if removed := s.untrack(id); !removed {
		return
	}

	matches, err := s.subscriptions.FindAll(ctx, subscriptions.Filter{
		EventType:      events.TypeTransactionUpdate,
		EventScope:     scope,
		Status:         subscriptions.StatusActive,
		ExcludeExpired: true,
	})
	if err != nil {
		logger.Error(ctx, "failed to list subscriptions for finished transaction",
			"transaction.id", id,
			"error", err,
		)
		return
	}

	ids := make([]uint64, len(matches))
	for i, sub := range matches {
		ids[i] = sub.ID
	}

	if err := s.subscriptions.BatchMarkAsDone(ctx, ids); err != nil {
		logger.Error(ctx, "failed to mark subscriptions as done",
			"transaction.id", id,
			"error", err,
		)
	}
}
