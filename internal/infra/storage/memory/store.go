// Package memory provides in-memory implementations of the event and
// subscription storage interfaces. It is the default backend: a process
// restart loses all tracked state, which is an accepted limitation until a
// durable backend (see the redis package) is configured.
package memory

import (
	"sync"

	"github.com/gabapcia/meshgate/internal/events"
	"github.com/gabapcia/meshgate/internal/subscriptions"
)

// store keeps every record behind a single mutex. Operations are quick map
// manipulations, so one lock both keeps the implementation simple and makes
// every batch operation atomic with respect to concurrent callers.
type store struct {
	mu sync.Mutex

	nextEventID uint64
	events      map[uint64]events.Event

	nextSubscriptionID uint64
	subscriptions      map[uint64]subscriptions.Subscription
}

// NewStore creates an empty in-memory store. The same instance backs both
// the event and the subscription storage interfaces.
func NewStore() *store {
	return &store{
		events:        make(map[uint64]events.Event),
		subscriptions: make(map[uint64]subscriptions.Subscription),
	}
}
