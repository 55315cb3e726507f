package memory

import (
	"context"

	"github.com/gabapcia/meshgate/internal/subscriptions"
)

// CreateSubscription stores the subscription under the next monotonic id.
func (s *store) CreateSubscription(_ context.Context, sub subscriptions.Subscription) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubscriptionID++
	sub.ID = s.nextSubscriptionID
	s.subscriptions[sub.ID] = sub

	return sub.ID, nil
}

// GetSubscription returns the stored subscription, or
// subscriptions.ErrSubscriptionNotFound.
func (s *store) GetSubscription(_ context.Context, id uint64) (subscriptions.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return subscriptions.Subscription{}, subscriptions.ErrSubscriptionNotFound
	}

	return sub, nil
}

// ListSubscriptions returns every stored subscription.
func (s *store) ListSubscriptions(_ context.Context) ([]subscriptions.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]subscriptions.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, sub)
	}

	return subs, nil
}

// UpdateSubscriptionStatus sets the status of one subscription. Unknown ids
// report subscriptions.ErrSubscriptionNotFound.
func (s *store) UpdateSubscriptionStatus(_ context.Context, id uint64, status subscriptions.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return subscriptions.ErrSubscriptionNotFound
	}

	sub.Status = status
	s.subscriptions[id] = sub
	return nil
}

// BatchUpdateStatus sets the status of every given subscription under one
// lock acquisition. Unknown ids are skipped.
func (s *store) BatchUpdateStatus(_ context.Context, ids []uint64, status subscriptions.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		sub, ok := s.subscriptions[id]
		if !ok {
			continue
		}

		sub.Status = status
		s.subscriptions[id] = sub
	}

	return nil
}

// BatchIncrementNonce bumps each given subscription's nonce by exactly one
// under a single lock acquisition, so concurrent bumps for the same id can
// never interleave. Unknown ids are skipped.
func (s *store) BatchIncrementNonce(_ context.Context, ids []uint64) (map[uint64]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonces := make(map[uint64]uint64, len(ids))
	for _, id := range ids {
		sub, ok := s.subscriptions[id]
		if !ok {
			continue
		}

		sub.Nonce++
		s.subscriptions[id] = sub
		nonces[id] = sub.Nonce
	}

	return nonces, nil
}

// Ensure the store satisfies the subscription storage interface at compile time.
var _ subscriptions.SubscriptionStorage = (*store)(nil)
