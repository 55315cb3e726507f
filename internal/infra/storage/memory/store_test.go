package memory

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/gabapcia/meshgate/internal/events"
	"github.com/gabapcia/meshgate/internal/subscriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStorage(t *testing.T) {
	t.Run("should assign monotonic ids starting at one", func(t *testing.T) {
		store := NewStore()

		first, err := store.CreateEvent(t.Context(), events.Event{Type: "transaction.update"})
		require.NoError(t, err)

		second, err := store.CreateEvent(t.Context(), events.Event{Type: "transaction.update"})
		require.NoError(t, err)

		assert.Equal(t, uint64(1), first)
		assert.Equal(t, uint64(2), second)
	})

	t.Run("should store events unprocessed and flip the flag on demand", func(t *testing.T) {
		store := NewStore()

		id, err := store.CreateEvent(t.Context(), events.Event{
			Type:      "transaction.update",
			Scope:     "0",
			Payload:   json.RawMessage(`{"status":"Running"}`),
			Processed: true, // the storage decides, not the caller
		})
		require.NoError(t, err)

		event, err := store.GetEvent(t.Context(), id)
		require.NoError(t, err)
		assert.False(t, event.Processed)

		require.NoError(t, store.MarkEventProcessed(t.Context(), id))

		event, err = store.GetEvent(t.Context(), id)
		require.NoError(t, err)
		assert.True(t, event.Processed)
	})

	t.Run("should report unknown event ids", func(t *testing.T) {
		store := NewStore()

		_, err := store.GetEvent(t.Context(), 42)
		assert.ErrorIs(t, err, events.ErrEventNotFound)

		assert.ErrorIs(t, store.MarkEventProcessed(t.Context(), 42), events.ErrEventNotFound)
	})
}

func TestSubscriptionStorage(t *testing.T) {
	t.Run("should assign monotonic subscription ids", func(t *testing.T) {
		store := NewStore()

		first, err := store.CreateSubscription(t.Context(), subscriptions.Subscription{Status: subscriptions.StatusPending})
		require.NoError(t, err)

		second, err := store.CreateSubscription(t.Context(), subscriptions.Subscription{Status: subscriptions.StatusPending})
		require.NoError(t, err)

		assert.Equal(t, uint64(1), first)
		assert.Equal(t, uint64(2), second)
	})

	t.Run("should report unknown subscription ids", func(t *testing.T) {
		store := NewStore()

		_, err := store.GetSubscription(t.Context(), 42)
		assert.ErrorIs(t, err, subscriptions.ErrSubscriptionNotFound)

		err = store.UpdateSubscriptionStatus(t.Context(), 42, subscriptions.StatusActive)
		assert.ErrorIs(t, err, subscriptions.ErrSubscriptionNotFound)
	})

	t.Run("should update statuses in batch and skip unknown ids", func(t *testing.T) {
		store := NewStore()

		id, err := store.CreateSubscription(t.Context(), subscriptions.Subscription{Status: subscriptions.StatusActive})
		require.NoError(t, err)

		require.NoError(t, store.BatchUpdateStatus(t.Context(), []uint64{id, 99}, subscriptions.StatusDone))

		sub, err := store.GetSubscription(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, subscriptions.StatusDone, sub.Status)
	})

	t.Run("should bump nonces by exactly one per batch entry", func(t *testing.T) {
		store := NewStore()

		id, err := store.CreateSubscription(t.Context(), subscriptions.Subscription{Status: subscriptions.StatusActive})
		require.NoError(t, err)

		nonces, err := store.BatchIncrementNonce(t.Context(), []uint64{id, 99})
		require.NoError(t, err)

		assert.Equal(t, map[uint64]uint64{id: 1}, nonces)
	})

	t.Run("should never lose a bump under concurrent batches", func(t *testing.T) {
		store := NewStore()

		id, err := store.CreateSubscription(t.Context(), subscriptions.Subscription{Status: subscriptions.StatusActive})
		require.NoError(t, err)

		const goroutines = 50

		var wg sync.WaitGroup
		wg.Add(goroutines)
		for range goroutines {
			go func() {
				defer wg.Done()
				_, err := store.BatchIncrementNonce(t.Context(), []uint64{id})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		sub, err := store.GetSubscription(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, uint64(goroutines), sub.Nonce)
	})

	t.Run("should enumerate every stored subscription", func(t *testing.T) {
		store := NewStore()

		for range 3 {
			_, err := store.CreateSubscription(t.Context(), subscriptions.Subscription{Status: subscriptions.StatusPending})
			require.NoError(t, err)
		}

		subs, err := store.ListSubscriptions(t.Context())
		require.NoError(t, err)
		assert.Len(t, subs, 3)
	})
}
