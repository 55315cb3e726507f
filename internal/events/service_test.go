package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gabapcia/meshgate/internal/notifications"
	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
	"github.com/gabapcia/meshgate/internal/subscriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	events map[uint64]Event
	nextID uint64

	createErr error
	markErr   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{events: make(map[uint64]Event)}
}

func (s *fakeStorage) CreateEvent(ctx context.Context, event Event) (uint64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}

	s.nextID++
	event.ID = s.nextID
	s.events[event.ID] = event
	return event.ID, nil
}

func (s *fakeStorage) GetEvent(ctx context.Context, id uint64) (Event, error) {
	event, ok := s.events[id]
	if !ok {
		return Event{}, ErrEventNotFound
	}
	return event, nil
}

func (s *fakeStorage) MarkEventProcessed(ctx context.Context, id uint64) error {
	if s.markErr != nil {
		return s.markErr
	}

	event, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}

	event.Processed = true
	s.events[id] = event
	return nil
}

type fakeDirectory struct {
	subs    []subscriptions.Subscription
	findErr error
	bumpErr error

	nonces  map[uint64]uint64
	bumpIDs []uint64
}

func (d *fakeDirectory) FindAll(ctx context.Context, f subscriptions.Filter) ([]subscriptions.Subscription, error) {
	return d.subs, d.findErr
}

func (d *fakeDirectory) BatchBumpNonce(ctx context.Context, ids []uint64) (map[uint64]uint64, error) {
	if d.bumpErr != nil {
		return nil, d.bumpErr
	}

	d.bumpIDs = append(d.bumpIDs, ids...)
	return d.nonces, nil
}

type fakeNotifier struct {
	enqueued []notifications.Notification
	err      error
}

func (n *fakeNotifier) Enqueue(ctx context.Context, batch ...notifications.Notification) error {
	if n.err != nil {
		return n.err
	}

	n.enqueued = append(n.enqueued, batch...)
	return nil
}

func TestCreateEvent(t *testing.T) {
	payload := json.RawMessage(`{"status":"Running"}`)

	t.Run("should fan out one notification per matching subscription", func(t *testing.T) {
		storage := newFakeStorage()
		directory := &fakeDirectory{
			subs: []subscriptions.Subscription{
				{ID: 1, WebhookURL: "https://a.example.com", LegitimacySecret: "s1"},
				{ID: 2, WebhookURL: "https://b.example.com", LegitimacySecret: "s2"},
			},
			nonces: map[uint64]uint64{1: 3, 2: 1},
		}
		notifier := &fakeNotifier{}
		svc := New(storage, directory, notifier)

		id, err := svc.CreateEvent(t.Context(), TypeTransactionUpdate, "0", payload)

		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)
		assert.Equal(t, []uint64{1, 2}, directory.bumpIDs, "every match is bumped in a single batch")

		require.Len(t, notifier.enqueued, 2)
		first := notifier.enqueued[0]
		assert.Equal(t, uint64(1), first.SubscriptionID)
		assert.Equal(t, id, first.EventID)
		assert.Equal(t, TypeTransactionUpdate, first.Type)
		assert.Equal(t, "0", first.Scope)
		assert.Equal(t, uint64(3), first.Nonce, "the notification carries the bumped nonce")
		assert.Equal(t, "https://a.example.com", first.WebhookURL)
		assert.Equal(t, "s1", first.LegitimacySecret)
		assert.JSONEq(t, string(payload), string(first.Payload))

		assert.True(t, storage.events[id].Processed)
	})

	t.Run("should mark the event processed even with no matching subscription", func(t *testing.T) {
		storage := newFakeStorage()
		notifier := &fakeNotifier{}
		svc := New(storage, &fakeDirectory{}, notifier)

		id, err := svc.CreateEvent(t.Context(), TypeTransactionUpdate, "0", payload)

		require.NoError(t, err)
		assert.Empty(t, notifier.enqueued)
		assert.True(t, storage.events[id].Processed)
	})

	t.Run("should leave the event unprocessed when the fan-out fails", func(t *testing.T) {
		storage := newFakeStorage()
		directory := &fakeDirectory{findErr: errors.New("registry down")}
		svc := New(storage, directory, &fakeNotifier{})

		_, err := svc.CreateEvent(t.Context(), TypeTransactionUpdate, "0", payload)

		require.Error(t, err)
		assert.False(t, storage.events[1].Processed)
	})

	t.Run("should propagate enqueue failures", func(t *testing.T) {
		storage := newFakeStorage()
		directory := &fakeDirectory{
			subs:   []subscriptions.Subscription{{ID: 1}},
			nonces: map[uint64]uint64{1: 1},
		}
		svc := New(storage, directory, &fakeNotifier{err: errors.New("queue closed")})

		_, err := svc.CreateEvent(t.Context(), TypeTransactionUpdate, "0", payload)

		require.Error(t, err)
		assert.False(t, storage.events[1].Processed)
	})

	t.Run("should skip matches missing from the bump result", func(t *testing.T) {
		storage := newFakeStorage()
		directory := &fakeDirectory{
			subs:   []subscriptions.Subscription{{ID: 1}, {ID: 2}},
			nonces: map[uint64]uint64{2: 5},
		}
		notifier := &fakeNotifier{}
		svc := New(storage, directory, notifier)

		_, err := svc.CreateEvent(t.Context(), TypeTransactionUpdate, "0", payload)

		require.NoError(t, err)
		require.Len(t, notifier.enqueued, 1)
		assert.Equal(t, uint64(2), notifier.enqueued[0].SubscriptionID)
	})
}

func TestFindOne(t *testing.T) {
	t.Run("should return the stored event", func(t *testing.T) {
		storage := newFakeStorage()
		svc := New(storage, &fakeDirectory{}, &fakeNotifier{})

		id, err := svc.CreateEvent(t.Context(), TypeTransactionUpdate, "0", json.RawMessage(`{}`))
		require.NoError(t, err)

		event, err := svc.FindOne(t.Context(), id)

		require.NoError(t, err)
		assert.Equal(t, id, event.ID)
		assert.Equal(t, TypeTransactionUpdate, event.Type)
	})

	t.Run("should report unknown ids as not found", func(t *testing.T) {
		svc := New(newFakeStorage(), &fakeDirectory{}, &fakeNotifier{})

		_, err := svc.FindOne(t.Context(), 99)

		appErr, ok := apperrors.From(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.KindNotFound, appErr.Kind)
		assert.Equal(t, "event", appErr.Resource)
		assert.Equal(t, "99", appErr.ID)
	})
}
