package subscriptions

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	validation.Init()
	os.Exit(m.Run())
}

// fakeStorage is an in-package stand-in for the storage interface, recording
// every call so tests can assert on the exact interaction.
type fakeStorage struct {
	subs   map[uint64]Subscription
	nextID uint64

	createErr error
	listErr   error
	updateErr error

	statusUpdates map[uint64]Status
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		subs:          make(map[uint64]Subscription),
		statusUpdates: make(map[uint64]Status),
	}
}

func (s *fakeStorage) CreateSubscription(ctx context.Context, sub Subscription) (uint64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}

	s.nextID++
	sub.ID = s.nextID
	s.subs[sub.ID] = sub
	return sub.ID, nil
}

func (s *fakeStorage) GetSubscription(ctx context.Context, id uint64) (Subscription, error) {
	sub, ok := s.subs[id]
	if !ok {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *fakeStorage) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}

	subs := make([]Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *fakeStorage) UpdateSubscriptionStatus(ctx context.Context, id uint64, status Status) error {
	if s.updateErr != nil {
		return s.updateErr
	}

	sub, ok := s.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}

	sub.Status = status
	s.subs[id] = sub
	s.statusUpdates[id] = status
	return nil
}

func (s *fakeStorage) BatchUpdateStatus(ctx context.Context, ids []uint64, status Status) error {
	for _, id := range ids {
		if sub, ok := s.subs[id]; ok {
			sub.Status = status
			s.subs[id] = sub
		}
	}
	return nil
}

func (s *fakeStorage) BatchIncrementNonce(ctx context.Context, ids []uint64) (map[uint64]uint64, error) {
	nonces := make(map[uint64]uint64, len(ids))
	for _, id := range ids {
		sub, ok := s.subs[id]
		if !ok {
			continue
		}

		sub.Nonce++
		s.subs[id] = sub
		nonces[id] = sub.Nonce
	}
	return nonces, nil
}

// fakeHandshaker answers every handshake with the configured error.
type fakeHandshaker struct {
	err   error
	calls []string
}

func (h *fakeHandshaker) Handshake(ctx context.Context, webhookURL, legitimacySecret string) error {
	h.calls = append(h.calls, webhookURL)
	return h.err
}

func TestCreate(t *testing.T) {
	validInput := CreateInput{
		EventType:  "transaction.update",
		EventScope: "0",
		WebhookURL: "https://example.com/hook",
	}

	t.Run("should reject input missing required fields", func(t *testing.T) {
		svc := New(newFakeStorage(), &fakeHandshaker{})

		_, err := svc.Create(t.Context(), CreateInput{WebhookURL: "https://example.com/hook"})

		require.Error(t, err)
		assert.ErrorIs(t, err, validation.ErrValidation)
	})

	t.Run("should activate the subscription when the handshake succeeds", func(t *testing.T) {
		storage := newFakeStorage()
		handshaker := &fakeHandshaker{}
		svc := New(storage, handshaker)

		sub, err := svc.Create(t.Context(), validInput)

		require.NoError(t, err)
		assert.Equal(t, uint64(1), sub.ID)
		assert.Equal(t, StatusActive, sub.Status)
		assert.Zero(t, sub.Nonce)
		assert.NotEmpty(t, sub.LegitimacySecret, "a legitimacy secret should be generated when absent")
		assert.Equal(t, []string{"https://example.com/hook"}, handshaker.calls)
		assert.Equal(t, StatusActive, storage.statusUpdates[1])
	})

	t.Run("should keep a caller-provided legitimacy secret", func(t *testing.T) {
		svc := New(newFakeStorage(), &fakeHandshaker{})

		input := validInput
		input.LegitimacySecret = "my-secret"

		sub, err := svc.Create(t.Context(), input)

		require.NoError(t, err)
		assert.Equal(t, "my-secret", sub.LegitimacySecret)
	})

	t.Run("should reject the subscription when the handshake fails", func(t *testing.T) {
		storage := newFakeStorage()
		svc := New(storage, &fakeHandshaker{err: errors.New("no echo")})

		sub, err := svc.Create(t.Context(), validInput)

		require.NoError(t, err, "a failed handshake is not a creation failure")
		assert.Equal(t, StatusRejected, sub.Status)
		assert.Equal(t, StatusRejected, storage.statusUpdates[sub.ID])
	})

	t.Run("should stamp the expiry from the configured ttl", func(t *testing.T) {
		now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		svc := New(newFakeStorage(), &fakeHandshaker{},
			WithTTL(time.Hour),
			WithClock(func() time.Time { return now }),
		)

		sub, err := svc.Create(t.Context(), validInput)

		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), sub.ExpiresAt)
	})

	t.Run("should never expire without a ttl", func(t *testing.T) {
		svc := New(newFakeStorage(), &fakeHandshaker{})

		sub, err := svc.Create(t.Context(), validInput)

		require.NoError(t, err)
		assert.True(t, sub.ExpiresAt.IsZero())
		assert.False(t, sub.IsExpired(time.Now().Add(1000*time.Hour)))
	})
}

func TestFindOne(t *testing.T) {
	t.Run("should report unknown ids as not found", func(t *testing.T) {
		svc := New(newFakeStorage(), &fakeHandshaker{})

		_, err := svc.FindOne(t.Context(), 42)

		appErr, ok := apperrors.From(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.KindNotFound, appErr.Kind)
		assert.Equal(t, "subscription", appErr.Resource)
		assert.Equal(t, "42", appErr.ID)
	})

	t.Run("should show an active subscription past its ttl as expired", func(t *testing.T) {
		now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		clock := now
		storage := newFakeStorage()
		svc := New(storage, &fakeHandshaker{},
			WithTTL(time.Hour),
			WithClock(func() time.Time { return clock }),
		)

		sub, err := svc.Create(t.Context(), CreateInput{
			EventType:  "transaction.update",
			EventScope: "0",
			WebhookURL: "https://example.com/hook",
		})
		require.NoError(t, err)

		clock = now.Add(2 * time.Hour)

		found, err := svc.FindOne(t.Context(), sub.ID)

		require.NoError(t, err)
		assert.Equal(t, StatusExpired, found.Status)
		// the stored status is untouched; expiry is a computed view
		assert.Equal(t, StatusActive, storage.subs[sub.ID].Status)
	})
}

func TestFindAll(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	seed := func(storage *fakeStorage) {
		storage.subs[1] = Subscription{ID: 1, EventType: "transaction.update", EventScope: "0", Status: StatusActive}
		storage.subs[2] = Subscription{ID: 2, EventType: "transaction.update", EventScope: "1", Status: StatusActive}
		storage.subs[3] = Subscription{ID: 3, EventType: "transaction.update", EventScope: "0", Status: StatusDone}
		storage.subs[4] = Subscription{ID: 4, EventType: "transaction.update", EventScope: "0", Status: StatusActive, ExpiresAt: now.Add(-time.Minute)}
		storage.nextID = 4
	}

	t.Run("should filter by type, scope and status", func(t *testing.T) {
		storage := newFakeStorage()
		seed(storage)
		svc := New(storage, &fakeHandshaker{}, WithClock(func() time.Time { return now }))

		subs, err := svc.FindAll(t.Context(), Filter{
			EventType:  "transaction.update",
			EventScope: "0",
			Status:     StatusActive,
		})

		require.NoError(t, err)
		ids := make([]uint64, len(subs))
		for i, sub := range subs {
			ids[i] = sub.ID
		}
		assert.ElementsMatch(t, []uint64{1, 4}, ids)
	})

	t.Run("should drop expired subscriptions when asked to", func(t *testing.T) {
		storage := newFakeStorage()
		seed(storage)
		svc := New(storage, &fakeHandshaker{}, WithClock(func() time.Time { return now }))

		subs, err := svc.FindAll(t.Context(), Filter{
			EventType:      "transaction.update",
			EventScope:     "0",
			Status:         StatusActive,
			ExcludeExpired: true,
		})

		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, uint64(1), subs[0].ID)
	})
}

func TestBatchOperations(t *testing.T) {
	t.Run("should mark every given subscription as done", func(t *testing.T) {
		storage := newFakeStorage()
		storage.subs[1] = Subscription{ID: 1, Status: StatusActive}
		storage.subs[2] = Subscription{ID: 2, Status: StatusActive}
		svc := New(storage, &fakeHandshaker{})

		require.NoError(t, svc.BatchMarkAsDone(t.Context(), []uint64{1, 2}))

		assert.Equal(t, StatusDone, storage.subs[1].Status)
		assert.Equal(t, StatusDone, storage.subs[2].Status)
	})

	t.Run("should bump each nonce by exactly one", func(t *testing.T) {
		storage := newFakeStorage()
		storage.subs[1] = Subscription{ID: 1, Status: StatusActive, Nonce: 2}
		storage.subs[2] = Subscription{ID: 2, Status: StatusActive}
		svc := New(storage, &fakeHandshaker{})

		nonces, err := svc.BatchBumpNonce(t.Context(), []uint64{1, 2})

		require.NoError(t, err)
		assert.Equal(t, map[uint64]uint64{1: 3, 2: 1}, nonces)
	})

	t.Run("should treat empty batches as no-ops", func(t *testing.T) {
		svc := New(newFakeStorage(), &fakeHandshaker{})

		require.NoError(t, svc.BatchMarkAsDone(t.Context(), nil))

		nonces, err := svc.BatchBumpNonce(t.Context(), nil)
		require.NoError(t, err)
		assert.Empty(t, nonces)
	})
}
