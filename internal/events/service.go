// Package events is the append-only registry of domain events. Creating an
// event fans it out to every active, non-expired subscription matching its
// type and scope: one notification per match, each carrying the nonce that
// subscription was bumped to for this event. Only after the fan-out has been
// handed to the dispatcher is the event marked processed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gabapcia/meshgate/internal/notifications"
	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
	"github.com/gabapcia/meshgate/internal/subscriptions"
)

// SubscriptionDirectory is the slice of the subscription registry the event
// store needs: matching lookups and the batched nonce bump.
type SubscriptionDirectory interface {
	FindAll(ctx context.Context, f subscriptions.Filter) ([]subscriptions.Subscription, error)
	BatchBumpNonce(ctx context.Context, ids []uint64) (map[uint64]uint64, error)
}

// Notifier hands delivery descriptors to the notification dispatcher.
type Notifier interface {
	Enqueue(ctx context.Context, batch ...notifications.Notification) error
}

// Service is the event store entrypoint.
type Service interface {
	// CreateEvent records the event, fans it out to matching subscriptions
	// and marks it processed. It returns the new event's id.
	CreateEvent(ctx context.Context, eventType, scope string, payload json.RawMessage) (uint64, error)

	// FindOne returns the event with the given id.
	FindOne(ctx context.Context, id uint64) (Event, error)
}

type service struct {
	storage       EventStorage
	subscriptions SubscriptionDirectory
	notifier      Notifier

	now func() time.Time
}

var _ Service = (*service)(nil)

// New creates an event store backed by the given storage, resolving fan-out
// targets through the subscription directory and delivering through the
// notifier.
func New(storage EventStorage, subs SubscriptionDirectory, notifier Notifier) *service {
	return &service{
		storage:       storage,
		subscriptions: subs,
		notifier:      notifier,
		now:           time.Now,
	}
}

func (s *service) CreateEvent(ctx context.Context, eventType, scope string, payload json.RawMessage) (uint64, error) {
	event := Event{
		Type:      eventType,
		Scope:     scope,
		Payload:   payload,
		CreatedAt: s.now(),
	}

	id, err := s.storage.CreateEvent(ctx, event)
	if err != nil {
		return 0, err
	}
	event.ID = id

	if err := s.fanOut(ctx, event); err != nil {
		return 0, err
	}

	return id, s.storage.MarkEventProcessed(ctx, id)
}

// fanOut builds one notification per active, non-expired subscription
// matching the event. Nonces for every match are bumped as a single batch so
// concurrent events on the same scope cannot interleave a bump-then-read.
func (s *service) fanOut(ctx context.Context, event Event) error {
	matches, err := s.subscriptions.FindAll(ctx, subscriptions.Filter{
		EventType:      event.Type,
		EventScope:     event.Scope,
		Status:         subscriptions.StatusActive,
		ExcludeExpired: true,
	})
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		return nil
	}

	ids := make([]uint64, len(matches))
	for i, sub := range matches {
		ids[i] = sub.ID
	}

	nonces, err := s.subscriptions.BatchBumpNonce(ctx, ids)
	if err != nil {
		return err
	}

	batch := make([]notifications.Notification, 0, len(matches))
	for _, sub := range matches {
		nonce, ok := nonces[sub.ID]
		if !ok {
			continue
		}

		batch = append(batch, notifications.Notification{
			SubscriptionID:   sub.ID,
			EventID:          event.ID,
			Type:             event.Type,
			Scope:            event.Scope,
			Nonce:            nonce,
			WebhookURL:       sub.WebhookURL,
			LegitimacySecret: sub.LegitimacySecret,
			Payload:          event.Payload,
		})
	}

	return s.notifier.Enqueue(ctx, batch...)
}

func (s *service) FindOne(ctx context.Context, id uint64) (Event, error) {
	event, err := s.storage.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return Event{}, apperrors.NewNotFound(strconv.FormatUint(id, 10), "event")
		}
		return Event{}, err
	}

	return event, nil
}
