// Package subscriptions tracks webhook subscriptions and their lifecycle:
// created pending, activated by a successful handshake, marked done when the
// watched transaction terminates, rejected when the handshake exhausts its
// attempts, and expired once past their TTL.
package subscriptions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gabapcia/meshgate/internal/pkg/apperrors"
	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/pkg/validation"

	"github.com/google/uuid"
)

// Service is the subscription registry entrypoint.
type Service interface {
	// Create validates the input, stores the subscription as pending and
	// synchronously runs the webhook handshake. On success the subscription
	// becomes active with a zero nonce; after the handshake's attempts are
	// exhausted it becomes rejected and will never receive a notification.
	// The returned subscription reflects the post-handshake state.
	Create(ctx context.Context, in CreateInput) (Subscription, error)

	// FindOne returns the subscription with the given id, with lazily
	// evaluated expiry reflected in its status.
	FindOne(ctx context.Context, id uint64) (Subscription, error)

	// FindAll returns the subscriptions matching the filter.
	FindAll(ctx context.Context, f Filter) ([]Subscription, error)

	// BatchMarkAsDone transitions every given subscription to done as one
	// atomic operation.
	BatchMarkAsDone(ctx context.Context, ids []uint64) error

	// BatchBumpNonce increments every given subscription's nonce by exactly
	// one as a single atomic operation, returning the new values keyed by
	// id. Batching keeps concurrent status changes on the same scope from
	// racing on the bump-then-read of the nonce.
	BatchBumpNonce(ctx context.Context, ids []uint64) (map[uint64]uint64, error)
}

// CreateInput carries the data needed to register a webhook subscription.
// LegitimacySecret is generated when left empty.
type CreateInput struct {
	EventType        string `validate:"required"`
	EventScope       string `validate:"required"`
	WebhookURL       string `validate:"required,url"`
	LegitimacySecret string
}

type service struct {
	storage    SubscriptionStorage
	handshaker Handshaker

	ttl time.Duration
	now func() time.Time
}

var _ Service = (*service)(nil)

type config struct {
	ttl time.Duration
	now func() time.Time
}

// Option configures the subscriptions service.
type Option func(*config)

// WithTTL sets how long a subscription stays eligible for notifications
// after creation. A zero TTL disables expiry.
func WithTTL(d time.Duration) Option {
	return func(c *config) {
		c.ttl = d
	}
}

// WithClock overrides the time source, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a subscription registry backed by the given storage, using the
// handshaker to validate new webhook URLs.
func New(storage SubscriptionStorage, handshaker Handshaker, opts ...Option) *service {
	cfg := config{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		storage:    storage,
		handshaker: handshaker,
		ttl:        cfg.ttl,
		now:        cfg.now,
	}
}

func (s *service) Create(ctx context.Context, in CreateInput) (Subscription, error) {
	if err := validation.Validate(in); err != nil {
		return Subscription{}, err
	}

	secret := in.LegitimacySecret
	if secret == "" {
		secret = uuid.NewString()
	}

	now := s.now()
	sub := Subscription{
		EventType:        in.EventType,
		EventScope:       in.EventScope,
		WebhookURL:       in.WebhookURL,
		LegitimacySecret: secret,
		Status:           StatusPending,
		CreatedAt:        now,
	}
	if s.ttl > 0 {
		sub.ExpiresAt = now.Add(s.ttl)
	}

	id, err := s.storage.CreateSubscription(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}
	sub.ID = id

	if err := s.handshaker.Handshake(ctx, sub.WebhookURL, sub.LegitimacySecret); err != nil {
		logger.Warn(ctx, "subscription handshake failed",
			"subscription.id", id,
			"subscription.webhook_url", sub.WebhookURL,
			"error", err,
		)

		sub.Status = StatusRejected
		return sub, s.storage.UpdateSubscriptionStatus(ctx, id, StatusRejected)
	}

	sub.Status = StatusActive
	return sub, s.storage.UpdateSubscriptionStatus(ctx, id, StatusActive)
}

func (s *service) FindOne(ctx context.Context, id uint64) (Subscription, error) {
	sub, err := s.storage.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return Subscription{}, apperrors.NewNotFound(strconv.FormatUint(id, 10), "subscription")
		}
		return Subscription{}, err
	}

	// expiry is a view over the stored state, not a stored transition
	if sub.Status == StatusActive && sub.IsExpired(s.now()) {
		sub.Status = StatusExpired
	}

	return sub, nil
}

func (s *service) FindAll(ctx context.Context, f Filter) ([]Subscription, error) {
	subs, err := s.storage.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()

	matches := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		if f.EventType != "" && sub.EventType != f.EventType {
			continue
		}
		if f.EventScope != "" && sub.EventScope != f.EventScope {
			continue
		}
		if f.Status != "" && sub.Status != f.Status {
			continue
		}
		if f.ExcludeExpired && sub.IsExpired(now) {
			continue
		}

		matches = append(matches, sub)
	}

	return matches, nil
}

func (s *service) BatchMarkAsDone(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}

	return s.storage.BatchUpdateStatus(ctx, ids, StatusDone)
}

func (s *service) BatchBumpNonce(ctx context.Context, ids []uint64) (map[uint64]uint64, error) {
	if len(ids) == 0 {
		return map[uint64]uint64{}, nil
	}

	return s.storage.BatchIncrementNonce(ctx, ids)
}
