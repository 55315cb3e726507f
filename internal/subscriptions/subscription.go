package subscriptions

import (
	"context"
	"errors"
	"time"
)

// ErrSubscriptionNotFound is returned by storage lookups for unknown ids.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Status is the lifecycle state of a webhook subscription.
type Status string

const (
	// StatusPending marks a subscription created but not yet validated by a
	// handshake.
	StatusPending Status = "pending"

	// StatusActive marks a subscription whose handshake succeeded; it
	// receives notifications for matching events.
	StatusActive Status = "active"

	// StatusRejected marks a subscription whose handshake exhausted its
	// attempts. It never receives a notification.
	StatusRejected Status = "rejected"

	// StatusExpired marks an active subscription that outlived its TTL with
	// no further matching events.
	StatusExpired Status = "expired"

	// StatusDone marks a subscription whose watched transaction reached a
	// terminal state.
	StatusDone Status = "done"
)

// Subscription tracks a webhook registration for a stream of events. Nonce is
// a per-subscription counter bumped by exactly one per delivered
// notification, letting receivers detect gaps and reordering.
type Subscription struct {
	ID               uint64
	EventType        string
	EventScope       string
	WebhookURL       string
	LegitimacySecret string
	Status           Status
	Nonce            uint64
	CreatedAt        time.Time
	ExpiresAt        time.Time // zero value means the subscription never expires
}

// IsExpired reports whether the subscription's TTL has elapsed at the given
// instant. Expiry is evaluated lazily; no status transition is required for
// an expired subscription to stop matching events.
func (s Subscription) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Filter narrows the subscriptions returned by FindAll. Zero-valued fields
// match everything. ExcludeExpired drops subscriptions whose ExpiresAt has
// passed even if their stored status is still active.
type Filter struct {
	EventType      string
	EventScope     string
	Status         Status
	ExcludeExpired bool
}

// SubscriptionStorage persists subscriptions and owns the atomicity of their
// bulk state transitions. Implementations must not interleave two batch
// operations touching the same subscription id.
type SubscriptionStorage interface {
	// CreateSubscription stores the subscription and assigns it the next
	// monotonic id, which is returned.
	CreateSubscription(ctx context.Context, sub Subscription) (uint64, error)

	// GetSubscription returns the subscription with the given id, or
	// ErrSubscriptionNotFound.
	GetSubscription(ctx context.Context, id uint64) (Subscription, error)

	// ListSubscriptions returns every stored subscription. Filtering is the
	// service's responsibility; storage only enumerates.
	ListSubscriptions(ctx context.Context) ([]Subscription, error)

	// UpdateSubscriptionStatus sets the status of a single subscription.
	UpdateSubscriptionStatus(ctx context.Context, id uint64, status Status) error

	// BatchUpdateStatus sets the status of every given subscription as one
	// atomic operation. Unknown ids are skipped.
	BatchUpdateStatus(ctx context.Context, ids []uint64, status Status) error

	// BatchIncrementNonce bumps each given subscription's nonce by exactly
	// one as a single atomic operation and returns the new values keyed by
	// id. Unknown ids are skipped.
	BatchIncrementNonce(ctx context.Context, ids []uint64) (map[uint64]uint64, error)
}

// Handshaker validates that a subscriber owns the webhook URL it registered.
// The notifications dispatcher implements it by posting a challenge carrying
// the legitimacy secret and expecting the secret echoed back within a bounded
// number of attempts.
type Handshaker interface {
	Handshake(ctx context.Context, webhookURL, legitimacySecret string) error
}
