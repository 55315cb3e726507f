package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gabapcia/meshgate/internal/subscriptions"

	"github.com/redis/go-redis/v9"
)

const (
	// subscriptionsKeyPrefix is the Redis key namespace for subscriptions.
	subscriptionsKeyPrefix = "subscriptions"

	// subscriptionsCounterKey holds the monotonically increasing
	// subscription id sequence.
	subscriptionsCounterKey = subscriptionsKeyPrefix + ":id"

	// subscriptionsIndexKey is the set of all subscription ids, used to
	// enumerate them.
	subscriptionsIndexKey = subscriptionsKeyPrefix + ":index"
)

// Hash field names for one subscription record. The nonce lives in its own
// field so HINCRBY can bump it atomically without rewriting the record.
const (
	subscriptionFieldID               = "id"
	subscriptionFieldEventType        = "event_type"
	subscriptionFieldEventScope       = "event_scope"
	subscriptionFieldWebhookURL       = "webhook_url"
	subscriptionFieldLegitimacySecret = "legitimacy_secret"
	subscriptionFieldStatus           = "status"
	subscriptionFieldNonce            = "nonce"
	subscriptionFieldCreatedAt        = "created_at"
	subscriptionFieldExpiresAt        = "expires_at"
)

// subscriptionKey builds the Redis key holding one subscription hash.
func subscriptionKey(id uint64) string {
	return fmt.Sprintf("%s:subscription:%d", subscriptionsKeyPrefix, id)
}

// subscriptionToFields flattens a subscription into hash fields. Timestamps
// are stored as unix nanoseconds; a zero expiry stays zero, meaning "never".
func subscriptionToFields(sub subscriptions.Subscription) map[string]any {
	var expiresAt int64
	if !sub.ExpiresAt.IsZero() {
		expiresAt = sub.ExpiresAt.UnixNano()
	}

	return map[string]any{
		subscriptionFieldID:               sub.ID,
		subscriptionFieldEventType:        sub.EventType,
		subscriptionFieldEventScope:       sub.EventScope,
		subscriptionFieldWebhookURL:       sub.WebhookURL,
		subscriptionFieldLegitimacySecret: sub.LegitimacySecret,
		subscriptionFieldStatus:           string(sub.Status),
		subscriptionFieldNonce:            sub.Nonce,
		subscriptionFieldCreatedAt:        sub.CreatedAt.UnixNano(),
		subscriptionFieldExpiresAt:        expiresAt,
	}
}

// subscriptionFromFields rebuilds a subscription from its hash fields.
func subscriptionFromFields(fields map[string]string) (subscriptions.Subscription, error) {
	id, err := strconv.ParseUint(fields[subscriptionFieldID], 10, 64)
	if err != nil {
		return subscriptions.Subscription{}, fmt.Errorf("invalid subscription id field: %w", err)
	}

	nonce, err := strconv.ParseUint(fields[subscriptionFieldNonce], 10, 64)
	if err != nil {
		return subscriptions.Subscription{}, fmt.Errorf("invalid subscription nonce field: %w", err)
	}

	createdAt, err := strconv.ParseInt(fields[subscriptionFieldCreatedAt], 10, 64)
	if err != nil {
		return subscriptions.Subscription{}, fmt.Errorf("invalid subscription created_at field: %w", err)
	}

	expiresAt, err := strconv.ParseInt(fields[subscriptionFieldExpiresAt], 10, 64)
	if err != nil {
		return subscriptions.Subscription{}, fmt.Errorf("invalid subscription expires_at field: %w", err)
	}

	sub := subscriptions.Subscription{
		ID:               id,
		EventType:        fields[subscriptionFieldEventType],
		EventScope:       fields[subscriptionFieldEventScope],
		WebhookURL:       fields[subscriptionFieldWebhookURL],
		LegitimacySecret: fields[subscriptionFieldLegitimacySecret],
		Status:           subscriptions.Status(fields[subscriptionFieldStatus]),
		Nonce:            nonce,
		CreatedAt:        time.Unix(0, createdAt),
	}
	if expiresAt != 0 {
		sub.ExpiresAt = time.Unix(0, expiresAt)
	}

	return sub, nil
}

// CreateSubscription allocates the next id, stores the subscription hash and
// registers the id in the enumeration index.
func (c *client) CreateSubscription(ctx context.Context, sub subscriptions.Subscription) (uint64, error) {
	id, err := c.conn.Incr(ctx, subscriptionsCounterKey).Result()
	if err != nil {
		return 0, err
	}
	sub.ID = uint64(id)

	pipe := c.conn.TxPipeline()
	pipe.HSet(ctx, subscriptionKey(sub.ID), subscriptionToFields(sub))
	pipe.SAdd(ctx, subscriptionsIndexKey, sub.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return sub.ID, nil
}

// GetSubscription loads one subscription, translating a missing hash into
// subscriptions.ErrSubscriptionNotFound.
func (c *client) GetSubscription(ctx context.Context, id uint64) (subscriptions.Subscription, error) {
	fields, err := c.conn.HGetAll(ctx, subscriptionKey(id)).Result()
	if err != nil {
		return subscriptions.Subscription{}, err
	}

	// HGETALL returns an empty map, not redis.Nil, for missing keys
	if len(fields) == 0 {
		return subscriptions.Subscription{}, subscriptions.ErrSubscriptionNotFound
	}

	return subscriptionFromFields(fields)
}

// ListSubscriptions enumerates every subscription registered in the index.
// Ids present in the index whose hash has vanished are skipped.
func (c *client) ListSubscriptions(ctx context.Context) ([]subscriptions.Subscription, error) {
	ids, err := c.conn.SMembers(ctx, subscriptionsIndexKey).Result()
	if err != nil {
		return nil, err
	}

	subs := make([]subscriptions.Subscription, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid subscription id in index: %w", err)
		}

		sub, err := c.GetSubscription(ctx, id)
		if err != nil {
			if errors.Is(err, subscriptions.ErrSubscriptionNotFound) {
				continue
			}
			return nil, err
		}

		subs = append(subs, sub)
	}

	return subs, nil
}

// UpdateSubscriptionStatus sets the status field of one subscription.
func (c *client) UpdateSubscriptionStatus(ctx context.Context, id uint64, status subscriptions.Status) error {
	key := subscriptionKey(id)

	exists, err := c.conn.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return subscriptions.ErrSubscriptionNotFound
	}

	return c.conn.HSet(ctx, key, subscriptionFieldStatus, string(status)).Err()
}

// BatchUpdateStatus sets the status field of every given subscription in a
// single pipelined round trip. Unknown ids become empty hashes with only a
// status field; they are filtered out on read, matching the skip semantics of
// the in-memory store.
func (c *client) BatchUpdateStatus(ctx context.Context, ids []uint64, status subscriptions.Status) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := c.conn.TxPipeline()
	for _, id := range ids {
		pipe.HSet(ctx, subscriptionKey(id), subscriptionFieldStatus, string(status))
	}

	_, err := pipe.Exec(ctx)
	return err
}

// BatchIncrementNonce bumps each given subscription's nonce by exactly one
// with HINCRBY, which is atomic per field even under concurrent batches, and
// returns the resulting values.
func (c *client) BatchIncrementNonce(ctx context.Context, ids []uint64) (map[uint64]uint64, error) {
	if len(ids) == 0 {
		return map[uint64]uint64{}, nil
	}

	pipe := c.conn.TxPipeline()
	cmds := make(map[uint64]*redis.IntCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HIncrBy(ctx, subscriptionKey(id), subscriptionFieldNonce, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	nonces := make(map[uint64]uint64, len(ids))
	for id, cmd := range cmds {
		nonces[id] = uint64(cmd.Val())
	}

	return nonces, nil
}

// Ensure the client satisfies the subscription storage interface at compile time.
var _ subscriptions.SubscriptionStorage = (*client)(nil)
