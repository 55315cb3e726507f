package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/meshgate/internal/events"

	"github.com/redis/go-redis/v9"
)

const (
	// eventsKeyPrefix is the Redis key namespace for stored events.
	eventsKeyPrefix = "events"

	// eventsCounterKey holds the monotonically increasing event id sequence.
	eventsCounterKey = eventsKeyPrefix + ":id"
)

// eventKey builds the Redis key holding one event record.
func eventKey(id uint64) string {
	return fmt.Sprintf("%s:event:%d", eventsKeyPrefix, id)
}

// CreateEvent allocates the next id from the shared counter and stores the
// event as a JSON document under it. Ids are never reused, even across
// restarts, because the counter itself is persisted.
func (c *client) CreateEvent(ctx context.Context, event events.Event) (uint64, error) {
	id, err := c.conn.Incr(ctx, eventsCounterKey).Result()
	if err != nil {
		return 0, err
	}

	event.ID = uint64(id)
	event.Processed = false

	data, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}

	if err := c.conn.Set(ctx, eventKey(event.ID), data, 0).Err(); err != nil {
		return 0, err
	}

	return event.ID, nil
}

// GetEvent loads the event record, translating redis.Nil into
// events.ErrEventNotFound.
func (c *client) GetEvent(ctx context.Context, id uint64) (events.Event, error) {
	data, err := c.conn.Get(ctx, eventKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return events.Event{}, events.ErrEventNotFound
		}
		return events.Event{}, err
	}

	var event events.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return events.Event{}, err
	}

	return event, nil
}

// MarkEventProcessed rewrites the event record with the processed flag set.
func (c *client) MarkEventProcessed(ctx context.Context, id uint64) error {
	event, err := c.GetEvent(ctx, id)
	if err != nil {
		return err
	}

	event.Processed = true

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return c.conn.Set(ctx, eventKey(id), data, 0).Err()
}

// Ensure the client satisfies the event storage interface at compile time.
var _ events.EventStorage = (*client)(nil)
