// Package slotcache is a Redis read-through cache over slot availability,
// the hottest read path in the system. Capacity mutations invalidate the
// whole service's cached days after commit; a stale window of at most one
// invalidation round-trip is acceptable because admission always re-checks
// under the row lock.
package slotcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"govbook/internal/booking"
	"govbook/internal/platform/redis"
)

const (
	keyPrefix  = "govbook:slots"
	defaultTTL = 30 * time.Second
)

// Cache implements booking.AvailabilityCache. With no Redis configured it
// degrades to a passthrough.
type Cache struct {
	store  booking.Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(store booking.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{store: store, client: client, ttl: ttl, logger: logger}
}

func key(serviceID int64, day time.Time) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, serviceID, day.Format("2006-01-02"))
}

// ListAvailableSlots serves from Redis when possible, falling back to the
// store on miss or on any cache error.
func (c *Cache) ListAvailableSlots(ctx context.Context, serviceID int64, day time.Time) ([]booking.TimeSlot, error) {
	if c.client == nil {
		return c.store.ListAvailableSlots(ctx, serviceID, day)
	}

	k := key(serviceID, day)
	raw, err := c.client.Get(ctx, k).Bytes()
	if err == nil {
		var slots []booking.TimeSlot
		if err := json.Unmarshal(raw, &slots); err == nil {
			return slots, nil
		}
		// Unreadable entry: fall through and overwrite it.
	} else if err != goredis.Nil {
		c.logger.WarnContext(ctx, "slot cache read failed", "key", k, "error", err)
	}

	slots, err := c.store.ListAvailableSlots(ctx, serviceID, day)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(slots); err == nil {
		if err := c.client.Set(ctx, k, encoded, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "slot cache write failed", "key", k, "error", err)
		}
	}
	return slots, nil
}

// InvalidateService drops every cached day of a service.
func (c *Cache) InvalidateService(ctx context.Context, serviceID int64) error {
	if c.client == nil {
		return nil
	}
	pattern := fmt.Sprintf("%s:%d:*", keyPrefix, serviceID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan slot cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("drop slot cache keys: %w", err)
	}
	return nil
}
