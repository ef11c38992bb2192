//go:build integration

package slotcache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"govbook/internal/booking"
	"govbook/internal/platform/redis"
	"govbook/internal/slotcache"
	"govbook/pkg/testutil/containers"
)

func setupCache(t *testing.T) (*slotcache.Cache, *booking.InMemoryStore, *containers.RedisContainer) {
	t.Helper()

	rc := containers.NewRedisContainer(t)
	require.NoError(t, rc.FlushAll(context.Background()))

	store := booking.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := slotcache.New(store, &redis.Client{Client: rc.Client}, time.Minute, logger)
	return cache, store, rc
}

func seedSlot(store *booking.InMemoryStore, serviceID int64, start time.Time) booking.TimeSlot {
	return store.SeedSlot(booking.TimeSlot{
		ServiceID:   serviceID,
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		MaxCapacity: 5,
		IsAvailable: true,
	})
}

func TestCacheServesStaleUntilInvalidated(t *testing.T) {
	cache, store, _ := setupCache(t)
	ctx := context.Background()

	day := time.Now().Add(48 * time.Hour)
	seedSlot(store, 1, day)

	slots, err := cache.ListAvailableSlots(ctx, 1, day)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	// A second slot appears in the store but the cached day hides it.
	seedSlot(store, 1, day.Add(time.Hour))
	slots, err = cache.ListAvailableSlots(ctx, 1, day)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	require.NoError(t, cache.InvalidateService(ctx, 1))
	slots, err = cache.ListAvailableSlots(ctx, 1, day)
	require.NoError(t, err)
	require.Len(t, slots, 2)
}

func TestInvalidateIsScopedToService(t *testing.T) {
	cache, store, _ := setupCache(t)
	ctx := context.Background()

	day := time.Now().Add(48 * time.Hour)
	seedSlot(store, 1, day)
	seedSlot(store, 2, day)

	// Warm both services.
	_, err := cache.ListAvailableSlots(ctx, 1, day)
	require.NoError(t, err)
	_, err = cache.ListAvailableSlots(ctx, 2, day)
	require.NoError(t, err)

	seedSlot(store, 1, day.Add(time.Hour))
	seedSlot(store, 2, day.Add(time.Hour))

	require.NoError(t, cache.InvalidateService(ctx, 1))

	slots, err := cache.ListAvailableSlots(ctx, 1, day)
	require.NoError(t, err)
	require.Len(t, slots, 2, "invalidated service re-reads the store")

	slots, err = cache.ListAvailableSlots(ctx, 2, day)
	require.NoError(t, err)
	require.Len(t, slots, 1, "sibling service keeps its cached day")
}
