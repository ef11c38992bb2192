package slotcache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"govbook/internal/booking"
	"govbook/internal/slotcache"
)

// Without Redis configured the cache is a straight passthrough.
func TestPassthroughWithoutRedis(t *testing.T) {
	store := booking.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := slotcache.New(store, nil, 0, logger)

	day := time.Now().Add(48 * time.Hour)
	store.SeedSlot(booking.TimeSlot{
		ServiceID:   1,
		StartTime:   day,
		EndTime:     day.Add(30 * time.Minute),
		MaxCapacity: 5,
		IsAvailable: true,
	})

	ctx := context.Background()
	slots, err := cache.ListAvailableSlots(ctx, 1, day)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	require.NoError(t, cache.InvalidateService(ctx, 1))
}
