package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		legal    bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusNoShow, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusNoShow, StatusConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.legal, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestReleasesSeat(t *testing.T) {
	assert.True(t, releasesSeat(StatusPending, StatusCancelled))
	assert.True(t, releasesSeat(StatusConfirmed, StatusCancelled))
	assert.True(t, releasesSeat(StatusConfirmed, StatusNoShow))

	// Confirmation and completion keep the seat held.
	assert.False(t, releasesSeat(StatusPending, StatusConfirmed))
	assert.False(t, releasesSeat(StatusConfirmed, StatusCompleted))
}

func TestTimeSlotCounters(t *testing.T) {
	slot := TimeSlot{MaxCapacity: 2}
	slot.Recompute()
	assert.True(t, slot.IsAvailable)

	slot.TakeSeat()
	assert.True(t, slot.IsAvailable)
	slot.TakeSeat()
	assert.False(t, slot.IsAvailable)
	assert.Equal(t, 2, slot.CurrentBookings)

	slot.ReleaseSeat()
	assert.True(t, slot.IsAvailable)
	assert.Equal(t, 1, slot.CurrentBookings)

	// Release never goes below zero.
	slot.ReleaseSeat()
	slot.ReleaseSeat()
	assert.Equal(t, 0, slot.CurrentBookings)
}
