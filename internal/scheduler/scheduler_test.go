package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govbook/internal/booking"
	"govbook/internal/directory"
	"govbook/internal/policy"
	pkgerrors "govbook/pkg/domain-errors"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

func setup(t *testing.T) (*Scheduler, *booking.InMemoryStore, *directory.InMemoryStore) {
	t.Helper()
	bookStore := booking.NewInMemoryStore()
	dirStore := directory.NewInMemoryStore()
	sched := New(bookStore, dirStore, txcontext.NewMemoryRunner(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return sched, bookStore, dirStore
}

func adminCtx() context.Context {
	return requestcontext.WithActor(context.Background(),
		requestcontext.ActorInfo{UserID: 1, Role: policy.RoleAdmin})
}

func seedService(t *testing.T, dirStore *directory.InMemoryStore, duration int) directory.Service {
	t.Helper()
	dept := directory.Department{Name: "Dept", IsActive: true}
	require.NoError(t, dirStore.CreateDepartment(context.Background(), &dept))
	svc := directory.Service{DepartmentID: dept.ID, Name: "Svc", DurationMinutes: duration, IsActive: true}
	require.NoError(t, dirStore.CreateService(context.Background(), &svc))
	return svc
}

func TestGenerateSkipsWeekends(t *testing.T) {
	sched, bookStore, dirStore := setup(t)
	svc := seedService(t, dirStore, 60)

	// Friday through Monday: two working days.
	from := time.Date(2025, time.June, 6, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC)

	created, err := sched.Generate(adminCtx(), GenerateRequest{
		ServiceID: svc.ID, From: from, To: to, Capacity: 3,
	})
	require.NoError(t, err)
	// 9:00-16:00 at 60 minutes is 7 slots per day, 2 working days.
	assert.Equal(t, 14, created)

	slots, err := bookStore.ListSlotsByService(context.Background(), svc.ID)
	require.NoError(t, err)
	require.Len(t, slots, 14)
	for _, slot := range slots {
		assert.NotEqual(t, time.Saturday, slot.StartTime.Weekday())
		assert.NotEqual(t, time.Sunday, slot.StartTime.Weekday())
		assert.Equal(t, 3, slot.MaxCapacity)
		assert.True(t, slot.IsAvailable)
		assert.Equal(t, time.Hour, slot.EndTime.Sub(slot.StartTime))
	}
}

func TestGenerateUsesServiceDuration(t *testing.T) {
	sched, bookStore, dirStore := setup(t)
	svc := seedService(t, dirStore, 30)

	day := time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC) // Wednesday
	created, err := sched.Generate(adminCtx(), GenerateRequest{ServiceID: svc.ID, From: day, To: day})
	require.NoError(t, err)
	assert.Equal(t, 14, created) // 7 hours / 30 minutes

	slots, err := bookStore.ListSlotsByService(context.Background(), svc.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, slots[0].StartTime.Hour())
	last := slots[len(slots)-1]
	assert.False(t, last.EndTime.After(day.Add(16*time.Hour)))
}

func TestGenerateValidation(t *testing.T) {
	sched, _, dirStore := setup(t)
	svc := seedService(t, dirStore, 30)
	day := time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC)

	t.Run("requires admin", func(t *testing.T) {
		ctx := requestcontext.WithActor(context.Background(),
			requestcontext.ActorInfo{UserID: 7, Role: policy.RoleCitizen})
		_, err := sched.Generate(ctx, GenerateRequest{ServiceID: svc.ID, From: day, To: day})
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
	})

	t.Run("weekend-only range without weekends", func(t *testing.T) {
		sat := time.Date(2025, time.June, 7, 0, 0, 0, 0, time.UTC)
		_, err := sched.Generate(adminCtx(), GenerateRequest{ServiceID: svc.ID, From: sat, To: sat})
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := sched.Generate(adminCtx(), GenerateRequest{ServiceID: svc.ID, From: day, To: day.AddDate(0, 0, -1)})
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := sched.Generate(adminCtx(), GenerateRequest{ServiceID: 9999, From: day, To: day})
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	})

	t.Run("deactivated service", func(t *testing.T) {
		require.NoError(t, dirStore.SetServiceActive(context.Background(), svc.ID, false))
		_, err := sched.Generate(adminCtx(), GenerateRequest{ServiceID: svc.ID, From: day, To: day})
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidState))
	})
}
