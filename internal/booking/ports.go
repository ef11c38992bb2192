package booking

import (
	"context"
	"time"
)

// ServiceInfo is the slice of the directory a booking decision needs.
type ServiceInfo struct {
	ID               int64
	DepartmentID     int64
	Name             string
	Active           bool
	DepartmentActive bool
}

// ServiceDirectory resolves services against the directory feature. Reads
// happen inside the booking transaction so the activity flags are consistent
// with the admission decision.
type ServiceDirectory interface {
	ServiceInfo(ctx context.Context, serviceID int64) (*ServiceInfo, error)
}

// Notifier records a user-facing notification. Implementations insert a row
// inside the caller's transaction; delivery over email or SMS happens later,
// outside the transaction.
type Notifier interface {
	AppointmentEvent(ctx context.Context, userID, appointmentID int64, title, message string) error
}

// AvailabilityCache serves slot availability reads and drops cached entries
// after capacity changes. Invalidation runs after commit, never inside the
// transaction.
type AvailabilityCache interface {
	ListAvailableSlots(ctx context.Context, serviceID int64, day time.Time) ([]TimeSlot, error)
	InvalidateService(ctx context.Context, serviceID int64) error
}
