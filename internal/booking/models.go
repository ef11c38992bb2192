package booking

import "time"

// Status is the appointment lifecycle state. Values match the appointments
// status column and are a compatibility surface.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// HoldsSeat reports whether an appointment in this status occupies one unit
// of its time slot's capacity. Seat-holding begins at booking time, not at
// confirmation.
func (s Status) HoldsSeat() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether the appointment can still be cancelled or
// rescheduled by the citizen.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment is a citizen's claim on one seat of a time slot.
type Appointment struct {
	ID               int64
	UserID           int64
	ServiceID        int64
	TimeSlotID       int64
	Status           Status
	BookingReference string
	QRCode           string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TimeSlot is a finite-capacity window offered by a service.
type TimeSlot struct {
	ID              int64
	ServiceID       int64
	StartTime       time.Time
	EndTime         time.Time
	MaxCapacity     int
	CurrentBookings int
	IsAvailable     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Recompute re-derives availability from the counters. Every counter change
// goes through this so is_available never drifts.
func (t *TimeSlot) Recompute() {
	t.IsAvailable = t.CurrentBookings < t.MaxCapacity
}

// ReleaseSeat returns one unit of capacity, clamped at zero.
func (t *TimeSlot) ReleaseSeat() {
	if t.CurrentBookings > 0 {
		t.CurrentBookings--
	}
	t.Recompute()
}

// TakeSeat consumes one unit of capacity. Callers must have checked
// availability under the same lock.
func (t *TimeSlot) TakeSeat() {
	t.CurrentBookings++
	t.Recompute()
}

// Statistics aggregates appointment counts by status for dashboards.
type Statistics struct {
	Total     int
	Pending   int
	Confirmed int
	Completed int
	Cancelled int
	NoShow    int
}
