package booking

import (
	"context"
	"time"
)

// Store persists appointments and time slots. Implementations join the
// transaction carried in ctx; ForUpdate variants take a row lock held until
// that transaction ends.
//
// Store methods return pkg/platform/sentinel errors; the service translates
// them into coded domain errors.
type Store interface {
	GetAppointment(ctx context.Context, id int64) (*Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, id int64) (*Appointment, error)
	GetAppointmentByReference(ctx context.Context, reference string) (*Appointment, error)
	ListAppointmentsByUser(ctx context.Context, userID int64) ([]Appointment, error)
	// ListActiveByUser returns the user's PENDING and CONFIRMED appointments,
	// locked for update. Cascades cancel these.
	ListActiveByUser(ctx context.Context, userID int64) ([]Appointment, error)
	// ListActiveByService returns PENDING and CONFIRMED appointments for a
	// service, locked for update.
	ListActiveByService(ctx context.Context, serviceID int64) ([]Appointment, error)
	// HasActiveOnSlot reports whether the user already holds a PENDING or
	// CONFIRMED appointment on the slot.
	HasActiveOnSlot(ctx context.Context, userID, timeSlotID int64) (bool, error)
	// CreateAppointment inserts the appointment and fills ID and CreatedAt.
	// A booking reference collision surfaces as sentinel.ErrConflict.
	CreateAppointment(ctx context.Context, appt *Appointment) error
	UpdateAppointment(ctx context.Context, appt *Appointment) error
	Statistics(ctx context.Context, serviceID, departmentID int64) (*Statistics, error)

	GetSlot(ctx context.Context, id int64) (*TimeSlot, error)
	GetSlotForUpdate(ctx context.Context, id int64) (*TimeSlot, error)
	UpdateSlot(ctx context.Context, slot *TimeSlot) error
	CreateSlots(ctx context.Context, slots []TimeSlot) error
	// ListSlotsByService returns every slot of a service, locked for update.
	// The service-deactivation cascade resets these.
	ListSlotsByService(ctx context.Context, serviceID int64) ([]TimeSlot, error)
	ListAvailableSlots(ctx context.Context, serviceID int64, day time.Time) ([]TimeSlot, error)
}
