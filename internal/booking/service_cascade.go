package booking

import (
	"context"

	"govbook/pkg/platform/audit"
	"govbook/pkg/requestcontext"
)

// The methods in this file are the booking-side arms of cascade propagation.
// They run inside the caller's transaction and go through applyStatus, so
// seat release, audit entries, and notifications behave exactly as they do
// for a direct cancellation.

// CancelActiveForUser cancels every PENDING or CONFIRMED appointment of a
// user and returns how many were cancelled.
func (s *Service) CancelActiveForUser(ctx context.Context, userID int64) (int, error) {
	appts, err := s.store.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i := range appts {
		if err := s.applyStatus(ctx, &appts[i], StatusCancelled); err != nil {
			return 0, err
		}
	}
	return len(appts), nil
}

// CancelActiveForService cancels every PENDING or CONFIRMED appointment
// booked against a service.
func (s *Service) CancelActiveForService(ctx context.Context, serviceID int64) (int, error) {
	appts, err := s.store.ListActiveByService(ctx, serviceID)
	if err != nil {
		return 0, err
	}
	for i := range appts {
		if err := s.applyStatus(ctx, &appts[i], StatusCancelled); err != nil {
			return 0, err
		}
	}
	return len(appts), nil
}

// FreeSlotsForService resets every slot of a service to empty and open
// (current_bookings = 0, is_available = true). Seats still held by terminal
// appointments are released here; per-appointment cancellation only frees
// active ones. Returns the number of slots that actually changed.
func (s *Service) FreeSlotsForService(ctx context.Context, serviceID int64) (int, error) {
	slots, err := s.store.ListSlotsByService(ctx, serviceID)
	if err != nil {
		return 0, err
	}
	now := requestcontext.Now(ctx)
	changed := 0
	for i := range slots {
		slot := &slots[i]
		if slot.CurrentBookings == 0 && slot.IsAvailable {
			continue
		}
		before := audit.Snapshot(map[string]any{
			"is_available":     slot.IsAvailable,
			"current_bookings": slot.CurrentBookings,
		})
		slot.CurrentBookings = 0
		slot.IsAvailable = true
		slot.UpdatedAt = now
		if err := s.store.UpdateSlot(ctx, slot); err != nil {
			return 0, err
		}
		if err := s.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionTimeSlotReset,
			Table:    "time_slots",
			RecordID: slot.ID,
			Before:   before,
			After:    audit.Snapshot(map[string]any{"is_available": true, "current_bookings": 0}),
		}); err != nil {
			return 0, err
		}
		s.metrics.AuditAppends.Inc()
		changed++
	}
	return changed, nil
}

// ConfirmIfPending confirms a PENDING appointment, reporting whether a
// confirmation happened. Non-pending appointments are left alone.
func (s *Service) ConfirmIfPending(ctx context.Context, appointmentID int64) (bool, error) {
	appt, err := s.store.GetAppointmentForUpdate(ctx, appointmentID)
	if err != nil {
		return false, err
	}
	if appt.Status != StatusPending {
		return false, nil
	}
	if err := s.applyStatus(ctx, appt, StatusConfirmed); err != nil {
		return false, err
	}
	return true, nil
}
