package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"govbook/internal/platform/metrics"
	"govbook/internal/policy"
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/audit"
	"govbook/pkg/platform/sentinel"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

// referenceRetries bounds retries on booking reference collisions. Three
// attempts against a 36^6 space makes a triple collision effectively a broken
// random source, which should surface as an error.
const referenceRetries = 3

// Service implements booking admission, the appointment state machine, and
// the read paths over appointments and slots. Every mutation runs in a single
// transaction with its audit entry; the transaction aborts if the audit
// append fails.
type Service struct {
	store     Store
	directory ServiceDirectory
	notifier  Notifier
	cache     AvailabilityCache
	recorder  *audit.Recorder
	runner    txcontext.Runner
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewService(
	store Store,
	directory ServiceDirectory,
	notifier Notifier,
	cache AvailabilityCache,
	recorder *audit.Recorder,
	runner txcontext.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		directory: directory,
		notifier:  notifier,
		cache:     cache,
		recorder:  recorder,
		runner:    runner,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("govbook/booking"),
	}
}

// BookRequest carries everything needed to admit one appointment.
type BookRequest struct {
	UserID     int64
	ServiceID  int64
	TimeSlotID int64
	Notes      string
}

// Book admits an appointment onto a time slot. The slot row is locked for the
// whole decision, so capacity checks and the counter increment are atomic
// even under concurrent requests for the last seat.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book")
	defer span.End()

	if err := policy.Allow(requestcontext.Actor(ctx), req.UserID, policy.ActionBook); err != nil {
		return nil, err
	}

	timer := prometheus.NewTimer(s.metrics.AdmissionDuration)
	defer timer.ObserveDuration()

	var appt *Appointment
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		svc, err := s.directory.ServiceInfo(ctx, req.ServiceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
			}
			return err
		}
		if !svc.Active || !svc.DepartmentActive {
			s.metrics.BookingsRejected.WithLabelValues("service_inactive").Inc()
			return pkgerrors.New(pkgerrors.CodeInvalidState, "service is not accepting appointments")
		}

		slot, err := s.store.GetSlotForUpdate(ctx, req.TimeSlotID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "time slot not found")
			}
			return err
		}
		now := requestcontext.Now(ctx)
		if err := s.admit(ctx, slot, req, now); err != nil {
			return err
		}

		appt, err = s.insertWithFreshReference(ctx, req, now)
		if err != nil {
			return err
		}

		slot.TakeSeat()
		slot.UpdatedAt = now
		if err := s.store.UpdateSlot(ctx, slot); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionAppointmentCreated,
			Table:    "appointments",
			RecordID: appt.ID,
			After: audit.Snapshot(map[string]any{
				"status":            string(appt.Status),
				"booking_reference": appt.BookingReference,
				"service_id":        appt.ServiceID,
				"time_slot_id":      appt.TimeSlotID,
			}),
		}); err != nil {
			return err
		}
		s.metrics.AuditAppends.Inc()

		return s.notifier.AppointmentEvent(ctx, req.UserID, appt.ID,
			"Appointment Booked",
			fmt.Sprintf("Your appointment %s has been booked.", appt.BookingReference))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingsAdmitted.Inc()
	s.invalidate(ctx, req.ServiceID)
	s.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appt.ID,
		"reference", appt.BookingReference,
		"slot_id", appt.TimeSlotID,
	)
	return appt, nil
}

// admit applies every admission precondition against a locked slot.
func (s *Service) admit(ctx context.Context, slot *TimeSlot, req BookRequest, now time.Time) error {
	if slot.ServiceID != req.ServiceID {
		s.metrics.BookingsRejected.WithLabelValues("slot_mismatch").Inc()
		return pkgerrors.New(pkgerrors.CodeBadRequest, "time slot does not belong to the requested service")
	}
	if !slot.StartTime.After(now) {
		s.metrics.BookingsRejected.WithLabelValues("slot_past").Inc()
		return pkgerrors.New(pkgerrors.CodeBadRequest, "time slot is in the past")
	}
	if slot.CurrentBookings >= slot.MaxCapacity {
		s.metrics.BookingsRejected.WithLabelValues("slot_full").Inc()
		return pkgerrors.New(pkgerrors.CodeConflict, "time slot is fully booked")
	}
	dup, err := s.store.HasActiveOnSlot(ctx, req.UserID, req.TimeSlotID)
	if err != nil {
		return err
	}
	if dup {
		s.metrics.BookingsRejected.WithLabelValues("duplicate").Inc()
		return pkgerrors.New(pkgerrors.CodeConflict, "you already hold a booking on this time slot")
	}
	return nil
}

// insertWithFreshReference inserts the appointment, regenerating the booking
// reference on a unique constraint collision.
func (s *Service) insertWithFreshReference(ctx context.Context, req BookRequest, now time.Time) (*Appointment, error) {
	for attempt := 0; attempt < referenceRetries; attempt++ {
		appt := &Appointment{
			UserID:     req.UserID,
			ServiceID:  req.ServiceID,
			TimeSlotID: req.TimeSlotID,
			Status:     StatusPending,
			Notes:      req.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		appt.BookingReference = NewBookingReference(now)

		err := s.store.CreateAppointment(ctx, appt)
		if err == nil {
			appt.QRCode = QRPayload(appt.BookingReference, appt.ID)
			if err := s.store.UpdateAppointment(ctx, appt); err != nil {
				return nil, err
			}
			return appt, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, err
		}
		s.logger.WarnContext(ctx, "booking reference collision, retrying",
			"attempt", attempt+1, "reference", appt.BookingReference)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not generate a unique booking reference")
}

// Reschedule moves an active appointment to another slot of the same service.
// The new slot is validated before anything is mutated, so a rejected
// reschedule leaves both slots and the appointment untouched.
func (s *Service) Reschedule(ctx context.Context, appointmentID, newSlotID int64) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Reschedule")
	defer span.End()

	var appt *Appointment
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.store.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
			}
			return err
		}
		if err := policy.Allow(requestcontext.Actor(ctx), appt.UserID, policy.ActionReschedule); err != nil {
			return err
		}
		if !appt.Status.Active() {
			return pkgerrors.New(pkgerrors.CodeConflict, "only pending or confirmed appointments can be rescheduled")
		}
		if appt.TimeSlotID == newSlotID {
			return nil
		}

		oldSlot, newSlot, err := s.lockSlotPair(ctx, appt.TimeSlotID, newSlotID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		if newSlot.ServiceID != appt.ServiceID {
			return pkgerrors.New(pkgerrors.CodeBadRequest, "time slot does not belong to the appointment's service")
		}
		if !newSlot.StartTime.After(now) {
			return pkgerrors.New(pkgerrors.CodeBadRequest, "time slot is in the past")
		}
		if newSlot.CurrentBookings >= newSlot.MaxCapacity {
			return pkgerrors.New(pkgerrors.CodeConflict, "time slot is fully booked")
		}

		oldSlot.ReleaseSeat()
		oldSlot.UpdatedAt = now
		newSlot.TakeSeat()
		newSlot.UpdatedAt = now
		if err := s.store.UpdateSlot(ctx, oldSlot); err != nil {
			return err
		}
		if err := s.store.UpdateSlot(ctx, newSlot); err != nil {
			return err
		}

		before := audit.Snapshot(map[string]any{"time_slot_id": appt.TimeSlotID, "status": appt.Status})
		// A moved appointment goes back through the confirmation flow.
		appt.TimeSlotID = newSlotID
		appt.Status = StatusPending
		appt.UpdatedAt = now
		if err := s.store.UpdateAppointment(ctx, appt); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionAppointmentRescheduled,
			Table:    "appointments",
			RecordID: appt.ID,
			Before:   before,
			After:    audit.Snapshot(map[string]any{"time_slot_id": newSlotID, "status": StatusPending}),
		}); err != nil {
			return err
		}
		s.metrics.AuditAppends.Inc()

		return s.notifier.AppointmentEvent(ctx, appt.UserID, appt.ID,
			"Appointment Rescheduled",
			fmt.Sprintf("Your appointment %s has been moved to a new time slot.", appt.BookingReference))
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, appt.ServiceID)
	return appt, nil
}

// lockSlotPair locks two slots in ascending ID order so concurrent
// reschedules between the same pair cannot deadlock.
func (s *Service) lockSlotPair(ctx context.Context, oldID, newID int64) (oldSlot, newSlot *TimeSlot, err error) {
	first, second := oldID, newID
	if second < first {
		first, second = second, first
	}
	a, err := s.store.GetSlotForUpdate(ctx, first)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "time slot not found")
		}
		return nil, nil, err
	}
	b, err := s.store.GetSlotForUpdate(ctx, second)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "time slot not found")
		}
		return nil, nil, err
	}
	if a.ID == oldID {
		return a, b, nil
	}
	return b, a, nil
}

// Transition applies an officer- or admin-driven status change.
func (s *Service) Transition(ctx context.Context, appointmentID int64, to Status) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Transition")
	defer span.End()

	if !to.Valid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeBadRequest, "unknown status %q", string(to))
	}

	var appt *Appointment
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.store.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
			}
			return err
		}
		if err := policy.Allow(requestcontext.Actor(ctx), appt.UserID, policy.ActionTransition); err != nil {
			return err
		}
		return s.applyStatus(ctx, appt, to)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, appt.ServiceID)
	return appt, nil
}

// Cancel is the citizen-facing cancellation. It is idempotent: cancelling an
// already-cancelled appointment succeeds without touching counters or the
// audit trail.
func (s *Service) Cancel(ctx context.Context, appointmentID int64) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Cancel")
	defer span.End()

	var appt *Appointment
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.store.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
			}
			return err
		}
		if err := policy.Allow(requestcontext.Actor(ctx), appt.UserID, policy.ActionCancel); err != nil {
			return err
		}
		return s.applyStatus(ctx, appt, StatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, appt.ServiceID)
	return appt, nil
}

// applyStatus runs the state machine against a row-locked appointment. Seat
// release, the audit entry, and the status write commit together.
func (s *Service) applyStatus(ctx context.Context, appt *Appointment, to Status) error {
	from := appt.Status
	if from == to {
		return nil
	}
	if from.Terminal() {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "appointment is already %s", string(from))
	}
	if !CanTransition(from, to) {
		return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot move appointment from %s to %s", string(from), string(to))
	}

	now := requestcontext.Now(ctx)
	if releasesSeat(from, to) {
		slot, err := s.store.GetSlotForUpdate(ctx, appt.TimeSlotID)
		if err != nil {
			return err
		}
		slot.ReleaseSeat()
		slot.UpdatedAt = now
		if err := s.store.UpdateSlot(ctx, slot); err != nil {
			return err
		}
	}

	appt.Status = to
	appt.UpdatedAt = now
	if err := s.store.UpdateAppointment(ctx, appt); err != nil {
		return err
	}

	if err := s.recorder.Record(ctx, audit.Entry{
		Action:   audit.ActionAppointmentStatus,
		Table:    "appointments",
		RecordID: appt.ID,
		Before:   audit.Snapshot(map[string]any{"status": string(from)}),
		After:    audit.Snapshot(map[string]any{"status": string(to)}),
	}); err != nil {
		return err
	}
	s.metrics.AuditAppends.Inc()
	s.metrics.Transitions.WithLabelValues(string(to)).Inc()

	return s.notifier.AppointmentEvent(ctx, appt.UserID, appt.ID,
		statusTitle(to),
		fmt.Sprintf("Your appointment %s is now %s.", appt.BookingReference, string(to)))
}

func statusTitle(to Status) string {
	switch to {
	case StatusConfirmed:
		return "Appointment Confirmed"
	case StatusCompleted:
		return "Appointment Completed"
	case StatusCancelled:
		return "Appointment Cancelled"
	case StatusNoShow:
		return "Appointment Marked No-Show"
	}
	return "Appointment Updated"
}

// Get returns one appointment. Citizens can only read their own.
func (s *Service) Get(ctx context.Context, appointmentID int64) (*Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, err
	}
	if err := s.allowRead(ctx, appt.UserID); err != nil {
		return nil, err
	}
	return appt, nil
}

// GetByReference resolves a booking reference, e.g. from a scanned QR code.
func (s *Service) GetByReference(ctx context.Context, reference string) (*Appointment, error) {
	appt, err := s.store.GetAppointmentByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, err
	}
	if err := s.allowRead(ctx, appt.UserID); err != nil {
		return nil, err
	}
	return appt, nil
}

// ListMine returns the calling user's appointments, newest first.
func (s *Service) ListMine(ctx context.Context) ([]Appointment, error) {
	actor := requestcontext.Actor(ctx)
	return s.store.ListAppointmentsByUser(ctx, actor.UserID)
}

// AvailableSlots lists bookable slots for a service on a given day, served
// through the availability cache.
func (s *Service) AvailableSlots(ctx context.Context, serviceID int64, day time.Time) ([]TimeSlot, error) {
	return s.cache.ListAvailableSlots(ctx, serviceID, day)
}

// Statistics aggregates appointment counts for dashboards. Officer or admin
// only.
func (s *Service) Statistics(ctx context.Context, serviceID, departmentID int64) (*Statistics, error) {
	actor := requestcontext.Actor(ctx)
	if actor.Role != policy.RoleOfficer && actor.Role != policy.RoleAdmin && actor.Role != policy.RoleSystem {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "statistics require an officer or admin role")
	}
	return s.store.Statistics(ctx, serviceID, departmentID)
}

func (s *Service) allowRead(ctx context.Context, ownerID int64) error {
	actor := requestcontext.Actor(ctx)
	if actor.UserID == ownerID {
		return nil
	}
	switch actor.Role {
	case policy.RoleOfficer, policy.RoleAdmin, policy.RoleSystem:
		return nil
	}
	return pkgerrors.New(pkgerrors.CodePermissionDenied, "you may only view your own appointments")
}

// invalidate drops cached availability after a capacity change. Called after
// commit; a cache miss is the worst possible outcome, so failures are logged
// and swallowed.
func (s *Service) invalidate(ctx context.Context, serviceID int64) {
	if err := s.cache.InvalidateService(ctx, serviceID); err != nil {
		s.logger.WarnContext(ctx, "availability cache invalidation failed",
			"service_id", serviceID, "error", err)
	}
}
