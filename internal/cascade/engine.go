// Package cascade propagates entity activation changes through their
// dependents: departments fan out to services and officers, services fan out
// to appointments and slots, users fan out to their appointments, their
// officer role, and their notification feed. Propagation is bounded at two
// hops and every touched row gets its own audit entry, parent first, all
// inside one transaction.
package cascade

import (
	"context"
	"errors"
	"log/slog"

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

// Directory is the slice of the directory store the engine needs. Reads lock
// the row so activation flips are serialized per entity.
type Directory interface {
	UserActiveForUpdate(ctx context.Context, userID int64) (bool, error)
	SetUserActive(ctx context.Context, userID int64, active bool) error

	DepartmentActiveForUpdate(ctx context.Context, departmentID int64) (bool, error)
	SetDepartmentActive(ctx context.Context, departmentID int64, active bool) error

	ServiceActiveForUpdate(ctx context.Context, serviceID int64) (bool, error)
	SetServiceActive(ctx context.Context, serviceID int64, active bool) error
	ListServiceIDsByDepartment(ctx context.Context, departmentID int64) ([]int64, error)

	ListOfficerIDsByDepartment(ctx context.Context, departmentID int64) ([]int64, error)
	// OfficerIDByUser resolves the officer role bound to a user, if any.
	// Returns sentinel.ErrNotFound for plain citizens.
	OfficerIDByUser(ctx context.Context, userID int64) (int64, error)
	OfficerActiveForUpdate(ctx context.Context, officerID int64) (bool, error)
	SetOfficerActive(ctx context.Context, officerID int64, active bool) error
}

// Bookings is the booking-side arm of propagation. The booking service
// implements it; its methods run inside the engine's transaction.
type Bookings interface {
	CancelActiveForUser(ctx context.Context, userID int64) (int, error)
	CancelActiveForService(ctx context.Context, serviceID int64) (int, error)
	FreeSlotsForService(ctx context.Context, serviceID int64) (int, error)
	ConfirmIfPending(ctx context.Context, appointmentID int64) (bool, error)
}

// Notifications silences the feed of a user leaving the system.
type Notifications interface {
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

// Invalidator drops cached availability after commit.
type Invalidator interface {
	InvalidateService(ctx context.Context, serviceID int64) error
}

// Result reports how many rows one cascade touched.
type Result struct {
	AppointmentsCancelled int `json:"appointments_cancelled"`
	ServicesDeactivated   int `json:"services_deactivated"`
	ServicesReactivated   int `json:"services_reactivated"`
	OfficersDeactivated   int `json:"officers_deactivated"`
	OfficersReactivated   int `json:"officers_reactivated"`
	SlotsChanged          int `json:"slots_changed"`
	NotificationsRead     int `json:"notifications_read"`
}

type Engine struct {
	directory     Directory
	bookings      Bookings
	notifications Notifications
	cache         Invalidator
	recorder      *audit.Recorder
	runner        txcontext.Runner
	metrics       *metrics.Metrics
	logger        *slog.Logger
	tracer        trace.Tracer
}

func NewEngine(
	directory Directory,
	bookings Bookings,
	notifications Notifications,
	cache Invalidator,
	recorder *audit.Recorder,
	runner txcontext.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		directory:     directory,
		bookings:      bookings,
		notifications: notifications,
		cache:         cache,
		recorder:      recorder,
		runner:        runner,
		metrics:       m,
		logger:        logger,
		tracer:        otel.Tracer("govbook/cascade"),
	}
}

// DeactivateUser deactivates a user, cancels their active appointments,
// deactivates any officer role bound to them, and marks their unread
// notifications read. Deactivating an already-inactive user is a no-op.
func (e *Engine) DeactivateUser(ctx context.Context, userID int64) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "cascade.DeactivateUser")
	defer span.End()

	if err := e.allow(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	err := e.runner.RunInTx(ctx, func(ctx context.Context) error {
		active, err := e.directory.UserActiveForUpdate(ctx, userID)
		if err != nil {
			return notFoundAs(err, "user not found")
		}
		if !active {
			return nil
		}
		if err := e.directory.SetUserActive(ctx, userID, false); err != nil {
			return err
		}
		if err := e.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionUserDeactivated,
			Table:    "users",
			RecordID: userID,
			Before:   audit.Snapshot(map[string]any{"is_active": true}),
			After:    audit.Snapshot(map[string]any{"is_active": false}),
		}); err != nil {
			return err
		}
		res.AppointmentsCancelled, err = e.bookings.CancelActiveForUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := e.setUserOfficerActive(ctx, userID, false, res); err != nil {
			return err
		}

		read, err := e.notifications.MarkAllRead(ctx, userID)
		if err != nil {
			return err
		}
		res.NotificationsRead = int(read)
		if read > 0 {
			if err := e.recorder.Record(ctx, audit.Entry{
				Action:   audit.ActionNotificationRead,
				Table:    "notifications",
				RecordID: userID,
				After:    audit.Snapshot(map[string]any{"user_id": userID, "marked_read": read}),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.CascadeRows.WithLabelValues("user").Add(float64(1 +
		res.AppointmentsCancelled + res.OfficersDeactivated + res.NotificationsRead))
	e.logger.InfoContext(ctx, "user deactivated",
		"user_id", userID,
		"appointments_cancelled", res.AppointmentsCancelled,
		"officers_deactivated", res.OfficersDeactivated,
		"notifications_read", res.NotificationsRead)
	return res, nil
}

// setUserOfficerActive flips the officer role bound to a user, if one exists
// and is not already in the target state.
func (e *Engine) setUserOfficerActive(ctx context.Context, userID int64, active bool, res *Result) error {
	officerID, err := e.directory.OfficerIDByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	}
	current, err := e.directory.OfficerActiveForUpdate(ctx, officerID)
	if err != nil {
		return err
	}
	if current == active {
		return nil
	}
	if err := e.directory.SetOfficerActive(ctx, officerID, active); err != nil {
		return err
	}
	action := audit.ActionOfficerDeactivated
	if active {
		action = audit.ActionOfficerReactivated
	}
	if err := e.recorder.Record(ctx, audit.Entry{
		Action:   action,
		Table:    "government_officers",
		RecordID: officerID,
		Before:   audit.Snapshot(map[string]any{"is_active": current}),
		After:    audit.Snapshot(map[string]any{"is_active": active}),
	}); err != nil {
		return err
	}
	if active {
		res.OfficersReactivated++
	} else {
		res.OfficersDeactivated++
	}
	return nil
}

// ReactivateUser restores the user's account and any officer role bound to
// them. Appointments cancelled by the deactivation stay cancelled; the
// citizen books again.
func (e *Engine) ReactivateUser(ctx context.Context, userID int64) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "cascade.ReactivateUser")
	defer span.End()

	if err := e.allow(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	err := e.runner.RunInTx(ctx, func(ctx context.Context) error {
		active, err := e.directory.UserActiveForUpdate(ctx, userID)
		if err != nil {
			return notFoundAs(err, "user not found")
		}
		if active {
			return nil
		}
		if err := e.directory.SetUserActive(ctx, userID, true); err != nil {
			return err
		}
		if err := e.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionUserReactivated,
			Table:    "users",
			RecordID: userID,
			Before:   audit.Snapshot(map[string]any{"is_active": false}),
			After:    audit.Snapshot(map[string]any{"is_active": true}),
		}); err != nil {
			return err
		}
		return e.setUserOfficerActive(ctx, userID, true, res)
	})
	if err != nil {
		return nil, err
	}
	e.metrics.CascadeRows.WithLabelValues("user").Add(float64(1 + res.OfficersReactivated))
	return res, nil
}

// DeactivateService closes a service: active appointments are cancelled, and
// every slot is reset to empty and open so a later reactivation starts from
// a clean book.
func (e *Engine) DeactivateService(ctx context.Context, serviceID int64) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "cascade.DeactivateService")
	defer span.End()

	if err := e.allow(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	err := e.runner.RunInTx(ctx, func(ctx context.Context) error {
		active, err := e.directory.ServiceActiveForUpdate(ctx, serviceID)
		if err != nil {
			return notFoundAs(err, "service not found")
		}
		if !active {
			return nil
		}
		return e.deactivateServiceLocked(ctx, serviceID, res)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.CascadeRows.WithLabelValues("service").
		Add(float64(1 + res.AppointmentsCancelled + res.SlotsChanged))
	e.invalidate(ctx, serviceID)
	e.logger.InfoContext(ctx, "service deactivated",
		"service_id", serviceID,
		"appointments_cancelled", res.AppointmentsCancelled,
		"slots_changed", res.SlotsChanged)
	return res, nil
}

// deactivateServiceLocked flips one already-locked active service and fans
// out to its appointments and slots. Shared by the service and department
// cascades.
func (e *Engine) deactivateServiceLocked(ctx context.Context, serviceID int64, res *Result) error {
	if err := e.directory.SetServiceActive(ctx, serviceID, false); err != nil {
		return err
	}
	if err := e.recorder.Record(ctx, audit.Entry{
		Action:   audit.ActionServiceDeactivated,
		Table:    "services",
		RecordID: serviceID,
		Before:   audit.Snapshot(map[string]any{"is_active": true}),
		After:    audit.Snapshot(map[string]any{"is_active": false}),
	}); err != nil {
		return err
	}
	res.ServicesDeactivated++

	cancelled, err := e.bookings.CancelActiveForService(ctx, serviceID)
	if err != nil {
		return err
	}
	res.AppointmentsCancelled += cancelled

	freed, err := e.bookings.FreeSlotsForService(ctx, serviceID)
	if err != nil {
		return err
	}
	res.SlotsChanged += freed
	return nil
}

// ReactivateService reopens a service. Slots were already reset when the
// service was deactivated, so only the flag flips; cancelled appointments
// are not resurrected.
func (e *Engine) ReactivateService(ctx context.Context, serviceID int64) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "cascade.ReactivateService")
	defer span.End()

	if err := e.allow(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	err := e.runner.RunInTx(ctx, func(ctx context.Context) error {
		active, err := e.directory.ServiceActiveForUpdate(ctx, serviceID)
		if err != nil {
			return notFoundAs(err, "service not found")
		}
		if active {
			return nil
		}
		return e.reactivateServiceLocked(ctx, serviceID, res)
	})
	if err != nil {
		return nil, err
	}
	e.metrics.CascadeRows.WithLabelValues("service").Inc()
	e.invalidate(ctx, serviceID)
	return res, nil
}

func (e *Engine) reactivateServiceLocked(ctx context.Context, serviceID int64, res *Result) error {
	if err := e.directory.SetServiceActive(ctx, serviceID, true); err != nil {
		return err
	}
	if err := e.recorder.Record(ctx, audit.Entry{
		Action:   audit.ActionServiceReactivated,
		Table:    "services",
		RecordID: serviceID,
		Before:   audit.Snapshot(map[string]any{"is_active": false}),
		After:    audit.Snapshot(map[string]any{"is_active": true}),
	}); err != nil {
		return err
	}
	res.ServicesReactivated++
	return nil
}

// DeactivateDepartment closes a department and everything under it: services
// (with their appointments and slots) and officers. Propagation stops at the
// appointment and slot rows.
func (e *Engine) DeactivateDepartment(ctx context.Context, departmentID int64) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "cascade.DeactivateDepartment")
	defer span.End()

	if err := e.allow(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	var serviceIDs []int64
	err := e.runner.RunInTx(ctx, func(ctx context.Context) error {
		active, err := e.directory.DepartmentActiveForUpdate(ctx, departmentID)
		if err != nil {
			return notFoundAs(err, "department not found")
		}
		if !active {
			return nil
		}
		if err := e.directory.SetDepartmentActive(ctx, departmentID, false); err != nil {
			return err
		}
		if err := e.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionDepartmentDeactivated,
			Table:    "departments",
			RecordID: departmentID,
			Before:   audit.Snapshot(map[string]any{"is_active": true}),
			After:    audit.Snapshot(map[string]any{"is_active": false}),
		}); err != nil {
			return err
		}

		serviceIDs, err = e.directory.ListServiceIDsByDepartment(ctx, departmentID)
		if err != nil {
			return err
		}
		for _, id := range serviceIDs {
			svcActive, err := e.directory.ServiceActiveForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !svcActive {
				continue
			}
			if err := e.deactivateServiceLocked(ctx, id, res); err != nil {
				return err
			}
		}

		officerIDs, err := e.directory.ListOfficerIDsByDepartment(ctx, departmentID)
		if err != nil {
			return err
		}
		for _, id := range officerIDs {
			offActive, err := e.directory.OfficerActiveForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !offActive {
				continue
			}
			if err := e.directory.SetOfficerActive(ctx, id, false); err != nil {
				return err
			}
			if err := e.recorder.Record(ctx, audit.Entry{
				Action:   audit.ActionOfficerDeactivated,
				Table:    "government_officers",
				RecordID: id,
				Before:   audit.Snapshot(map[string]any{"is_active": true}),
				After:    audit.Snapshot(map[string]any{"is_active": false}),
			}); err != nil {
				return err
			}
			res.OfficersDeactivated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.CascadeRows.WithLabelValues("department").Add(float64(1 +
		res.ServicesDeactivated + res.OfficersDeactivated +
		res.AppointmentsCancelled + res.SlotsChanged))
	for _, id := range serviceIDs {
		e.invalidate(ctx, id)
	}
	e.logger.InfoContext(ctx, "department deactivated",
		"department_id", departmentID,
		"services_deactivated", res.ServicesDeactivated,
		"officers_deactivated", res.OfficersDeactivated,
		"appointments_cancelled", res.AppointmentsCancelled)
	return res, nil
}

// ReactivateDepartment reopens a department with all of its services and
// officers. Appointments cancelled during deactivation stay cancelled.
func (e *Engine) ReactivateDepartment(ctx context.Context, departmentID int64) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "cascade.ReactivateDepartment")
	defer span.End()

	if err := e.allow(ctx); err != nil {
		return nil, err
	}

	res := &Result{}
	var serviceIDs []int64
	err := e.runner.RunInTx(ctx, func(ctx context.Context) error {
		active, err := e.directory.DepartmentActiveForUpdate(ctx, departmentID)
		if err != nil {
			return notFoundAs(err, "department not found")
		}
		if active {
			return nil
		}
		if err := e.directory.SetDepartmentActive(ctx, departmentID, true); err != nil {
			return err
		}
		if err := e.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionDepartmentReactivated,
			Table:    "departments",
			RecordID: departmentID,
			Before:   audit.Snapshot(map[string]any{"is_active": false}),
			After:    audit.Snapshot(map[string]any{"is_active": true}),
		}); err != nil {
			return err
		}

		serviceIDs, err = e.directory.ListServiceIDsByDepartment(ctx, departmentID)
		if err != nil {
			return err
		}
		for _, id := range serviceIDs {
			svcActive, err := e.directory.ServiceActiveForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if svcActive {
				continue
			}
			if err := e.reactivateServiceLocked(ctx, id, res); err != nil {
				return err
			}
		}

		officerIDs, err := e.directory.ListOfficerIDsByDepartment(ctx, departmentID)
		if err != nil {
			return err
		}
		for _, id := range officerIDs {
			offActive, err := e.directory.OfficerActiveForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if offActive {
				continue
			}
			if err := e.directory.SetOfficerActive(ctx, id, true); err != nil {
				return err
			}
			if err := e.recorder.Record(ctx, audit.Entry{
				Action:   audit.ActionOfficerReactivated,
				Table:    "government_officers",
				RecordID: id,
				Before:   audit.Snapshot(map[string]any{"is_active": false}),
				After:    audit.Snapshot(map[string]any{"is_active": true}),
			}); err != nil {
				return err
			}
			res.OfficersReactivated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.CascadeRows.WithLabelValues("department").Add(float64(1 +
		res.ServicesReactivated + res.OfficersReactivated))
	for _, id := range serviceIDs {
		e.invalidate(ctx, id)
	}
	return res, nil
}

// OnDocumentVerified confirms the appointment a just-verified document
// belongs to, if it is still pending. Called by the document feature inside
// its own transaction.
func (e *Engine) OnDocumentVerified(ctx context.Context, appointmentID int64) (bool, error) {
	return e.bookings.ConfirmIfPending(ctx, appointmentID)
}

func (e *Engine) allow(ctx context.Context) error {
	return policy.Allow(requestcontext.Actor(ctx), 0, policy.ActionCascade)
}

func (e *Engine) invalidate(ctx context.Context, serviceID int64) {
	if err := e.cache.InvalidateService(ctx, serviceID); err != nil {
		e.logger.WarnContext(ctx, "availability cache invalidation failed",
			"service_id", serviceID, "error", err)
	}
}

func notFoundAs(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return err
}
