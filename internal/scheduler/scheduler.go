// Package scheduler generates time slot calendars for services: working-day
// windows carved into capacity-bounded slots of the service's duration.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"govbook/internal/booking"
	"govbook/internal/directory"
	"govbook/internal/policy"
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/sentinel"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

// Default working window for generated calendars, matching counter opening
// hours.
const (
	defaultOpenHour  = 9
	defaultCloseHour = 16
)

// Services resolves the service whose calendar is being generated.
type Services interface {
	GetService(ctx context.Context, id int64) (*directory.Service, error)
}

type Scheduler struct {
	slots    booking.Store
	services Services
	runner   txcontext.Runner
	logger   *slog.Logger
}

func New(slots booking.Store, services Services, runner txcontext.Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{slots: slots, services: services, runner: runner, logger: logger}
}

// GenerateRequest describes a calendar to generate. Zero hours fall back to
// the default working window; zero capacity falls back to 1.
type GenerateRequest struct {
	ServiceID int64
	From      time.Time
	To        time.Time
	OpenHour  int
	CloseHour int
	Capacity  int
	// IncludeWeekends keeps Saturday and Sunday slots; by default they are
	// skipped.
	IncludeWeekends bool
}

// Generate creates the slots for every working day in [From, To]. Admin only.
// The service must be active and the slot length is its configured duration.
func (s *Scheduler) Generate(ctx context.Context, req GenerateRequest) (int, error) {
	actor := requestcontext.Actor(ctx)
	if actor.Role != policy.RoleAdmin && actor.Role != policy.RoleSystem {
		return 0, pkgerrors.New(pkgerrors.CodePermissionDenied, "admin role required")
	}
	if req.To.Before(req.From) {
		return 0, pkgerrors.New(pkgerrors.CodeBadRequest, "end date is before start date")
	}
	if req.OpenHour == 0 {
		req.OpenHour = defaultOpenHour
	}
	if req.CloseHour == 0 {
		req.CloseHour = defaultCloseHour
	}
	if req.CloseHour <= req.OpenHour {
		return 0, pkgerrors.New(pkgerrors.CodeBadRequest, "closing hour must be after opening hour")
	}
	if req.Capacity <= 0 {
		req.Capacity = 1
	}

	var created int
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		svc, err := s.services.GetService(ctx, req.ServiceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
			}
			return err
		}
		if !svc.IsActive {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "service is deactivated")
		}
		duration := time.Duration(svc.DurationMinutes) * time.Minute
		if duration <= 0 {
			duration = 30 * time.Minute
		}

		now := requestcontext.Now(ctx)
		var slots []booking.TimeSlot
		for day := dateOf(req.From); !day.After(dateOf(req.To)); day = day.AddDate(0, 0, 1) {
			if !req.IncludeWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
				continue
			}
			open := day.Add(time.Duration(req.OpenHour) * time.Hour)
			close := day.Add(time.Duration(req.CloseHour) * time.Hour)
			for start := open; !start.Add(duration).After(close); start = start.Add(duration) {
				slots = append(slots, booking.TimeSlot{
					ServiceID:   req.ServiceID,
					StartTime:   start,
					EndTime:     start.Add(duration),
					MaxCapacity: req.Capacity,
					IsAvailable: true,
					CreatedAt:   now,
				})
			}
		}
		if len(slots) == 0 {
			return pkgerrors.New(pkgerrors.CodeBadRequest, "date range contains no working days")
		}
		if err := s.slots.CreateSlots(ctx, slots); err != nil {
			return err
		}
		created = len(slots)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "slot calendar generated",
		"service_id", req.ServiceID, "slots", created)
	return created, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
