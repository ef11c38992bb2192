package notification

import (
	"context"
	"errors"
	"log/slog"

	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/audit"
	"govbook/pkg/platform/sentinel"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

const defaultListLimit = 50

// Service owns the in-app notification feed. Rows are created inside the
// transaction of whatever operation caused them; Service also implements the
// booking feature's Notifier port.
type Service struct {
	store    Store
	recorder *audit.Recorder
	runner   txcontext.Runner
	logger   *slog.Logger
}

func NewService(store Store, recorder *audit.Recorder, runner txcontext.Runner, logger *slog.Logger) *Service {
	return &Service{store: store, recorder: recorder, runner: runner, logger: logger}
}

// AppointmentEvent records an appointment-related notification. It joins the
// caller's transaction, so the row commits or rolls back with the booking
// change that caused it.
func (s *Service) AppointmentEvent(ctx context.Context, userID, _ int64, title, message string) error {
	return s.store.Create(ctx, &Notification{
		UserID:    userID,
		Type:      TypeAppointment,
		Title:     title,
		Message:   message,
		CreatedAt: requestcontext.Now(ctx),
	})
}

// System records an operational notification outside any appointment flow.
func (s *Service) System(ctx context.Context, userID int64, title, message string) error {
	return s.store.Create(ctx, &Notification{
		UserID:    userID,
		Type:      TypeSystem,
		Title:     title,
		Message:   message,
		CreatedAt: requestcontext.Now(ctx),
	})
}

// List returns the calling user's notifications, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return s.store.ListByUser(ctx, requestcontext.Actor(ctx).UserID, limit)
}

// UnreadCount returns the caller's unread badge count.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	return s.store.UnreadCount(ctx, requestcontext.Actor(ctx).UserID)
}

// MarkRead marks one of the caller's notifications read. Unknown, foreign,
// and already-read notifications all surface as not found.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	err := s.store.MarkRead(ctx, id, requestcontext.Actor(ctx).UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return err
	}
	return nil
}

// MarkAllRead clears the caller's unread notifications and audits the sweep
// as one entry.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	actor := requestcontext.Actor(ctx)
	var count int64
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.store.MarkAllRead(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		return s.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionNotificationRead,
			Table:    "notifications",
			RecordID: actor.UserID,
			After:    audit.Snapshot(map[string]any{"marked_read": count}),
		})
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
