// Package sweeper runs periodic retention maintenance: audit rows past their
// retention window and read notifications past theirs.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// AuditPurger removes audit rows older than the cutoff.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleaner removes read notifications older than the cutoff.
type NotificationCleaner interface {
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Sweeper struct {
	audits          AuditPurger
	notifications   NotificationCleaner
	interval        time.Duration
	auditRetention  time.Duration
	notifyRetention time.Duration
	logger          *slog.Logger
}

func New(
	audits AuditPurger,
	notifications NotificationCleaner,
	interval, auditRetention time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		audits:          audits,
		notifications:   notifications,
		interval:        interval,
		auditRetention:  auditRetention,
		notifyRetention: 30 * 24 * time.Hour,
		logger:          logger,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one maintenance pass. Failures are logged, never fatal: the
// next tick retries.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now()

	if s.auditRetention > 0 {
		purged, err := s.audits.PurgeOlderThan(ctx, now.Add(-s.auditRetention))
		if err != nil {
			s.logger.ErrorContext(ctx, "audit retention sweep failed", "error", err)
		} else if purged > 0 {
			s.logger.InfoContext(ctx, "audit rows purged", "rows", purged)
		}
	}

	deleted, err := s.notifications.DeleteReadOlderThan(ctx, now.Add(-s.notifyRetention))
	if err != nil {
		s.logger.ErrorContext(ctx, "notification retention sweep failed", "error", err)
	} else if deleted > 0 {
		s.logger.InfoContext(ctx, "read notifications deleted", "rows", deleted)
	}
}
