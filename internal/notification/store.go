package notification

import (
	"context"
	"time"
)

// Store persists notifications. Implementations join the transaction carried
// in ctx and return pkg/platform/sentinel errors.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id int64) (*Notification, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)

	// ListUndelivered returns a batch of undelivered notifications, locked
	// so concurrent dispatchers never double-send.
	ListUndelivered(ctx context.Context, limit int) ([]Notification, error)
	MarkDelivered(ctx context.Context, ids []int64) error

	// DeleteReadOlderThan removes read notifications past their retention.
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
