package notification

import "time"

// Type buckets notifications for client-side filtering.
type Type string

const (
	TypeAppointment Type = "appointment"
	TypeDocument    Type = "document"
	TypeSystem      Type = "system"
)

// Notification is one user-facing message. Rows are written inside the
// transaction of the operation that caused them; delivery over email or SMS
// happens later, tracked by DeliveredAt.
type Notification struct {
	ID          int64
	UserID      int64
	Type        Type
	Title       string
	Message     string
	IsRead      bool
	CreatedAt   time.Time
	ReadAt      time.Time
	DeliveredAt time.Time
}
