package document

import "context"

// Store persists document metadata. Implementations join the transaction
// carried in ctx and return pkg/platform/sentinel errors.
type Store interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id int64) (*Document, error)
	GetForUpdate(ctx context.Context, id int64) (*Document, error)
	Update(ctx context.Context, doc *Document) error
	ListByAppointment(ctx context.Context, appointmentID int64) ([]Document, error)
	ListByUser(ctx context.Context, userID int64) ([]Document, error)
}
