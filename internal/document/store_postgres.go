package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"govbook/pkg/platform/sentinel"
	txcontext "govbook/pkg/platform/tx"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

const documentColumns = `id, user_id, COALESCE(appointment_id, 0), document_type, file_name, file_path,
	COALESCE(mime_type, ''), is_verified, COALESCE(verification_notes, ''), uploaded_at,
	COALESCE(verified_at, 'epoch'::timestamptz)`

func (s *PostgresStore) Create(ctx context.Context, doc *Document) error {
	var appointmentID any
	if doc.AppointmentID != 0 {
		appointmentID = doc.AppointmentID
	}
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO documents (user_id, appointment_id, document_type, file_name, file_path, mime_type, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, uploaded_at
	`, doc.UserID, appointmentID, doc.DocumentType, doc.FileName, doc.FilePath, doc.MimeType, doc.UploadedAt).
		Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Document, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, id int64) (*Document, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
	return scanDocument(row)
}

func (s *PostgresStore) Update(ctx context.Context, doc *Document) error {
	var verifiedAt any
	if !doc.VerifiedAt.IsZero() {
		verifiedAt = doc.VerifiedAt
	}
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE documents
		SET is_verified = $2, verification_notes = $3, verified_at = $4
		WHERE id = $1
	`, doc.ID, doc.IsVerified, doc.VerificationNotes, verifiedAt)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update document: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListByAppointment(ctx context.Context, appointmentID int64) ([]Document, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE appointment_id = $1 ORDER BY uploaded_at`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list documents by appointment: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID int64) ([]Document, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents by user: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.UserID, &d.AppointmentID, &d.DocumentType, &d.FileName, &d.FilePath,
		&d.MimeType, &d.IsVerified, &d.VerificationNotes, &d.UploadedAt, &d.VerifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	normalizeVerifiedAt(&d)
	return &d, nil
}

func scanDocuments(rows pgx.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		var d Document
		err := rows.Scan(&d.ID, &d.UserID, &d.AppointmentID, &d.DocumentType, &d.FileName, &d.FilePath,
			&d.MimeType, &d.IsVerified, &d.VerificationNotes, &d.UploadedAt, &d.VerifiedAt)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		normalizeVerifiedAt(&d)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// normalizeVerifiedAt maps the epoch placeholder used for NULL back to the
// zero time.
func normalizeVerifiedAt(d *Document) {
	if d.VerifiedAt.Equal(time.Unix(0, 0)) {
		d.VerifiedAt = time.Time{}
	}
}
