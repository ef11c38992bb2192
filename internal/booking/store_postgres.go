package booking

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

const uniqueViolation = "23505"

// PostgresStore persists appointments and time slots in PostgreSQL.
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

const appointmentColumns = `id, user_id, service_id, time_slot_id, status, booking_reference,
	COALESCE(qr_code, ''), COALESCE(notes, ''), created_at, COALESCE(updated_at, created_at)`

func (s *PostgresStore) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (s *PostgresStore) GetAppointmentForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	return scanAppointment(row)
}

func (s *PostgresStore) GetAppointmentByReference(ctx context.Context, reference string) (*Appointment, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE booking_reference = $1`, reference)
	return scanAppointment(row)
}

func (s *PostgresStore) ListAppointmentsByUser(ctx context.Context, userID int64) ([]Appointment, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by user: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) ListActiveByUser(ctx context.Context, userID int64) ([]Appointment, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE user_id = $1 AND status IN ('PENDING', 'CONFIRMED')
		 ORDER BY id FOR UPDATE`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active appointments by user: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) ListActiveByService(ctx context.Context, serviceID int64) ([]Appointment, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE service_id = $1 AND status IN ('PENDING', 'CONFIRMED')
		 ORDER BY id FOR UPDATE`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list active appointments by service: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) HasActiveOnSlot(ctx context.Context, userID, timeSlotID int64) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE user_id = $1 AND time_slot_id = $2 AND status IN ('PENDING', 'CONFIRMED')
		)`, userID, timeSlotID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate booking: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CreateAppointment(ctx context.Context, appt *Appointment) error {
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO appointments (user_id, service_id, time_slot_id, status, booking_reference, qr_code, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, appt.UserID, appt.ServiceID, appt.TimeSlotID, string(appt.Status),
		appt.BookingReference, appt.QRCode, appt.Notes, appt.CreatedAt).
		Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert appointment: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE appointments
		SET time_slot_id = $2, status = $3, qr_code = $4, notes = $5, updated_at = $6
		WHERE id = $1
	`, appt.ID, appt.TimeSlotID, string(appt.Status), appt.QRCode, appt.Notes, appt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update appointment: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Statistics(ctx context.Context, serviceID, departmentID int64) (*Statistics, error) {
	query := `
		SELECT a.status, COUNT(*)
		FROM appointments a
		JOIN services s ON s.id = a.service_id
		WHERE ($1 = 0 OR a.service_id = $1)
		  AND ($2 = 0 OR s.department_id = $2)
		GROUP BY a.status`
	rows, err := s.q(ctx).Query(ctx, query, serviceID, departmentID)
	if err != nil {
		return nil, fmt.Errorf("appointment statistics: %w", err)
	}
	defer rows.Close()

	stats := &Statistics{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan statistics row: %w", err)
		}
		stats.Total += count
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusConfirmed:
			stats.Confirmed = count
		case StatusCompleted:
			stats.Completed = count
		case StatusCancelled:
			stats.Cancelled = count
		case StatusNoShow:
			stats.NoShow = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statistics rows: %w", err)
	}
	return stats, nil
}

const slotColumns = `id, service_id, start_time, end_time, max_capacity, current_bookings,
	is_available, created_at, COALESCE(updated_at, created_at)`

func (s *PostgresStore) GetSlot(ctx context.Context, id int64) (*TimeSlot, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+slotColumns+` FROM time_slots WHERE id = $1`, id)
	return scanSlot(row)
}

func (s *PostgresStore) GetSlotForUpdate(ctx context.Context, id int64) (*TimeSlot, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+slotColumns+` FROM time_slots WHERE id = $1 FOR UPDATE`, id)
	return scanSlot(row)
}

func (s *PostgresStore) UpdateSlot(ctx context.Context, slot *TimeSlot) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE time_slots
		SET current_bookings = $2, is_available = $3, updated_at = $4
		WHERE id = $1
	`, slot.ID, slot.CurrentBookings, slot.IsAvailable, slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update time slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update time slot: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateSlots(ctx context.Context, slots []TimeSlot) error {
	for i := range slots {
		err := s.q(ctx).QueryRow(ctx, `
			INSERT INTO time_slots (service_id, start_time, end_time, max_capacity, current_bookings, is_available, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, slots[i].ServiceID, slots[i].StartTime, slots[i].EndTime,
			slots[i].MaxCapacity, slots[i].CurrentBookings, slots[i].IsAvailable, slots[i].CreatedAt).
			Scan(&slots[i].ID)
		if err != nil {
			return fmt.Errorf("insert time slot: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListSlotsByService(ctx context.Context, serviceID int64) ([]TimeSlot, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+slotColumns+` FROM time_slots WHERE service_id = $1 ORDER BY id FOR UPDATE`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list slots by service: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (s *PostgresStore) ListAvailableSlots(ctx context.Context, serviceID int64, day time.Time) ([]TimeSlot, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+slotColumns+` FROM time_slots
		 WHERE service_id = $1 AND start_time >= $2 AND start_time < $3 AND is_available
		 ORDER BY start_time`, serviceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.ServiceID, &a.TimeSlotID, &status,
		&a.BookingReference, &a.QRCode, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		var (
			a      Appointment
			status string
		)
		err := rows.Scan(&a.ID, &a.UserID, &a.ServiceID, &a.TimeSlotID, &status,
			&a.BookingReference, &a.QRCode, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		a.Status = Status(status)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return out, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var t TimeSlot
	err := row.Scan(&t.ID, &t.ServiceID, &t.StartTime, &t.EndTime, &t.MaxCapacity,
		&t.CurrentBookings, &t.IsAvailable, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan time slot: %w", err)
	}
	return &t, nil
}

func scanSlots(rows pgx.Rows) ([]TimeSlot, error) {
	var out []TimeSlot
	for rows.Next() {
		var t TimeSlot
		err := rows.Scan(&t.ID, &t.ServiceID, &t.StartTime, &t.EndTime, &t.MaxCapacity,
			&t.CurrentBookings, &t.IsAvailable, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan time slot: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time slots: %w", err)
	}
	return out, nil
}
