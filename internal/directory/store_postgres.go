package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"govbook/pkg/platform/sentinel"
	txcontext "govbook/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists the directory in PostgreSQL.
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

const userColumns = `id, username, email, hashed_password, first_name, last_name,
	COALESCE(phone_number, ''), national_id, role, is_active, created_at, COALESCE(updated_at, created_at)`

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO users (username, email, hashed_password, first_name, last_name, phone_number, national_id, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, user.Username, user.Email, user.HashedPassword, user.FirstName, user.LastName,
		user.PhoneNumber, user.NationalID, user.Role, user.IsActive).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert user: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.userBy(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.userBy(ctx, `username = $1`, username)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.userBy(ctx, `email = $1`, email)
}

func (s *PostgresStore) userBy(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := s.q(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName,
			&u.PhoneNumber, &u.NationalID, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *User) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, phone_number = $5, role = $6, updated_at = NOW()
		WHERE id = $1
	`, user.ID, user.Email, user.FirstName, user.LastName, user.PhoneNumber, user.Role)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) UserActiveForUpdate(ctx context.Context, userID int64) (bool, error) {
	return s.activeForUpdate(ctx, "users", userID)
}

func (s *PostgresStore) SetUserActive(ctx context.Context, userID int64, active bool) error {
	return s.setActive(ctx, "users", userID, active)
}

func (s *PostgresStore) CreateDepartment(ctx context.Context, dept *Department) error {
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO departments (name, description, location, contact_number, email, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, dept.Name, dept.Description, dept.Location, dept.ContactNumber, dept.Email, dept.IsActive).
		Scan(&dept.ID, &dept.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert department: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

const departmentColumns = `id, name, COALESCE(description, ''), COALESCE(location, ''),
	COALESCE(contact_number, ''), COALESCE(email, ''), is_active, created_at, COALESCE(updated_at, created_at)`

func (s *PostgresStore) GetDepartment(ctx context.Context, id int64) (*Department, error) {
	var d Department
	err := s.q(ctx).QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Description, &d.Location, &d.ContactNumber, &d.Email,
			&d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select department: %w", err)
	}
	return &d, nil
}

func (s *PostgresStore) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+departmentColumns+` FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Location, &d.ContactNumber, &d.Email,
			&d.IsActive, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DepartmentActiveForUpdate(ctx context.Context, departmentID int64) (bool, error) {
	return s.activeForUpdate(ctx, "departments", departmentID)
}

func (s *PostgresStore) SetDepartmentActive(ctx context.Context, departmentID int64, active bool) error {
	return s.setActive(ctx, "departments", departmentID, active)
}

func (s *PostgresStore) CreateService(ctx context.Context, svc *Service) error {
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO services (department_id, name, description, duration_minutes, max_daily_appointments, required_documents, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, svc.DepartmentID, svc.Name, svc.Description, svc.DurationMinutes,
		svc.MaxDailyAppointments, svc.RequiredDocuments, svc.IsActive).
		Scan(&svc.ID, &svc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

const serviceColumns = `id, department_id, name, COALESCE(description, ''), duration_minutes,
	max_daily_appointments, COALESCE(required_documents, ''), is_active, created_at, COALESCE(updated_at, created_at)`

func (s *PostgresStore) GetService(ctx context.Context, id int64) (*Service, error) {
	var svc Service
	err := s.q(ctx).QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id).
		Scan(&svc.ID, &svc.DepartmentID, &svc.Name, &svc.Description, &svc.DurationMinutes,
			&svc.MaxDailyAppointments, &svc.RequiredDocuments, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select service: %w", err)
	}
	return &svc, nil
}

func (s *PostgresStore) ListServicesByDepartment(ctx context.Context, departmentID int64) ([]Service, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE department_id = $1 ORDER BY name`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var svc Service
		err := rows.Scan(&svc.ID, &svc.DepartmentID, &svc.Name, &svc.Description, &svc.DurationMinutes,
			&svc.MaxDailyAppointments, &svc.RequiredDocuments, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListServiceIDsByDepartment(ctx context.Context, departmentID int64) ([]int64, error) {
	return s.idsBy(ctx, `SELECT id FROM services WHERE department_id = $1 ORDER BY id`, departmentID)
}

func (s *PostgresStore) ServiceActiveForUpdate(ctx context.Context, serviceID int64) (bool, error) {
	return s.activeForUpdate(ctx, "services", serviceID)
}

func (s *PostgresStore) SetServiceActive(ctx context.Context, serviceID int64, active bool) error {
	return s.setActive(ctx, "services", serviceID, active)
}

func (s *PostgresStore) CreateOfficer(ctx context.Context, officer *Officer) error {
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO government_officers (user_id, department_id, officer_id, designation, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, officer.UserID, officer.DepartmentID, officer.OfficerID, officer.Designation, officer.IsActive).
		Scan(&officer.ID, &officer.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert officer: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert officer: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOfficer(ctx context.Context, id int64) (*Officer, error) {
	var o Officer
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, user_id, department_id, officer_id, designation, is_active, created_at, COALESCE(updated_at, created_at)
		FROM government_officers WHERE id = $1`, id).
		Scan(&o.ID, &o.UserID, &o.DepartmentID, &o.OfficerID, &o.Designation,
			&o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select officer: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) ListOfficerIDsByDepartment(ctx context.Context, departmentID int64) ([]int64, error) {
	return s.idsBy(ctx, `SELECT id FROM government_officers WHERE department_id = $1 ORDER BY id`, departmentID)
}

func (s *PostgresStore) OfficerIDByUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := s.q(ctx).QueryRow(ctx,
		`SELECT id FROM government_officers WHERE user_id = $1`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("select officer by user: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) OfficerActiveForUpdate(ctx context.Context, officerID int64) (bool, error) {
	return s.activeForUpdate(ctx, "government_officers", officerID)
}

func (s *PostgresStore) SetOfficerActive(ctx context.Context, officerID int64, active bool) error {
	return s.setActive(ctx, "government_officers", officerID, active)
}

// activeForUpdate locks one row and returns its is_active flag. The table
// name is always one of the fixed directory tables, never user input.
func (s *PostgresStore) activeForUpdate(ctx context.Context, table string, id int64) (bool, error) {
	var active bool
	err := s.q(ctx).QueryRow(ctx,
		`SELECT is_active FROM `+table+` WHERE id = $1 FOR UPDATE`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, sentinel.ErrNotFound
		}
		return false, fmt.Errorf("lock %s row: %w", table, err)
	}
	return active, nil
}

func (s *PostgresStore) setActive(ctx context.Context, table string, id int64, active bool) error {
	tag, err := s.q(ctx).Exec(ctx,
		`UPDATE `+table+` SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update %s activity: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s activity: %w", table, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) idsBy(ctx context.Context, query string, arg any) ([]int64, error) {
	rows, err := s.q(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return out, nil
}
