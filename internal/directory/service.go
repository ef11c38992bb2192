package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"govbook/internal/policy"
	"govbook/pkg/email"
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/audit"
	"govbook/pkg/platform/sentinel"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

// Directory owns accounts and the department/service/officer catalogue.
// Activation changes are not handled here: they go through the cascade
// engine, which this feature only feeds with data.
type Directory struct {
	store    Store
	recorder *audit.Recorder
	runner   txcontext.Runner
	logger   *slog.Logger
}

func New(store Store, recorder *audit.Recorder, runner txcontext.Runner, logger *slog.Logger) *Directory {
	return &Directory{store: store, recorder: recorder, runner: runner, logger: logger}
}

// RegisterRequest carries a citizen self-registration.
type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	NationalID  string
}

// Register creates a citizen account. Officer and admin accounts are
// provisioned by admins through CreateOfficer and role updates.
func (d *Directory) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "hash password")
	}
	if req.FirstName == "" || req.LastName == "" {
		first, last := email.DeriveNameFromEmail(req.Email)
		if req.FirstName == "" {
			req.FirstName = first
		}
		if req.LastName == "" {
			req.LastName = last
		}
	}

	user := &User{
		Username:       strings.ToLower(strings.TrimSpace(req.Username)),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		HashedPassword: string(hashed),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		PhoneNumber:    req.PhoneNumber,
		NationalID:     req.NationalID,
		Role:           policy.RoleCitizen,
		IsActive:       true,
		CreatedAt:      requestcontext.Now(ctx),
	}
	err = d.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := d.store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return pkgerrors.New(pkgerrors.CodeConflict, "username, email, or national ID already registered")
			}
			return err
		}
		return d.recorder.Record(ctx, audit.Entry{
			ActorID:  user.ID,
			Action:   audit.ActionUserCreated,
			Table:    "users",
			RecordID: user.ID,
			After:    audit.Snapshot(map[string]any{"username": user.Username, "role": user.Role}),
		})
	})
	if err != nil {
		return nil, err
	}
	d.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// decoyHash is a well-formed bcrypt hash compared against when the username
// does not exist, keeping timing uniform between unknown users and wrong
// passwords.
var decoyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Authenticate verifies credentials and returns the account. Deactivated
// accounts cannot log in even with correct credentials.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := d.store.GetUserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(password))
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "account is deactivated")
	}
	return user, nil
}

// UpdateProfile lets users change their own contact details; admins may edit
// anyone. Empty fields keep their current value.
func (d *Directory) UpdateProfile(ctx context.Context, userID int64, email, firstName, lastName, phone string) (*User, error) {
	actor := requestcontext.Actor(ctx)
	if actor.UserID != userID && actor.Role != policy.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "you may only edit your own profile")
	}

	var user *User
	err := d.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = d.store.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return err
		}
		before := audit.Snapshot(map[string]any{
			"email": user.Email, "first_name": user.FirstName, "last_name": user.LastName,
		})
		if email != "" {
			user.Email = strings.ToLower(strings.TrimSpace(email))
		}
		if firstName != "" {
			user.FirstName = firstName
		}
		if lastName != "" {
			user.LastName = lastName
		}
		if phone != "" {
			user.PhoneNumber = phone
		}
		user.UpdatedAt = requestcontext.Now(ctx)
		if err := d.store.UpdateUser(ctx, user); err != nil {
			return err
		}
		return d.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionUserUpdated,
			Table:    "users",
			RecordID: user.ID,
			Before:   before,
			After: audit.Snapshot(map[string]any{
				"email": user.Email, "first_name": user.FirstName, "last_name": user.LastName,
			}),
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (d *Directory) GetUser(ctx context.Context, userID int64) (*User, error) {
	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return user, nil
}

// CreateDepartment registers a new department. Admin only.
func (d *Directory) CreateDepartment(ctx context.Context, dept *Department) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(dept.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeBadRequest, "department name is required")
	}
	dept.IsActive = true
	dept.CreatedAt = requestcontext.Now(ctx)
	if err := d.store.CreateDepartment(ctx, dept); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return pkgerrors.New(pkgerrors.CodeConflict, "a department with this name already exists")
		}
		return err
	}
	return nil
}

func (d *Directory) GetDepartment(ctx context.Context, id int64) (*Department, error) {
	dept, err := d.store.GetDepartment(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "department not found")
		}
		return nil, err
	}
	return dept, nil
}

func (d *Directory) ListDepartments(ctx context.Context) ([]Department, error) {
	return d.store.ListDepartments(ctx)
}

// CreateService registers a bookable service under a department. Admin only.
// The department must exist and be active.
func (d *Directory) CreateService(ctx context.Context, svc *Service) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(svc.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeBadRequest, "service name is required")
	}
	if svc.DurationMinutes <= 0 {
		svc.DurationMinutes = 30
	}
	if svc.MaxDailyAppointments <= 0 {
		svc.MaxDailyAppointments = 50
	}
	return d.runner.RunInTx(ctx, func(ctx context.Context) error {
		dept, err := d.store.GetDepartment(ctx, svc.DepartmentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "department not found")
			}
			return err
		}
		if !dept.IsActive {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "department is deactivated")
		}
		svc.IsActive = true
		svc.CreatedAt = requestcontext.Now(ctx)
		return d.store.CreateService(ctx, svc)
	})
}

func (d *Directory) GetService(ctx context.Context, id int64) (*Service, error) {
	svc, err := d.store.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
		}
		return nil, err
	}
	return svc, nil
}

func (d *Directory) ListServicesByDepartment(ctx context.Context, departmentID int64) ([]Service, error) {
	return d.store.ListServicesByDepartment(ctx, departmentID)
}

// CreateOfficer links a user to a department as a government officer and
// promotes the account's role. Admin only.
func (d *Directory) CreateOfficer(ctx context.Context, officer *Officer) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(officer.OfficerID) == "" {
		return pkgerrors.New(pkgerrors.CodeBadRequest, "officer ID is required")
	}
	return d.runner.RunInTx(ctx, func(ctx context.Context) error {
		user, err := d.store.GetUser(ctx, officer.UserID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return err
		}
		if _, err := d.store.GetDepartment(ctx, officer.DepartmentID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "department not found")
			}
			return err
		}

		officer.IsActive = true
		officer.CreatedAt = requestcontext.Now(ctx)
		if err := d.store.CreateOfficer(ctx, officer); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return pkgerrors.New(pkgerrors.CodeConflict, "officer ID already in use")
			}
			return err
		}

		if user.Role == policy.RoleCitizen {
			before := audit.Snapshot(map[string]any{"role": user.Role})
			user.Role = policy.RoleOfficer
			user.UpdatedAt = requestcontext.Now(ctx)
			if err := d.store.UpdateUser(ctx, user); err != nil {
				return err
			}
			if err := d.recorder.Record(ctx, audit.Entry{
				Action:   audit.ActionUserUpdated,
				Table:    "users",
				RecordID: user.ID,
				Before:   before,
				After:    audit.Snapshot(map[string]any{"role": user.Role}),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Directory) GetOfficer(ctx context.Context, id int64) (*Officer, error) {
	officer, err := d.store.GetOfficer(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "officer not found")
		}
		return nil, err
	}
	return officer, nil
}

func requireAdmin(ctx context.Context) error {
	actor := requestcontext.Actor(ctx)
	if actor.Role != policy.RoleAdmin && actor.Role != policy.RoleSystem {
		return pkgerrors.New(pkgerrors.CodePermissionDenied, "admin role required")
	}
	return nil
}

func validateRegistration(req RegisterRequest) error {
	switch {
	case strings.TrimSpace(req.Username) == "":
		return pkgerrors.New(pkgerrors.CodeBadRequest, "username is required")
	case strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@"):
		return pkgerrors.New(pkgerrors.CodeBadRequest, "a valid email is required")
	case len(req.Password) < 8:
		return pkgerrors.New(pkgerrors.CodeBadRequest, "password must be at least 8 characters")
	case strings.TrimSpace(req.NationalID) == "":
		return pkgerrors.New(pkgerrors.CodeBadRequest, "national ID is required")
	}
	return nil
}
