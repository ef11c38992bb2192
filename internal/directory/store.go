package directory

import "context"

// Store persists the directory: users, departments, services, and officers.
// Implementations join the transaction carried in ctx and return
// pkg/platform/sentinel errors. The *ActiveForUpdate reads lock the row so
// activation cascades serialize per entity.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	UserActiveForUpdate(ctx context.Context, userID int64) (bool, error)
	SetUserActive(ctx context.Context, userID int64, active bool) error

	CreateDepartment(ctx context.Context, dept *Department) error
	GetDepartment(ctx context.Context, id int64) (*Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	DepartmentActiveForUpdate(ctx context.Context, departmentID int64) (bool, error)
	SetDepartmentActive(ctx context.Context, departmentID int64, active bool) error

	CreateService(ctx context.Context, svc *Service) error
	GetService(ctx context.Context, id int64) (*Service, error)
	ListServicesByDepartment(ctx context.Context, departmentID int64) ([]Service, error)
	ListServiceIDsByDepartment(ctx context.Context, departmentID int64) ([]int64, error)
	ServiceActiveForUpdate(ctx context.Context, serviceID int64) (bool, error)
	SetServiceActive(ctx context.Context, serviceID int64, active bool) error

	CreateOfficer(ctx context.Context, officer *Officer) error
	GetOfficer(ctx context.Context, id int64) (*Officer, error)
	ListOfficerIDsByDepartment(ctx context.Context, departmentID int64) ([]int64, error)
	OfficerIDByUser(ctx context.Context, userID int64) (int64, error)
	OfficerActiveForUpdate(ctx context.Context, officerID int64) (bool, error)
	SetOfficerActive(ctx context.Context, officerID int64, active bool) error
}
