package directory

import "time"

// User is an account in the system: citizens, officers, and admins all live
// in the same table, distinguished by role.
type User struct {
	ID             int64
	Username       string
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	PhoneNumber    string
	NationalID     string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Department groups services under one government office.
type Department struct {
	ID            int64
	Name          string
	Description   string
	Location      string
	ContactNumber string
	Email         string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Service is a bookable offering of a department.
type Service struct {
	ID                   int64
	DepartmentID         int64
	Name                 string
	Description          string
	DurationMinutes      int
	MaxDailyAppointments int
	RequiredDocuments    string
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Officer links a user account to the department it serves.
type Officer struct {
	ID           int64
	UserID       int64
	DepartmentID int64
	OfficerID    string
	Designation  string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
