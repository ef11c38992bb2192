package httptransport

import (
	"time"

	"govbook/internal/booking"
	"govbook/internal/directory"
	"govbook/internal/document"
	"govbook/internal/notification"
)

// Wire representations. Domain models stay JSON-free; the transport owns the
// field names clients see.

type appointmentResponse struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	ServiceID        int64     `json:"service_id"`
	TimeSlotID       int64     `json:"time_slot_id"`
	Status           string    `json:"status"`
	BookingReference string    `json:"booking_reference"`
	QRCode           string    `json:"qr_code,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAppointment(a *booking.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:               a.ID,
		UserID:           a.UserID,
		ServiceID:        a.ServiceID,
		TimeSlotID:       a.TimeSlotID,
		Status:           string(a.Status),
		BookingReference: a.BookingReference,
		QRCode:           a.QRCode,
		Notes:            a.Notes,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func toAppointments(items []booking.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, len(items))
	for i := range items {
		out[i] = toAppointment(&items[i])
	}
	return out
}

type slotResponse struct {
	ID              int64     `json:"id"`
	ServiceID       int64     `json:"service_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MaxCapacity     int       `json:"max_capacity"`
	CurrentBookings int       `json:"current_bookings"`
	IsAvailable     bool      `json:"is_available"`
}

func toSlots(items []booking.TimeSlot) []slotResponse {
	out := make([]slotResponse, len(items))
	for i, s := range items {
		out[i] = slotResponse{
			ID:              s.ID,
			ServiceID:       s.ServiceID,
			StartTime:       s.StartTime,
			EndTime:         s.EndTime,
			MaxCapacity:     s.MaxCapacity,
			CurrentBookings: s.CurrentBookings,
			IsAvailable:     s.IsAvailable,
		}
	}
	return out
}

type statisticsResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	NoShow    int `json:"no_show"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	NationalID  string `json:"national_id,omitempty"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
}

func toUser(u *directory.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		NationalID:  u.NationalID,
		Role:        u.Role,
		IsActive:    u.IsActive,
	}
}

type departmentResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
	Email         string `json:"email,omitempty"`
	IsActive      bool   `json:"is_active"`
}

func toDepartment(d *directory.Department) departmentResponse {
	return departmentResponse{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Location:      d.Location,
		ContactNumber: d.ContactNumber,
		Email:         d.Email,
		IsActive:      d.IsActive,
	}
}

type serviceResponse struct {
	ID                   int64  `json:"id"`
	DepartmentID         int64  `json:"department_id"`
	Name                 string `json:"name"`
	Description          string `json:"description,omitempty"`
	DurationMinutes      int    `json:"duration_minutes"`
	MaxDailyAppointments int    `json:"max_daily_appointments"`
	RequiredDocuments    string `json:"required_documents,omitempty"`
	IsActive             bool   `json:"is_active"`
}

func toService(s *directory.Service) serviceResponse {
	return serviceResponse{
		ID:                   s.ID,
		DepartmentID:         s.DepartmentID,
		Name:                 s.Name,
		Description:          s.Description,
		DurationMinutes:      s.DurationMinutes,
		MaxDailyAppointments: s.MaxDailyAppointments,
		RequiredDocuments:    s.RequiredDocuments,
		IsActive:             s.IsActive,
	}
}

type officerResponse struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	DepartmentID int64  `json:"department_id"`
	OfficerID    string `json:"officer_id"`
	Designation  string `json:"designation,omitempty"`
	IsActive     bool   `json:"is_active"`
}

type documentResponse struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	AppointmentID     int64      `json:"appointment_id,omitempty"`
	DocumentType      string     `json:"document_type"`
	FileName          string     `json:"file_name"`
	MimeType          string     `json:"mime_type,omitempty"`
	IsVerified        bool       `json:"is_verified"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
	UploadedAt        time.Time  `json:"uploaded_at"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
}

func toDocument(d *document.Document) documentResponse {
	resp := documentResponse{
		ID:                d.ID,
		UserID:            d.UserID,
		AppointmentID:     d.AppointmentID,
		DocumentType:      d.DocumentType,
		FileName:          d.FileName,
		MimeType:          d.MimeType,
		IsVerified:        d.IsVerified,
		VerificationNotes: d.VerificationNotes,
		UploadedAt:        d.UploadedAt,
	}
	if !d.VerifiedAt.IsZero() {
		t := d.VerifiedAt
		resp.VerifiedAt = &t
	}
	return resp
}

func toDocuments(items []document.Document) []documentResponse {
	out := make([]documentResponse, len(items))
	for i := range items {
		out[i] = toDocument(&items[i])
	}
	return out
}

type notificationResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotifications(items []notification.Notification) []notificationResponse {
	out := make([]notificationResponse, len(items))
	for i, n := range items {
		out[i] = notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		}
	}
	return out
}
