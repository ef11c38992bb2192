package document

import "time"

// Document is uploaded evidence for an appointment: the file itself lives on
// disk or object storage, this row carries the metadata and verification
// state.
type Document struct {
	ID                int64
	UserID            int64
	AppointmentID     int64 // 0 when not attached to an appointment
	DocumentType      string
	FileName          string
	FilePath          string
	MimeType          string
	IsVerified        bool
	VerificationNotes string
	UploadedAt        time.Time
	VerifiedAt        time.Time
}
