package document

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"govbook/internal/booking"
	"govbook/internal/directory"
	"govbook/internal/policy"
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/audit"
	"govbook/pkg/platform/sentinel"
	strutil "govbook/pkg/platform/strings"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

// Appointments is the slice of the booking store this feature reads.
type Appointments interface {
	GetAppointment(ctx context.Context, id int64) (*booking.Appointment, error)
}

// Services resolves the required-documents list of a service.
type Services interface {
	GetService(ctx context.Context, id int64) (*directory.Service, error)
}

// Confirmer is notified when a document verification may confirm an
// appointment. The cascade engine implements it.
type Confirmer interface {
	OnDocumentVerified(ctx context.Context, appointmentID int64) (bool, error)
}

// Service owns document metadata and the verification workflow. Verifying the
// last required document of a pending appointment confirms it in the same
// transaction.
type Service struct {
	store        Store
	appointments Appointments
	services     Services
	confirmer    Confirmer
	notifier     booking.Notifier
	recorder     *audit.Recorder
	runner       txcontext.Runner
	logger       *slog.Logger
}

func NewService(
	store Store,
	appointments Appointments,
	services Services,
	confirmer Confirmer,
	notifier booking.Notifier,
	recorder *audit.Recorder,
	runner txcontext.Runner,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:        store,
		appointments: appointments,
		services:     services,
		confirmer:    confirmer,
		notifier:     notifier,
		recorder:     recorder,
		runner:       runner,
		logger:       logger,
	}
}

// UploadRequest records metadata for an already-stored file.
type UploadRequest struct {
	AppointmentID int64
	DocumentType  string
	FileName      string
	FilePath      string
	MimeType      string
}

// Upload attaches a document to the calling user, optionally bound to one of
// their appointments.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Document, error) {
	actor := requestcontext.Actor(ctx)
	if strings.TrimSpace(req.DocumentType) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "document type is required")
	}
	if strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.FilePath) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "file name and path are required")
	}

	if req.AppointmentID != 0 {
		appt, err := s.appointments.GetAppointment(ctx, req.AppointmentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
			}
			return nil, err
		}
		if appt.UserID != actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "you may only attach documents to your own appointments")
		}
		if appt.Status.Terminal() {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "appointment is already closed")
		}
	}

	doc := &Document{
		UserID:        actor.UserID,
		AppointmentID: req.AppointmentID,
		DocumentType:  strings.TrimSpace(req.DocumentType),
		FileName:      req.FileName,
		FilePath:      req.FilePath,
		MimeType:      req.MimeType,
		UploadedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Verify marks a document verified. When every document linked to the
// appointment is verified and the required types are covered, the appointment
// is confirmed in the same transaction. Verifying an already-verified
// document is a no-op.
func (s *Service) Verify(ctx context.Context, documentID int64, notes string) (*Document, error) {
	if err := policy.Allow(requestcontext.Actor(ctx), 0, policy.ActionVerifyDoc); err != nil {
		return nil, err
	}

	var doc *Document
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.store.GetForUpdate(ctx, documentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
			}
			return err
		}
		if doc.IsVerified {
			return nil
		}

		doc.IsVerified = true
		doc.VerificationNotes = notes
		doc.VerifiedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, doc); err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionDocumentVerification,
			Table:    "documents",
			RecordID: doc.ID,
			Before:   audit.Snapshot(map[string]any{"is_verified": false}),
			After:    audit.Snapshot(map[string]any{"is_verified": true}),
		}); err != nil {
			return err
		}
		if err := s.notifier.AppointmentEvent(ctx, doc.UserID, doc.AppointmentID,
			"Document Verified",
			"Your "+doc.DocumentType+" has been verified."); err != nil {
			return err
		}

		if doc.AppointmentID == 0 {
			return nil
		}
		report, err := s.validateLocked(ctx, doc.AppointmentID)
		if err != nil {
			return err
		}
		if !report.Satisfied {
			return nil
		}
		confirmed, err := s.confirmer.OnDocumentVerified(ctx, doc.AppointmentID)
		if err != nil {
			return err
		}
		if confirmed {
			s.logger.InfoContext(ctx, "appointment confirmed after document verification",
				"appointment_id", doc.AppointmentID, "document_id", doc.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Reject marks a document as not verified, with the officer's reason.
func (s *Service) Reject(ctx context.Context, documentID int64, notes string) (*Document, error) {
	if err := policy.Allow(requestcontext.Actor(ctx), 0, policy.ActionVerifyDoc); err != nil {
		return nil, err
	}
	if strings.TrimSpace(notes) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "a rejection reason is required")
	}

	var doc *Document
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.store.GetForUpdate(ctx, documentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
			}
			return err
		}
		wasVerified := doc.IsVerified
		doc.IsVerified = false
		doc.VerificationNotes = notes
		doc.VerifiedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, doc); err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, audit.Entry{
			Action:   audit.ActionDocumentVerification,
			Table:    "documents",
			RecordID: doc.ID,
			Before:   audit.Snapshot(map[string]any{"is_verified": wasVerified}),
			After:    audit.Snapshot(map[string]any{"is_verified": false, "notes": notes}),
		}); err != nil {
			return err
		}
		return s.notifier.AppointmentEvent(ctx, doc.UserID, doc.AppointmentID,
			"Document Rejected",
			"Your "+doc.DocumentType+" was rejected: "+notes)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// RequirementsReport compares an appointment's verified documents against
// its service's required list.
type RequirementsReport struct {
	Required   []string `json:"required"`
	Missing    []string `json:"missing"`
	Unverified []string `json:"unverified"`
	Satisfied  bool     `json:"satisfied"`
}

// ValidateRequirements reports which required documents of an appointment are
// still missing or unverified.
func (s *Service) ValidateRequirements(ctx context.Context, appointmentID int64) (*RequirementsReport, error) {
	appt, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, err
	}
	actor := requestcontext.Actor(ctx)
	if actor.UserID != appt.UserID && actor.Role != policy.RoleOfficer &&
		actor.Role != policy.RoleAdmin && actor.Role != policy.RoleSystem {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "you may only inspect your own appointments")
	}
	return s.validateLocked(ctx, appointmentID)
}

// validateLocked builds the report without access checks, for use inside the
// verification transaction.
func (s *Service) validateLocked(ctx context.Context, appointmentID int64) (*RequirementsReport, error) {
	appt, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	svc, err := s.services.GetService(ctx, appt.ServiceID)
	if err != nil {
		return nil, err
	}

	required := splitRequirements(svc.RequiredDocuments)
	docs, err := s.store.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	report := &RequirementsReport{Required: required}
	verified := make(map[string]bool, len(docs))
	allVerified := len(docs) > 0
	for _, d := range docs {
		if d.IsVerified {
			verified[strings.ToLower(d.DocumentType)] = true
		} else {
			allVerified = false
			report.Unverified = append(report.Unverified, d.DocumentType)
		}
	}

	for _, r := range required {
		if !verified[strings.ToLower(r)] {
			report.Missing = append(report.Missing, r)
		}
	}
	// Every linked document must be verified, not just the required types:
	// an uploaded extra that an officer has not reviewed yet blocks
	// confirmation the same way a missing requirement does.
	report.Satisfied = allVerified && len(report.Missing) == 0
	return report, nil
}

// ListByAppointment returns an appointment's documents; owner or staff only.
func (s *Service) ListByAppointment(ctx context.Context, appointmentID int64) ([]Document, error) {
	appt, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, err
	}
	actor := requestcontext.Actor(ctx)
	if actor.UserID != appt.UserID && actor.Role != policy.RoleOfficer &&
		actor.Role != policy.RoleAdmin && actor.Role != policy.RoleSystem {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "you may only view your own documents")
	}
	return s.store.ListByAppointment(ctx, appointmentID)
}

// ListMine returns the calling user's documents, newest first.
func (s *Service) ListMine(ctx context.Context) ([]Document, error) {
	return s.store.ListByUser(ctx, requestcontext.Actor(ctx).UserID)
}

func splitRequirements(raw string) []string {
	return strutil.DedupeAndTrim(strings.Split(raw, ","))
}
