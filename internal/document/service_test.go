package document

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"govbook/internal/booking"
	"govbook/internal/directory"
	"govbook/internal/policy"
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/audit"
	auditmem "govbook/pkg/platform/audit/store/memory"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

type fakeConfirmer struct {
	mu    sync.Mutex
	calls []int64
}

func (f *fakeConfirmer) OnDocumentVerified(_ context.Context, appointmentID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, appointmentID)
	return true, nil
}

type noopNotifier struct{}

func (noopNotifier) AppointmentEvent(context.Context, int64, int64, string, string) error {
	return nil
}

type DocumentSuite struct {
	suite.Suite

	store     *InMemoryStore
	bookStore *booking.InMemoryStore
	dirStore  *directory.InMemoryStore
	audits    *auditmem.InMemoryStore
	confirmer *fakeConfirmer
	svc       *Service
	now       time.Time

	service directory.Service
	appt    booking.Appointment
}

func TestDocumentSuite(t *testing.T) {
	suite.Run(t, new(DocumentSuite))
}

func (s *DocumentSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.bookStore = booking.NewInMemoryStore()
	s.dirStore = directory.NewInMemoryStore()
	s.audits = auditmem.NewInMemoryStore()
	s.confirmer = &fakeConfirmer{}
	s.now = time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

	s.svc = NewService(
		s.store,
		s.bookStore,
		s.dirStore,
		s.confirmer,
		noopNotifier{},
		audit.NewRecorder(s.audits),
		txcontext.NewMemoryRunner(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	ctx := context.Background()
	dept := directory.Department{Name: "Registrar General", IsActive: true}
	s.Require().NoError(s.dirStore.CreateDepartment(ctx, &dept))
	s.service = directory.Service{
		DepartmentID:      dept.ID,
		Name:              "Marriage Certificate",
		RequiredDocuments: "NIC, Birth Certificate",
		IsActive:          true,
	}
	s.Require().NoError(s.dirStore.CreateService(ctx, &s.service))

	s.appt = booking.Appointment{
		UserID:           7,
		ServiceID:        s.service.ID,
		TimeSlotID:       1,
		Status:           booking.StatusPending,
		BookingReference: "SL20250602AAAAAA",
		CreatedAt:        s.now,
	}
	s.Require().NoError(s.bookStore.CreateAppointment(ctx, &s.appt))
}

func (s *DocumentSuite) ctxFor(userID int64, role string) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return requestcontext.WithActor(ctx, requestcontext.ActorInfo{UserID: userID, Role: role})
}

func (s *DocumentSuite) upload(userID int64, docType string) *Document {
	doc, err := s.svc.Upload(s.ctxFor(userID, policy.RoleCitizen), UploadRequest{
		AppointmentID: s.appt.ID,
		DocumentType:  docType,
		FileName:      docType + ".pdf",
		FilePath:      "/uploads/" + docType + ".pdf",
		MimeType:      "application/pdf",
	})
	s.Require().NoError(err)
	return doc
}

func (s *DocumentSuite) TestUpload() {
	s.Run("attaches to own appointment", func() {
		doc := s.upload(7, "NIC")
		s.Equal(int64(7), doc.UserID)
		s.Equal(s.appt.ID, doc.AppointmentID)
		s.False(doc.IsVerified)
	})

	s.Run("cannot attach to someone else's appointment", func() {
		_, err := s.svc.Upload(s.ctxFor(8, policy.RoleCitizen), UploadRequest{
			AppointmentID: s.appt.ID,
			DocumentType:  "NIC",
			FileName:      "nic.pdf",
			FilePath:      "/uploads/nic.pdf",
		})
		s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
	})

	s.Run("missing type is rejected", func() {
		_, err := s.svc.Upload(s.ctxFor(7, policy.RoleCitizen), UploadRequest{
			FileName: "x.pdf",
			FilePath: "/uploads/x.pdf",
		})
		s.True(pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	})
}

func (s *DocumentSuite) TestVerifyConfirmsWhenRequirementsMet() {
	officer := s.ctxFor(50, policy.RoleOfficer)
	nic := s.upload(7, "NIC")
	birth := s.upload(7, "Birth Certificate")

	got, err := s.svc.Verify(officer, nic.ID, "clear copy")
	s.Require().NoError(err)
	s.True(got.IsVerified)
	s.Empty(s.confirmer.calls, "one of two required documents should not confirm")

	_, err = s.svc.Verify(officer, birth.ID, "")
	s.Require().NoError(err)
	s.Equal([]int64{s.appt.ID}, s.confirmer.calls)

	entries := s.audits.All()
	s.Require().Len(entries, 2)
	s.Equal(audit.ActionDocumentVerification, entries[0].Action)
}

func (s *DocumentSuite) TestVerifyWaitsForEveryLinkedDocument() {
	officer := s.ctxFor(50, policy.RoleOfficer)
	nic := s.upload(7, "NIC")
	birth := s.upload(7, "Birth Certificate")
	extra := s.upload(7, "Marriage Affidavit")

	_, err := s.svc.Verify(officer, nic.ID, "")
	s.Require().NoError(err)
	_, err = s.svc.Verify(officer, birth.ID, "")
	s.Require().NoError(err)
	s.Empty(s.confirmer.calls, "an unreviewed extra document must block confirmation")

	report, err := s.svc.ValidateRequirements(officer, s.appt.ID)
	s.Require().NoError(err)
	s.False(report.Satisfied)
	s.Empty(report.Missing)
	s.Equal([]string{"Marriage Affidavit"}, report.Unverified)

	_, err = s.svc.Verify(officer, extra.ID, "")
	s.Require().NoError(err)
	s.Equal([]int64{s.appt.ID}, s.confirmer.calls)
}

func (s *DocumentSuite) TestVerifyIsIdempotent() {
	officer := s.ctxFor(50, policy.RoleOfficer)
	nic := s.upload(7, "NIC")

	_, err := s.svc.Verify(officer, nic.ID, "ok")
	s.Require().NoError(err)
	audits := len(s.audits.All())

	_, err = s.svc.Verify(officer, nic.ID, "ok again")
	s.Require().NoError(err)
	s.Len(s.audits.All(), audits)
}

func (s *DocumentSuite) TestVerifyRequiresStaff() {
	nic := s.upload(7, "NIC")
	_, err := s.svc.Verify(s.ctxFor(7, policy.RoleCitizen), nic.ID, "")
	s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
}

func (s *DocumentSuite) TestReject() {
	officer := s.ctxFor(50, policy.RoleOfficer)
	nic := s.upload(7, "NIC")

	s.Run("requires a reason", func() {
		_, err := s.svc.Reject(officer, nic.ID, "  ")
		s.True(pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	})

	s.Run("records the reason", func() {
		got, err := s.svc.Reject(officer, nic.ID, "photo is blurry")
		s.Require().NoError(err)
		s.False(got.IsVerified)
		s.Equal("photo is blurry", got.VerificationNotes)
	})
}

func (s *DocumentSuite) TestValidateRequirements() {
	officer := s.ctxFor(50, policy.RoleOfficer)
	nic := s.upload(7, "nic") // case-insensitive match against "NIC"

	report, err := s.svc.ValidateRequirements(s.ctxFor(7, policy.RoleCitizen), s.appt.ID)
	s.Require().NoError(err)
	s.False(report.Satisfied)
	s.Equal([]string{"NIC", "Birth Certificate"}, report.Missing)

	_, err = s.svc.Verify(officer, nic.ID, "")
	s.Require().NoError(err)

	report, err = s.svc.ValidateRequirements(officer, s.appt.ID)
	s.Require().NoError(err)
	s.Equal([]string{"Birth Certificate"}, report.Missing)
	s.False(report.Satisfied)

	s.Run("strangers cannot inspect", func() {
		_, err := s.svc.ValidateRequirements(s.ctxFor(8, policy.RoleCitizen), s.appt.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
	})
}
