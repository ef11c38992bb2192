package booking

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"govbook/internal/platform/metrics"
	"govbook/internal/policy"
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/audit"
	auditmem "govbook/pkg/platform/audit/store/memory"
	"govbook/pkg/platform/sentinel"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

// Prometheus metrics register against the default registry once per process.
var testMetrics = metrics.New()

type stubDirectory struct {
	mu       sync.Mutex
	services map[int64]ServiceInfo
}

func (d *stubDirectory) ServiceInfo(_ context.Context, serviceID int64) (*ServiceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	svc, ok := d.services[serviceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &svc, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) AppointmentEvent(_ context.Context, _, _ int64, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

type stubCache struct {
	store *InMemoryStore

	mu          sync.Mutex
	invalidated []int64
}

func (c *stubCache) ListAvailableSlots(ctx context.Context, serviceID int64, day time.Time) ([]TimeSlot, error) {
	return c.store.ListAvailableSlots(ctx, serviceID, day)
}

func (c *stubCache) InvalidateService(_ context.Context, serviceID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, serviceID)
	return nil
}

type ServiceSuite struct {
	suite.Suite

	store    *InMemoryStore
	audits   *auditmem.InMemoryStore
	notifier *recordingNotifier
	cache    *stubCache
	dir      *stubDirectory
	svc      *Service
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.audits = auditmem.NewInMemoryStore()
	s.notifier = &recordingNotifier{}
	s.cache = &stubCache{store: s.store}
	s.dir = &stubDirectory{services: map[int64]ServiceInfo{
		1: {ID: 1, DepartmentID: 1, Name: "Passport Renewal", Active: true, DepartmentActive: true},
		2: {ID: 2, DepartmentID: 1, Name: "Closed Service", Active: false, DepartmentActive: true},
		3: {ID: 3, DepartmentID: 2, Name: "Orphaned Service", Active: true, DepartmentActive: false},
	}}
	s.now = time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	s.svc = NewService(
		s.store,
		s.dir,
		s.notifier,
		s.cache,
		audit.NewRecorder(s.audits),
		txcontext.NewMemoryRunner(),
		testMetrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func (s *ServiceSuite) ctxFor(userID int64, role string) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return requestcontext.WithActor(ctx, requestcontext.ActorInfo{UserID: userID, Role: role})
}

func (s *ServiceSuite) seedSlot(serviceID int64, capacity, booked int) TimeSlot {
	slot := TimeSlot{
		ServiceID:       serviceID,
		StartTime:       s.now.Add(24 * time.Hour),
		EndTime:         s.now.Add(24*time.Hour + 30*time.Minute),
		MaxCapacity:     capacity,
		CurrentBookings: booked,
		CreatedAt:       s.now,
	}
	slot.Recompute()
	return s.store.SeedSlot(slot)
}

func (s *ServiceSuite) mustBook(userID int64, slot TimeSlot) *Appointment {
	appt, err := s.svc.Book(s.ctxFor(userID, policy.RoleCitizen), BookRequest{
		UserID:     userID,
		ServiceID:  slot.ServiceID,
		TimeSlotID: slot.ID,
	})
	s.Require().NoError(err)
	return appt
}

func (s *ServiceSuite) slotCounter(id int64) int {
	slot, err := s.store.GetSlot(context.Background(), id)
	s.Require().NoError(err)
	return slot.CurrentBookings
}

func (s *ServiceSuite) TestBookAdmitsPendingAppointment() {
	slot := s.seedSlot(1, 2, 0)

	appt := s.mustBook(7, slot)

	s.Equal(StatusPending, appt.Status)
	s.Regexp(referencePattern, appt.BookingReference)
	s.Equal(QRPayload(appt.BookingReference, appt.ID), appt.QRCode)
	s.Equal(1, s.slotCounter(slot.ID))

	entries := s.audits.All()
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionAppointmentCreated, entries[0].Action)
	s.Equal(appt.ID, entries[0].RecordID)
	s.EqualValues(7, entries[0].ActorID)

	s.Equal(1, s.notifier.count())
	s.Contains(s.cache.invalidated, int64(1))
}

func (s *ServiceSuite) TestBookRejections() {
	slot := s.seedSlot(1, 1, 0)

	s.Run("booking for another user is denied", func() {
		_, err := s.svc.Book(s.ctxFor(8, policy.RoleCitizen), BookRequest{UserID: 7, ServiceID: 1, TimeSlotID: slot.ID})
		s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
	})

	s.Run("inactive service", func() {
		closed := s.seedSlot(2, 1, 0)
		_, err := s.svc.Book(s.ctxFor(7, policy.RoleCitizen), BookRequest{UserID: 7, ServiceID: 2, TimeSlotID: closed.ID})
		s.True(pkgerrors.Is(err, pkgerrors.CodeInvalidState))
	})

	s.Run("service under an inactive department", func() {
		orphaned := s.seedSlot(3, 1, 0)
		_, err := s.svc.Book(s.ctxFor(7, policy.RoleCitizen), BookRequest{UserID: 7, ServiceID: 3, TimeSlotID: orphaned.ID})
		s.True(pkgerrors.Is(err, pkgerrors.CodeInvalidState))
	})

	s.Run("unknown slot", func() {
		_, err := s.svc.Book(s.ctxFor(7, policy.RoleCitizen), BookRequest{UserID: 7, ServiceID: 1, TimeSlotID: 9999})
		s.True(pkgerrors.Is(err, pkgerrors.CodeNotFound))
	})

	s.Run("slot of a different service", func() {
		other := s.seedSlot(2, 1, 0)
		_, err := s.svc.Book(s.ctxFor(7, policy.RoleCitizen), BookRequest{UserID: 7, ServiceID: 1, TimeSlotID: other.ID})
		s.True(pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	})

	s.Run("slot in the past", func() {
		past := s.store.SeedSlot(TimeSlot{
			ServiceID:   1,
			StartTime:   s.now.Add(-time.Hour),
			EndTime:     s.now.Add(-30 * time.Minute),
			MaxCapacity: 1,
			IsAvailable: true,
		})
		_, err := s.svc.Book(s.ctxFor(7, policy.RoleCitizen), BookRequest{UserID: 7, ServiceID: 1, TimeSlotID: past.ID})
		s.True(pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	})

	s.Run("full slot", func() {
		s.mustBook(7, slot)
		_, err := s.svc.Book(s.ctxFor(8, policy.RoleCitizen), BookRequest{UserID: 8, ServiceID: 1, TimeSlotID: slot.ID})
		s.True(pkgerrors.Is(err, pkgerrors.CodeConflict))
		s.Equal(1, s.slotCounter(slot.ID))
	})

	s.Run("duplicate booking on the same slot", func() {
		wide := s.seedSlot(1, 5, 0)
		s.mustBook(9, wide)
		_, err := s.svc.Book(s.ctxFor(9, policy.RoleCitizen), BookRequest{UserID: 9, ServiceID: 1, TimeSlotID: wide.ID})
		s.True(pkgerrors.Is(err, pkgerrors.CodeConflict))
		s.Equal(1, s.slotCounter(wide.ID))
	})
}

func (s *ServiceSuite) TestBookLastSeatsUnderContention() {
	slot := s.seedSlot(1, 3, 0)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := int64(100 + i)
			_, errs[i] = s.svc.Book(s.ctxFor(userID, policy.RoleCitizen), BookRequest{
				UserID:     userID,
				ServiceID:  1,
				TimeSlotID: slot.ID,
			})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			s.True(pkgerrors.Is(err, pkgerrors.CodeConflict), "unexpected rejection: %v", err)
		}
	}
	s.Equal(3, admitted)
	s.Equal(3, s.slotCounter(slot.ID))

	got, err := s.store.GetSlot(context.Background(), slot.ID)
	s.Require().NoError(err)
	s.False(got.IsAvailable)
}

func (s *ServiceSuite) TestBookFailsClosedWhenAuditFails() {
	slot := s.seedSlot(1, 1, 0)
	s.audits.FailAppends(true)

	_, err := s.svc.Book(s.ctxFor(7, policy.RoleCitizen), BookRequest{UserID: 7, ServiceID: 1, TimeSlotID: slot.ID})

	s.Require().Error(err)
	// Notification follows the audit append, so nothing was queued.
	s.Equal(0, s.notifier.count())
}

func (s *ServiceSuite) TestTransitions() {
	slot := s.seedSlot(1, 5, 0)
	officer := s.ctxFor(50, policy.RoleOfficer)

	s.Run("confirmation does not touch the counter", func() {
		appt := s.mustBook(7, slot)
		before := s.slotCounter(slot.ID)

		got, err := s.svc.Transition(officer, appt.ID, StatusConfirmed)
		s.Require().NoError(err)
		s.Equal(StatusConfirmed, got.Status)
		s.Equal(before, s.slotCounter(slot.ID))
	})

	s.Run("cancellation releases the seat", func() {
		appt := s.mustBook(8, slot)
		before := s.slotCounter(slot.ID)

		got, err := s.svc.Transition(officer, appt.ID, StatusCancelled)
		s.Require().NoError(err)
		s.Equal(StatusCancelled, got.Status)
		s.Equal(before-1, s.slotCounter(slot.ID))
	})

	s.Run("no-show releases the seat", func() {
		appt := s.mustBook(9, slot)
		_, err := s.svc.Transition(officer, appt.ID, StatusConfirmed)
		s.Require().NoError(err)
		before := s.slotCounter(slot.ID)

		got, err := s.svc.Transition(officer, appt.ID, StatusNoShow)
		s.Require().NoError(err)
		s.Equal(StatusNoShow, got.Status)
		s.Equal(before-1, s.slotCounter(slot.ID))
	})

	s.Run("completion keeps the seat", func() {
		appt := s.mustBook(10, slot)
		_, err := s.svc.Transition(officer, appt.ID, StatusConfirmed)
		s.Require().NoError(err)
		before := s.slotCounter(slot.ID)

		got, err := s.svc.Transition(officer, appt.ID, StatusCompleted)
		s.Require().NoError(err)
		s.Equal(StatusCompleted, got.Status)
		s.Equal(before, s.slotCounter(slot.ID))
	})

	s.Run("re-applying the current status is a no-op", func() {
		appt := s.mustBook(11, slot)
		_, err := s.svc.Transition(officer, appt.ID, StatusConfirmed)
		s.Require().NoError(err)
		audits := len(s.audits.All())
		before := s.slotCounter(slot.ID)

		got, err := s.svc.Transition(officer, appt.ID, StatusConfirmed)
		s.Require().NoError(err)
		s.Equal(StatusConfirmed, got.Status)
		s.Len(s.audits.All(), audits)
		s.Equal(before, s.slotCounter(slot.ID))
	})

	s.Run("terminal statuses refuse further movement", func() {
		appt := s.mustBook(12, slot)
		_, err := s.svc.Transition(officer, appt.ID, StatusCancelled)
		s.Require().NoError(err)

		_, err = s.svc.Transition(officer, appt.ID, StatusConfirmed)
		s.True(pkgerrors.Is(err, pkgerrors.CodeConflict))
	})

	s.Run("illegal edge from a live status", func() {
		appt := s.mustBook(13, slot)
		_, err := s.svc.Transition(officer, appt.ID, StatusCompleted)
		s.True(pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
	})

	s.Run("unknown status is rejected before any lookup", func() {
		_, err := s.svc.Transition(officer, 1, Status("SCHEDULED"))
		s.True(pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	})

	s.Run("citizens cannot drive transitions", func() {
		appt := s.mustBook(14, slot)
		_, err := s.svc.Transition(s.ctxFor(14, policy.RoleCitizen), appt.ID, StatusConfirmed)
		s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
	})
}

func (s *ServiceSuite) TestCancel() {
	slot := s.seedSlot(1, 5, 0)

	s.Run("owner cancels and the seat frees", func() {
		appt := s.mustBook(7, slot)
		before := s.slotCounter(slot.ID)

		got, err := s.svc.Cancel(s.ctxFor(7, policy.RoleCitizen), appt.ID)
		s.Require().NoError(err)
		s.Equal(StatusCancelled, got.Status)
		s.Equal(before-1, s.slotCounter(slot.ID))

		// Second cancel is idempotent: no error, no second release.
		got, err = s.svc.Cancel(s.ctxFor(7, policy.RoleCitizen), appt.ID)
		s.Require().NoError(err)
		s.Equal(StatusCancelled, got.Status)
		s.Equal(before-1, s.slotCounter(slot.ID))
	})

	s.Run("only the owner may cancel", func() {
		appt := s.mustBook(8, slot)
		_, err := s.svc.Cancel(s.ctxFor(9, policy.RoleCitizen), appt.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))

		// Admins do not bypass ownership on cancel either.
		_, err = s.svc.Cancel(s.ctxFor(1, policy.RoleAdmin), appt.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
	})

	s.Run("completed appointments cannot be cancelled", func() {
		appt := s.mustBook(10, slot)
		officer := s.ctxFor(50, policy.RoleOfficer)
		_, err := s.svc.Transition(officer, appt.ID, StatusConfirmed)
		s.Require().NoError(err)
		_, err = s.svc.Transition(officer, appt.ID, StatusCompleted)
		s.Require().NoError(err)

		_, err = s.svc.Cancel(s.ctxFor(10, policy.RoleCitizen), appt.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestReschedule() {
	s.Run("moves the seat between slots", func() {
		from := s.seedSlot(1, 2, 0)
		to := s.seedSlot(1, 2, 0)
		appt := s.mustBook(7, from)

		got, err := s.svc.Reschedule(s.ctxFor(7, policy.RoleCitizen), appt.ID, to.ID)
		s.Require().NoError(err)
		s.Equal(to.ID, got.TimeSlotID)
		s.Equal(0, s.slotCounter(from.ID))
		s.Equal(1, s.slotCounter(to.ID))

		entries, err := s.audits.ListByRecord(context.Background(), "appointments", appt.ID)
		s.Require().NoError(err)
		s.Equal(audit.ActionAppointmentRescheduled, entries[len(entries)-1].Action)
	})

	s.Run("a confirmed appointment goes back to pending", func() {
		from := s.seedSlot(1, 2, 0)
		to := s.seedSlot(1, 2, 0)
		appt := s.mustBook(12, from)
		_, err := s.svc.Transition(s.ctxFor(99, policy.RoleOfficer), appt.ID, StatusConfirmed)
		s.Require().NoError(err)

		got, err := s.svc.Reschedule(s.ctxFor(12, policy.RoleCitizen), appt.ID, to.ID)
		s.Require().NoError(err)
		s.Equal(to.ID, got.TimeSlotID)
		s.Equal(StatusPending, got.Status)

		kept, err := s.store.GetAppointment(context.Background(), appt.ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, kept.Status)
	})

	s.Run("full target slot leaves everything untouched", func() {
		from := s.seedSlot(1, 2, 0)
		full := s.seedSlot(1, 1, 1)
		appt := s.mustBook(8, from)

		_, err := s.svc.Reschedule(s.ctxFor(8, policy.RoleCitizen), appt.ID, full.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodeConflict))

		kept, err := s.store.GetAppointment(context.Background(), appt.ID)
		s.Require().NoError(err)
		s.Equal(from.ID, kept.TimeSlotID)
		s.Equal(1, s.slotCounter(from.ID))
		s.Equal(1, s.slotCounter(full.ID))
	})

	s.Run("rescheduling onto the same slot is a no-op", func() {
		slot := s.seedSlot(1, 2, 0)
		appt := s.mustBook(9, slot)
		audits := len(s.audits.All())

		got, err := s.svc.Reschedule(s.ctxFor(9, policy.RoleCitizen), appt.ID, slot.ID)
		s.Require().NoError(err)
		s.Equal(slot.ID, got.TimeSlotID)
		s.Equal(1, s.slotCounter(slot.ID))
		s.Len(s.audits.All(), audits)
	})

	s.Run("target must belong to the same service", func() {
		from := s.seedSlot(1, 2, 0)
		other := s.seedSlot(2, 2, 0)
		appt := s.mustBook(10, from)

		_, err := s.svc.Reschedule(s.ctxFor(10, policy.RoleCitizen), appt.ID, other.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	})

	s.Run("cancelled appointments cannot move", func() {
		from := s.seedSlot(1, 2, 0)
		to := s.seedSlot(1, 2, 0)
		appt := s.mustBook(11, from)
		_, err := s.svc.Cancel(s.ctxFor(11, policy.RoleCitizen), appt.ID)
		s.Require().NoError(err)

		_, err = s.svc.Reschedule(s.ctxFor(11, policy.RoleCitizen), appt.ID, to.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodeConflict))
	})

	s.Run("only the owner may reschedule", func() {
		from := s.seedSlot(1, 2, 0)
		to := s.seedSlot(1, 2, 0)
		appt := s.mustBook(12, from)

		_, err := s.svc.Reschedule(s.ctxFor(13, policy.RoleCitizen), appt.ID, to.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
	})
}

func (s *ServiceSuite) TestReadAccess() {
	slot := s.seedSlot(1, 5, 0)
	appt := s.mustBook(7, slot)

	s.Run("owner reads own appointment", func() {
		got, err := s.svc.Get(s.ctxFor(7, policy.RoleCitizen), appt.ID)
		s.Require().NoError(err)
		s.Equal(appt.ID, got.ID)
	})

	s.Run("another citizen is denied", func() {
		_, err := s.svc.Get(s.ctxFor(8, policy.RoleCitizen), appt.ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))
	})

	s.Run("officer reads any appointment by reference", func() {
		got, err := s.svc.GetByReference(s.ctxFor(50, policy.RoleOfficer), appt.BookingReference)
		s.Require().NoError(err)
		s.Equal(appt.ID, got.ID)
	})

	s.Run("unknown reference", func() {
		_, err := s.svc.GetByReference(s.ctxFor(50, policy.RoleOfficer), "SL20250101XXXXXX")
		s.True(pkgerrors.Is(err, pkgerrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestStatisticsRequiresStaffRole() {
	slot := s.seedSlot(1, 5, 0)
	for i := 0; i < 3; i++ {
		s.mustBook(int64(20+i), slot)
	}

	_, err := s.svc.Statistics(s.ctxFor(7, policy.RoleCitizen), 1, 0)
	s.True(pkgerrors.Is(err, pkgerrors.CodePermissionDenied))

	stats, err := s.svc.Statistics(s.ctxFor(50, policy.RoleOfficer), 1, 0)
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal(3, stats.Pending)
}

func (s *ServiceSuite) TestListMine() {
	slot := s.seedSlot(1, 5, 0)
	mine := s.mustBook(7, slot)
	s.mustBook(8, slot)

	got, err := s.svc.ListMine(s.ctxFor(7, policy.RoleCitizen))
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(mine.ID, got[0].ID)
}

func (s *ServiceSuite) TestAvailableSlotsFiltersDayAndCapacity() {
	day := s.now.Add(24 * time.Hour)
	open := s.seedSlot(1, 2, 0)
	s.seedSlot(1, 1, 1)
	s.store.SeedSlot(TimeSlot{
		ServiceID:   1,
		StartTime:   day.Add(48 * time.Hour),
		EndTime:     day.Add(48*time.Hour + 30*time.Minute),
		MaxCapacity: 2,
		IsAvailable: true,
	})

	got, err := s.svc.AvailableSlots(s.ctxFor(7, policy.RoleCitizen), 1, day)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(open.ID, got[0].ID)
}
