package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/platform/audit"
	auditmem "govbook/pkg/platform/audit/store/memory"
	txcontext "govbook/pkg/platform/tx"
	"govbook/pkg/requestcontext"
)

type NotificationSuite struct {
	suite.Suite

	store  *InMemoryStore
	audits *auditmem.InMemoryStore
	svc    *Service
}

func TestNotificationSuite(t *testing.T) {
	suite.Run(t, new(NotificationSuite))
}

func (s *NotificationSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.audits = auditmem.NewInMemoryStore()
	s.svc = NewService(
		s.store,
		audit.NewRecorder(s.audits),
		txcontext.NewMemoryRunner(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func (s *NotificationSuite) ctxFor(userID int64) context.Context {
	return requestcontext.WithActor(context.Background(),
		requestcontext.ActorInfo{UserID: userID, Role: "citizen"})
}

func (s *NotificationSuite) TestFeed() {
	ctx := s.ctxFor(7)
	s.Require().NoError(s.svc.AppointmentEvent(ctx, 7, 1, "Appointment Booked", "Your appointment SL1 has been booked."))
	s.Require().NoError(s.svc.AppointmentEvent(ctx, 7, 1, "Appointment Confirmed", "Your appointment SL1 is now CONFIRMED."))
	s.Require().NoError(s.svc.AppointmentEvent(ctx, 8, 2, "Appointment Booked", "other user"))

	list, err := s.svc.List(ctx, 0)
	s.Require().NoError(err)
	s.Len(list, 2)

	count, err := s.svc.UnreadCount(ctx)
	s.Require().NoError(err)
	s.Equal(2, count)

	s.Run("mark one read", func() {
		s.Require().NoError(s.svc.MarkRead(ctx, list[0].ID))
		count, err := s.svc.UnreadCount(ctx)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("cannot read someone else's notification", func() {
		err := s.svc.MarkRead(s.ctxFor(9), list[1].ID)
		s.True(pkgerrors.Is(err, pkgerrors.CodeNotFound))
	})

	s.Run("mark all read audits once", func() {
		n, err := s.svc.MarkAllRead(ctx)
		s.Require().NoError(err)
		s.EqualValues(1, n)

		entries := s.audits.All()
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionNotificationRead, entries[0].Action)

		// Nothing left unread, so a second sweep records nothing.
		n, err = s.svc.MarkAllRead(ctx)
		s.Require().NoError(err)
		s.Zero(n)
		s.Len(s.audits.All(), 1)
	})
}

type fakeContacts struct{}

func (fakeContacts) Contact(_ context.Context, userID int64) (string, string, error) {
	if userID == 404 {
		return "", "", errors.New("no such user")
	}
	return "user@example.lk", "+94770000000", nil
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []int64
	fail bool
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Send(_ context.Context, _, _ string, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("gateway down")
	}
	c.sent = append(c.sent, n.ID)
	return nil
}

func TestDispatcherDeliversAndMarks(t *testing.T) {
	store := NewInMemoryStore()
	channel := &fakeChannel{}
	d := NewDispatcher(store, fakeContacts{}, []Channel{channel},
		txcontext.NewMemoryRunner(), time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := store.Create(ctx, &Notification{UserID: 7, Type: TypeAppointment, Title: "T", Message: "M"}); err != nil {
			t.Fatal(err)
		}
	}

	if err := d.DispatchOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if len(channel.sent) != 3 {
		t.Fatalf("sent %d, want 3", len(channel.sent))
	}
	left, err := store.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Fatalf("%d undelivered rows left, want 0", len(left))
	}
}

func TestDispatcherKeepsFailedDeliveries(t *testing.T) {
	store := NewInMemoryStore()
	channel := &fakeChannel{fail: true}
	d := NewDispatcher(store, fakeContacts{}, []Channel{channel},
		txcontext.NewMemoryRunner(), time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	if err := store.Create(ctx, &Notification{UserID: 7, Type: TypeAppointment, Title: "T", Message: "M"}); err != nil {
		t.Fatal(err)
	}
	if err := d.DispatchOnce(ctx); err != nil {
		t.Fatal(err)
	}

	left, err := store.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 {
		t.Fatalf("failed delivery was dropped from the queue")
	}
}

func TestDispatcherDropsUnresolvableRecipients(t *testing.T) {
	store := NewInMemoryStore()
	channel := &fakeChannel{}
	d := NewDispatcher(store, fakeContacts{}, []Channel{channel},
		txcontext.NewMemoryRunner(), time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	if err := store.Create(ctx, &Notification{UserID: 404, Type: TypeSystem, Title: "T", Message: "M"}); err != nil {
		t.Fatal(err)
	}
	if err := d.DispatchOnce(ctx); err != nil {
		t.Fatal(err)
	}

	left, err := store.ListUndelivered(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Fatalf("unresolvable recipient should be dropped, %d left", len(left))
	}
}
