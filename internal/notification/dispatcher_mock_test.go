package notification_test

//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks Contacts,Channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"govbook/internal/notification"
	"govbook/internal/notification/mocks"
	txcontext "govbook/pkg/platform/tx"
)

func newMockedDispatcher(t *testing.T, channels ...notification.Channel) (*notification.Dispatcher, *notification.InMemoryStore, *mocks.MockContacts) {
	t.Helper()
	ctrl := gomock.NewController(t)
	contacts := mocks.NewMockContacts(ctrl)
	store := notification.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := notification.NewDispatcher(store, contacts, channels, txcontext.NewMemoryRunner(), 0, logger)
	return d, store, contacts
}

func seedUndelivered(t *testing.T, store *notification.InMemoryStore, userID int64) *notification.Notification {
	t.Helper()
	n := &notification.Notification{
		UserID:  userID,
		Type:    notification.TypeAppointment,
		Title:   "Appointment Booked",
		Message: "Your appointment has been booked.",
	}
	require.NoError(t, store.Create(context.Background(), n))
	return n
}

func TestDispatcherFansOutToAllChannels(t *testing.T) {
	ctrl := gomock.NewController(t)
	email := mocks.NewMockChannel(ctrl)
	sms := mocks.NewMockChannel(ctrl)

	d, store, contacts := newMockedDispatcher(t, email, sms)
	n := seedUndelivered(t, store, 7)

	ctx := context.Background()
	contacts.EXPECT().Contact(gomock.Any(), int64(7)).Return("nimal@example.com", "+94771234567", nil)
	email.EXPECT().Send(gomock.Any(), "nimal@example.com", "+94771234567", gomock.Any()).Return(nil)
	sms.EXPECT().Send(gomock.Any(), "nimal@example.com", "+94771234567", gomock.Any()).Return(nil)

	require.NoError(t, d.DispatchOnce(ctx))

	rows, err := store.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows, "delivered notification %d should be marked", n.ID)
}

func TestDispatcherRetriesWhenOneChannelFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	email := mocks.NewMockChannel(ctrl)
	sms := mocks.NewMockChannel(ctrl)

	d, store, contacts := newMockedDispatcher(t, email, sms)
	seedUndelivered(t, store, 7)

	ctx := context.Background()
	contacts.EXPECT().Contact(gomock.Any(), int64(7)).Return("nimal@example.com", "", nil).Times(2)
	email.EXPECT().Send(gomock.Any(), "nimal@example.com", "", gomock.Any()).Return(nil).Times(2)
	sms.EXPECT().Send(gomock.Any(), "nimal@example.com", "", gomock.Any()).Return(errors.New("gateway down"))
	sms.EXPECT().Name().Return("sms")

	require.NoError(t, d.DispatchOnce(ctx))

	rows, err := store.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1, "failed delivery stays queued")

	// Next sweep succeeds and drains the row.
	sms.EXPECT().Send(gomock.Any(), "nimal@example.com", "", gomock.Any()).Return(nil)
	require.NoError(t, d.DispatchOnce(ctx))

	rows, err = store.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}
