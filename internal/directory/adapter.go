package directory

import (
	"context"

	"govbook/internal/booking"
)

// BookingAdapter exposes the directory to the booking feature in the shape it
// needs for admission decisions. Reads join the booking transaction through
// ctx, so the activity flags are consistent with the admission.
type BookingAdapter struct {
	store Store
}

func NewBookingAdapter(store Store) *BookingAdapter {
	return &BookingAdapter{store: store}
}

// ContactAdapter resolves delivery addresses for the notification
// dispatcher.
type ContactAdapter struct {
	store Store
}

func NewContactAdapter(store Store) *ContactAdapter {
	return &ContactAdapter{store: store}
}

func (a *ContactAdapter) Contact(ctx context.Context, userID int64) (string, string, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return user.Email, user.PhoneNumber, nil
}

func (a *BookingAdapter) ServiceInfo(ctx context.Context, serviceID int64) (*booking.ServiceInfo, error) {
	svc, err := a.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	dept, err := a.store.GetDepartment(ctx, svc.DepartmentID)
	if err != nil {
		return nil, err
	}
	return &booking.ServiceInfo{
		ID:               svc.ID,
		DepartmentID:     svc.DepartmentID,
		Name:             svc.Name,
		Active:           svc.IsActive,
		DepartmentActive: dept.IsActive,
	}, nil
}
