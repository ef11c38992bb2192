package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"govbook/pkg/platform/sentinel"
)

// InMemoryStore is a mutex-guarded Store used by unit tests and local
// development. Values are copied in and out so callers never share state
// with the store.
type InMemoryStore struct {
	mu           sync.Mutex
	appointments map[int64]Appointment
	references   map[string]int64
	slots        map[int64]TimeSlot
	nextApptID   int64
	nextSlotID   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		appointments: make(map[int64]Appointment),
		references:   make(map[string]int64),
		slots:        make(map[int64]TimeSlot),
		nextApptID:   1,
		nextSlotID:   1,
	}
}

func (s *InMemoryStore) GetAppointment(_ context.Context, id int64) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

func (s *InMemoryStore) GetAppointmentForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	return s.GetAppointment(ctx, id)
}

func (s *InMemoryStore) GetAppointmentByReference(_ context.Context, reference string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.references[reference]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	a := s.appointments[id]
	return &a, nil
}

func (s *InMemoryStore) ListAppointmentsByUser(_ context.Context, userID int64) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListActiveByUser(_ context.Context, userID int64) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.UserID == userID && a.Status.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) ListActiveByService(_ context.Context, serviceID int64) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Appointment
	for _, a := range s.appointments {
		if a.ServiceID == serviceID && a.Status.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) HasActiveOnSlot(_ context.Context, userID, timeSlotID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.UserID == userID && a.TimeSlotID == timeSlotID && a.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) CreateAppointment(_ context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.references[appt.BookingReference]; taken {
		return sentinel.ErrConflict
	}
	appt.ID = s.nextApptID
	s.nextApptID++
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}
	s.appointments[appt.ID] = *appt
	s.references[appt.BookingReference] = appt.ID
	return nil
}

func (s *InMemoryStore) UpdateAppointment(_ context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[appt.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.appointments[appt.ID] = *appt
	return nil
}

func (s *InMemoryStore) Statistics(_ context.Context, serviceID, departmentID int64) (*Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &Statistics{}
	for _, a := range s.appointments {
		if serviceID != 0 && a.ServiceID != serviceID {
			continue
		}
		// The in-memory store has no service table to resolve departments
		// against, so departmentID filtering is a no-op here.
		_ = departmentID
		stats.Total++
		switch a.Status {
		case StatusPending:
			stats.Pending++
		case StatusConfirmed:
			stats.Confirmed++
		case StatusCompleted:
			stats.Completed++
		case StatusCancelled:
			stats.Cancelled++
		case StatusNoShow:
			stats.NoShow++
		}
	}
	return stats, nil
}

func (s *InMemoryStore) GetSlot(_ context.Context, id int64) (*TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.slots[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *InMemoryStore) GetSlotForUpdate(ctx context.Context, id int64) (*TimeSlot, error) {
	return s.GetSlot(ctx, id)
}

func (s *InMemoryStore) UpdateSlot(_ context.Context, slot *TimeSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slot.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.slots[slot.ID] = *slot
	return nil
}

func (s *InMemoryStore) CreateSlots(_ context.Context, slots []TimeSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range slots {
		slots[i].ID = s.nextSlotID
		s.nextSlotID++
		if slots[i].CreatedAt.IsZero() {
			slots[i].CreatedAt = time.Now().UTC()
		}
		s.slots[slots[i].ID] = slots[i]
	}
	return nil
}

func (s *InMemoryStore) ListSlotsByService(_ context.Context, serviceID int64) ([]TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TimeSlot
	for _, t := range s.slots {
		if t.ServiceID == serviceID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) ListAvailableSlots(_ context.Context, serviceID int64, day time.Time) ([]TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []TimeSlot
	for _, t := range s.slots {
		if t.ServiceID != serviceID || !t.IsAvailable {
			continue
		}
		if t.StartTime.Before(start) || !t.StartTime.Before(end) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// SeedSlot inserts a slot directly, for tests.
func (s *InMemoryStore) SeedSlot(slot TimeSlot) TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.ID == 0 {
		slot.ID = s.nextSlotID
		s.nextSlotID++
	} else if slot.ID >= s.nextSlotID {
		s.nextSlotID = slot.ID + 1
	}
	s.slots[slot.ID] = slot
	return slot
}
