package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"govbook/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.Mutex
	items  map[int64]Notification
	nextID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[int64]Notification), nextID: 1}
}

func (s *InMemoryStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextID
	s.nextID++
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.items[n.ID] = *n
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id int64) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &n, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID int64, limit int) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UnreadCount(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) MarkRead(_ context.Context, id, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok || n.UserID != userID || n.IsRead {
		return sentinel.ErrNotFound
	}
	n.IsRead = true
	n.ReadAt = time.Now().UTC()
	s.items[id] = n
	return nil
}

func (s *InMemoryStore) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = time.Now().UTC()
			s.items[id] = n
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListUndelivered(_ context.Context, limit int) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, n := range s.items {
		if n.DeliveredAt.IsZero() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) MarkDelivered(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		if n, ok := s.items[id]; ok {
			n.DeliveredAt = now
			s.items[id] = n
		}
	}
	return nil
}

func (s *InMemoryStore) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.items {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(s.items, id)
			count++
		}
	}
	return count, nil
}
