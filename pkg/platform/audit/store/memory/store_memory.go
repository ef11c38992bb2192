package memory

import (
	"context"
	"sync"
	"time"

	audit "govbook/pkg/platform/audit"
)

// InMemoryStore keeps entries in append order. It backs unit tests that assert
// on cascade record ordering.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	failing bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// FailAppends makes every Append return an error. Tests use this to prove the
// primary operation fails when the audit write fails.
func (s *InMemoryStore) FailAppends(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = fail
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errAppendFailed
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByRecord(_ context.Context, table string, recordID int64) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.Table == table && e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListRecent returns the newest entries, most recent first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if limit > n {
		limit = n
	}
	out := make([]audit.Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// All returns every entry in append order.
func (s *InMemoryStore) All() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries...)
}

func (s *InMemoryStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var purged int64
	for _, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return purged, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

type appendError struct{}

func (appendError) Error() string { return "audit append failed" }

var errAppendFailed = appendError{}
