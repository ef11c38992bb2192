package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"govbook/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and local development.
type InMemoryStore struct {
	mu          sync.Mutex
	users       map[int64]User
	departments map[int64]Department
	services    map[int64]Service
	officers    map[int64]Officer
	nextID      int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:       make(map[int64]User),
		departments: make(map[int64]Department),
		services:    make(map[int64]Service),
		officers:    make(map[int64]Officer),
		nextID:      1,
	}
}

func (s *InMemoryStore) allocate() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *InMemoryStore) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email || u.NationalID == user.NationalID {
			return sentinel.ErrConflict
		}
	}
	user.ID = s.allocate()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryStore) GetUser(_ context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *InMemoryStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryStore) UserActiveForUpdate(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return u.IsActive, nil
}

func (s *InMemoryStore) SetUserActive(_ context.Context, userID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *InMemoryStore) CreateDepartment(_ context.Context, dept *Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.departments {
		if d.Name == dept.Name {
			return sentinel.ErrConflict
		}
	}
	dept.ID = s.allocate()
	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = time.Now().UTC()
	}
	s.departments[dept.ID] = *dept
	return nil
}

func (s *InMemoryStore) GetDepartment(_ context.Context, id int64) (*Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.departments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &d, nil
}

func (s *InMemoryStore) ListDepartments(_ context.Context) ([]Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Department, 0, len(s.departments))
	for _, d := range s.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) DepartmentActiveForUpdate(_ context.Context, departmentID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.departments[departmentID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return d.IsActive, nil
}

func (s *InMemoryStore) SetDepartmentActive(_ context.Context, departmentID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.departments[departmentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	d.IsActive = active
	d.UpdatedAt = time.Now().UTC()
	s.departments[departmentID] = d
	return nil
}

func (s *InMemoryStore) CreateService(_ context.Context, svc *Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.ID = s.allocate()
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	s.services[svc.ID] = *svc
	return nil
}

func (s *InMemoryStore) GetService(_ context.Context, id int64) (*Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &svc, nil
}

func (s *InMemoryStore) ListServicesByDepartment(_ context.Context, departmentID int64) ([]Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Service
	for _, svc := range s.services {
		if svc.DepartmentID == departmentID {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) ListServiceIDsByDepartment(_ context.Context, departmentID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, svc := range s.services {
		if svc.DepartmentID == departmentID {
			out = append(out, svc.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *InMemoryStore) ServiceActiveForUpdate(_ context.Context, serviceID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return svc.IsActive, nil
}

func (s *InMemoryStore) SetServiceActive(_ context.Context, serviceID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return sentinel.ErrNotFound
	}
	svc.IsActive = active
	svc.UpdatedAt = time.Now().UTC()
	s.services[serviceID] = svc
	return nil
}

func (s *InMemoryStore) CreateOfficer(_ context.Context, officer *Officer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.officers {
		if o.OfficerID == officer.OfficerID {
			return sentinel.ErrConflict
		}
	}
	officer.ID = s.allocate()
	if officer.CreatedAt.IsZero() {
		officer.CreatedAt = time.Now().UTC()
	}
	s.officers[officer.ID] = *officer
	return nil
}

func (s *InMemoryStore) GetOfficer(_ context.Context, id int64) (*Officer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.officers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &o, nil
}

func (s *InMemoryStore) ListOfficerIDsByDepartment(_ context.Context, departmentID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, o := range s.officers {
		if o.DepartmentID == departmentID {
			out = append(out, o.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *InMemoryStore) OfficerIDByUser(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.officers {
		if o.UserID == userID {
			return o.ID, nil
		}
	}
	return 0, sentinel.ErrNotFound
}

func (s *InMemoryStore) OfficerActiveForUpdate(_ context.Context, officerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.officers[officerID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return o.IsActive, nil
}

func (s *InMemoryStore) SetOfficerActive(_ context.Context, officerID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.officers[officerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	o.IsActive = active
	o.UpdatedAt = time.Now().UTC()
	s.officers[officerID] = o
	return nil
}
