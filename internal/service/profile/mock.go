package profile

import (
	"context"
	"sync"
	"time"

	"github.com/janisto/storytime-api/internal/domain"
)

// MockStore implements Store for unit tests. Profiles are copied in and out
// so callers never share state with the store.
type MockStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
	saves    int

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		profiles: make(map[string]domain.Profile),
	}
}

func (m *MockStore) Create(_ context.Context, userID string, p domain.Profile) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[userID]; exists {
		return nil, ErrAlreadyExists
	}

	now := time.Now().UTC()
	np := normalize(p)
	np.ID = userID
	np.CreatedAt = now
	if np.LastUpdate.IsZero() {
		np.LastUpdate = now
	}
	m.profiles[userID] = np
	out := np.Clone()
	return &out, nil
}

func (m *MockStore) Get(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.profiles[userID]
	if !exists {
		return nil, ErrNotFound
	}
	out := p.Clone()
	return &out, nil
}

func (m *MockStore) Update(_ context.Context, userID string, params UpdateParams) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.profiles[userID]
	if !exists {
		return nil, ErrNotFound
	}
	p = p.Clone()
	applyUpdate(&p, params)
	m.profiles[userID] = p
	out := p.Clone()
	return &out, nil
}

func (m *MockStore) Save(_ context.Context, userID string, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	existing, exists := m.profiles[userID]
	if !exists {
		return ErrNotFound
	}
	np := normalize(p)
	np.ID = userID
	np.CreatedAt = existing.CreatedAt
	m.profiles[userID] = np
	m.saves++
	return nil
}

func (m *MockStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[userID]; !exists {
		return ErrNotFound
	}
	delete(m.profiles, userID)
	return nil
}

// Put stores p as is, bypassing normalization (useful for test setup).
func (m *MockStore) Put(userID string, p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = p.Clone()
	p.ID = userID
	m.profiles[userID] = p
}

// Saves returns how many times Save succeeded.
func (m *MockStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Compile-time interface check
var _ Store = (*MockStore)(nil)
