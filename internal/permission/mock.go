package permission

import (
	"context"
	"sync"
)

// MockSource implements Source for unit tests.
type MockSource struct {
	mu       sync.RWMutex
	statuses map[string]Status
	requests map[string]int

	// Err, when set, is returned by every call.
	Err error
	// RequestResult is the status a pending request resolves to. Defaults
	// to StatusNotDetermined, mirroring a prompt not yet answered.
	RequestResult Status
}

// NewMockSource creates a new mock permission source.
func NewMockSource() *MockSource {
	return &MockSource{
		statuses: make(map[string]Status),
		requests: make(map[string]int),
	}
}

func (m *MockSource) CurrentStatus(_ context.Context, userID string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return StatusUnknown, m.Err
	}
	if st, ok := m.statuses[userID]; ok {
		return st, nil
	}
	return StatusNotDetermined, nil
}

func (m *MockSource) Request(_ context.Context, userID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return StatusUnknown, m.Err
	}
	m.requests[userID]++
	st := m.RequestResult
	if st == "" {
		st = StatusNotDetermined
	}
	m.statuses[userID] = st
	return st, nil
}

func (m *MockSource) Report(_ context.Context, userID string, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.statuses[userID] = st
	return nil
}

// Set overrides the status for userID.
func (m *MockSource) Set(userID string, st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[userID] = st
}

// Requests returns how many times Request was called for userID.
func (m *MockSource) Requests(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[userID]
}

// Compile-time interface check
var _ Source = (*MockSource)(nil)
