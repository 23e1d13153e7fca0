package reminder

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MockStore implements Store in memory for unit tests.
type MockStore struct {
	mu       sync.RWMutex
	requests map[string]map[string]Request

	// AddErr and CancelErr, when set, fail the corresponding call.
	AddErr    error
	CancelErr error

	// AfterDue, when set, runs after Due has taken its snapshot. Tests use it
	// to change the store while a dispatch pass is in flight.
	AfterDue func()
}

// NewMockStore creates a new in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{requests: make(map[string]map[string]Request)}
}

func (m *MockStore) Add(_ context.Context, userID string, req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}
	if m.requests[userID] == nil {
		m.requests[userID] = make(map[string]Request)
	}
	m.requests[userID][req.Identifier] = req
	return nil
}

func (m *MockStore) Cancel(_ context.Context, userID, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CancelErr != nil {
		return m.CancelErr
	}
	delete(m.requests[userID], identifier)
	return nil
}

func (m *MockStore) Pending(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.requests[userID]))
	for id := range m.requests[userID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *MockStore) Due(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	due := m.due(now, limit)
	if m.AfterDue != nil {
		m.AfterDue()
	}
	return due, nil
}

func (m *MockStore) due(now time.Time, limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []Entry
	for userID, reqs := range m.requests {
		for _, req := range reqs {
			if !req.FireAt.After(now) {
				due = append(due, Entry{UserID: userID, Request: req})
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Request.FireAt.Before(due[j].Request.FireAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

func (m *MockStore) Advance(_ context.Context, userID string, prev Request, next *Request) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.requests[userID][prev.Identifier]
	if !ok || !cur.Same(prev) {
		return false, nil
	}
	if next == nil {
		delete(m.requests[userID], prev.Identifier)
		return true, nil
	}
	m.requests[userID][prev.Identifier] = *next
	return true, nil
}

// Get returns the request registered under identifier, if any.
func (m *MockStore) Get(userID, identifier string) (Request, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[userID][identifier]
	return req, ok
}

// Compile-time interface check
var _ Store = (*MockStore)(nil)
