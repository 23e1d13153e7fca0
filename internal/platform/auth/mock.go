package auth

import (
	"context"
)

// MockVerifier provides fake token verification for tests. Tokens maps a
// bearer token to its user; unknown tokens resolve to User.
type MockVerifier struct {
	User   *User
	Tokens map[string]*User
	Error  error
}

// Verify returns the configured user or error.
func (m *MockVerifier) Verify(_ context.Context, token string) (*User, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	if u, ok := m.Tokens[token]; ok {
		return u, nil
	}
	if m.User == nil {
		return nil, ErrInvalidToken
	}
	return m.User, nil
}

// TestUser returns the caregiver used across handler tests.
func TestUser() *User {
	return &User{
		UID:           "test-user-123",
		Email:         "test@example.com",
		EmailVerified: true,
		Provider:      ProviderPassword,
	}
}

// Compile-time interface check
var _ Verifier = (*MockVerifier)(nil)
