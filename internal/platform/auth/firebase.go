package auth

import (
	"context"
	"errors"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
)

// Sign-in providers reported in the token's firebase.sign_in_provider claim.
const (
	ProviderAnonymous = "anonymous"
	ProviderPassword  = "password"
)

// User is the caller identified by a verified ID token. Caregivers may start
// onboarding anonymously and link an account later; the UID is stable across
// the link.
type User struct {
	UID           string
	Email         string
	EmailVerified bool
	Provider      string
}

// Anonymous reports whether the user has not linked an account yet.
func (u *User) Anonymous() bool {
	return u.Provider == ProviderAnonymous
}

var (
	// ErrNoToken indicates missing Authorization header.
	ErrNoToken = errors.New("missing authorization header")
	// ErrInvalidToken indicates an invalid token format or signature.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrUserDisabled = errors.New("user disabled")
	// ErrCertificateFetch indicates the public keys could not be fetched.
	// Callers answer 503, not 401.
	ErrCertificateFetch = errors.New("failed to fetch certificates")
)

// Verifier validates tokens and returns user information.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// verifyErrors maps Admin SDK failures to package errors, first match wins.
var verifyErrors = []struct {
	match func(error) bool
	err   error
}{
	{fbauth.IsCertificateFetchFailed, ErrCertificateFetch},
	{fbauth.IsIDTokenExpired, ErrTokenExpired},
	{fbauth.IsIDTokenRevoked, ErrTokenRevoked},
	{fbauth.IsUserDisabled, ErrUserDisabled},
}

// FirebaseVerifier implements Verifier using Firebase Admin SDK.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier creates a new verifier with the given auth client.
func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify validates a Firebase ID token and checks for revocation.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*User, error) {
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		for _, m := range verifyErrors {
			if m.match(err) {
				return nil, m.err
			}
		}
		return nil, ErrInvalidToken
	}
	return userFromToken(token), nil
}

func userFromToken(token *fbauth.Token) *User {
	email, _ := token.Claims["email"].(string)
	verified, _ := token.Claims["email_verified"].(bool)
	return &User{
		UID:           token.UID,
		Email:         email,
		EmailVerified: verified,
		Provider:      token.Firebase.SignInProvider,
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrInvalidToken
	}
	return token, nil
}

// Compile-time interface check
var _ Verifier = (*FirebaseVerifier)(nil)
