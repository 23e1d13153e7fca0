// Package testutil holds helpers for tests that talk to the Firebase
// emulators or a local Redis. Tests skip when those are not running.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"testing"
	"time"
)

const (
	AuthEmulatorHost      = "127.0.0.1:7110"
	FirestoreEmulatorHost = "127.0.0.1:7130"
	ProjectID             = "demo-storytime"
	DefaultRedisAddr      = "127.0.0.1:6379"
	emulatorAPIKey        = "emulator-key" //nolint:gosec // the Auth emulator accepts any key
)

func reachable(addr string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func skipUnless(t *testing.T, addr, what string) {
	t.Helper()
	if !reachable(addr) {
		t.Skipf("%s not reachable at %s", what, addr)
	}
}

// SkipIfFirestoreUnavailable skips unless the Firestore emulator is up.
func SkipIfFirestoreUnavailable(t *testing.T) {
	t.Helper()
	skipUnless(t, FirestoreEmulatorHost, "Firestore emulator")
}

// SkipIfAuthUnavailable skips unless the Auth emulator is up.
func SkipIfAuthUnavailable(t *testing.T) {
	t.Helper()
	skipUnless(t, AuthEmulatorHost, "Auth emulator")
}

// SkipIfRedisUnavailable skips unless Redis answers at REDIS_ADDR (default
// 127.0.0.1:6379) and returns the address.
func SkipIfRedisUnavailable(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = DefaultRedisAddr
	}
	skipUnless(t, addr, "Redis")
	return addr
}

// SetupEmulator points the Firebase SDKs at the local emulators for the
// duration of the test.
func SetupEmulator(t *testing.T) {
	t.Helper()
	t.Setenv("FIREBASE_AUTH_EMULATOR_HOST", AuthEmulatorHost)
	t.Setenv("FIRESTORE_EMULATOR_HOST", FirestoreEmulatorHost)
}

// ClearFirestore deletes every document in the emulator project.
func ClearFirestore(t *testing.T) {
	t.Helper()
	emulatorCall(t, http.MethodDelete, fmt.Sprintf("http://%s/emulator/v1/projects/%s/databases/(default)/documents",
		FirestoreEmulatorHost, ProjectID), nil, nil)
}

// ClearAccounts deletes every user in the Auth emulator project.
func ClearAccounts(t *testing.T) {
	t.Helper()
	emulatorCall(t, http.MethodDelete, fmt.Sprintf("http://%s/emulator/v1/projects/%s/accounts",
		AuthEmulatorHost, ProjectID), nil, nil)
}

// Account is the Auth emulator's sign-up response.
type Account struct {
	IDToken string `json:"idToken"`
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

// CreateCaregiver registers an email/password account and returns its ID
// token.
func CreateCaregiver(t *testing.T, email, password string) Account {
	t.Helper()
	return signUp(t, map[string]any{"email": email, "password": password, "returnSecureToken": true})
}

// CreateGuest signs in anonymously.
func CreateGuest(t *testing.T) Account {
	t.Helper()
	return signUp(t, map[string]any{"returnSecureToken": true})
}

func signUp(t *testing.T, body map[string]any) Account {
	t.Helper()
	var acct Account
	emulatorCall(t, http.MethodPost, fmt.Sprintf("http://%s/identitytoolkit.googleapis.com/v1/accounts:signUp?key=%s",
		AuthEmulatorHost, emulatorAPIKey), body, &acct)
	if acct.IDToken == "" {
		t.Fatal("emulator returned no ID token")
	}
	return acct
}

func emulatorCall(t *testing.T, method, url string, body, out any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal emulator request: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("build emulator request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		t.Fatalf("%s %s: status %d", method, url, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode emulator response: %v", err)
		}
	}
}
