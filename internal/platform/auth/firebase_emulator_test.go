package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/janisto/storytime-api/internal/platform/firebase"
	"github.com/janisto/storytime-api/internal/testutil"
)

func emulatorVerifier(t *testing.T) *FirebaseVerifier {
	t.Helper()
	testutil.SkipIfAuthUnavailable(t)
	testutil.SetupEmulator(t)

	clients, err := firebase.InitializeClients(context.Background(), firebase.Config{ProjectID: testutil.ProjectID})
	if err != nil {
		t.Fatalf("init clients: %v", err)
	}
	t.Cleanup(func() {
		_ = clients.Close()
		testutil.ClearAccounts(t)
	})
	return NewFirebaseVerifier(clients.Auth)
}

func TestFirebaseVerifierWithEmulator(t *testing.T) {
	v := emulatorVerifier(t)
	ctx := context.Background()

	t.Run("caregiver", func(t *testing.T) {
		acct := testutil.CreateCaregiver(t, "parent@example.com", "bedtime-stories")
		user, err := v.Verify(ctx, acct.IDToken)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.UID != acct.LocalID {
			t.Errorf("expected uid %s, got %s", acct.LocalID, user.UID)
		}
		if user.Email != "parent@example.com" {
			t.Errorf("expected email parent@example.com, got %s", user.Email)
		}
		if user.Anonymous() {
			t.Error("expected caregiver not to be anonymous")
		}
	})

	t.Run("guest", func(t *testing.T) {
		acct := testutil.CreateGuest(t)
		user, err := v.Verify(ctx, acct.IDToken)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !user.Anonymous() {
			t.Errorf("expected anonymous guest, got provider %q", user.Provider)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if _, err := v.Verify(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}
