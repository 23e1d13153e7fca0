// Package firebase opens the Firebase clients the service depends on:
// Auth for ID tokens, Firestore for profiles and reminders, Messaging for
// reminder delivery.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Emulator host variables read by the Firebase SDKs.
const (
	FirestoreEmulatorEnv = "FIRESTORE_EMULATOR_HOST"
	AuthEmulatorEnv      = "FIREBASE_AUTH_EMULATOR_HOST"
)

// Config selects the project and, optionally, a service account key file.
// Without a key file Application Default Credentials are used.
type Config struct {
	ProjectID                    string
	GoogleApplicationCredentials string
}

// Clients bundles the initialized SDK clients.
type Clients struct {
	Auth      *auth.Client
	Firestore *firestore.Client
	Messaging *messaging.Client
}

// Emulated reports whether Firestore or Auth traffic goes to a local emulator.
func Emulated() bool {
	return os.Getenv(FirestoreEmulatorEnv) != "" || os.Getenv(AuthEmulatorEnv) != ""
}

// InitializeClients creates the Firebase app and its clients. On failure any
// client already opened is closed.
func InitializeClients(ctx context.Context, cfg Config) (*Clients, error) {
	var opts []option.ClientOption
	if cfg.GoogleApplicationCredentials != "" && !Emulated() {
		creds, err := os.ReadFile(cfg.GoogleApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("new app: %w", err)
	}

	c := &Clients{}
	if c.Auth, err = fbApp.Auth(ctx); err != nil {
		return nil, fmt.Errorf("auth client: %w", err)
	}
	if c.Firestore, err = fbApp.Firestore(ctx); err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	if c.Messaging, err = fbApp.Messaging(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("messaging client: %w", err), c.Close())
	}
	return c, nil
}

// Close releases the Firestore connection. Auth and Messaging hold none.
func (c *Clients) Close() error {
	if c == nil || c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close()
}
