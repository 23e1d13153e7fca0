// Package app opens the backing services shared by the server and the
// operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/janisto/storytime-api/internal/config"
	"github.com/janisto/storytime-api/internal/http/health"
	"github.com/janisto/storytime-api/internal/permission"
	"github.com/janisto/storytime-api/internal/platform/auth"
	"github.com/janisto/storytime-api/internal/platform/firebase"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
	"github.com/janisto/storytime-api/internal/reminder"
	"github.com/janisto/storytime-api/internal/service/lifecycle"
	profilesvc "github.com/janisto/storytime-api/internal/service/profile"
)

// App holds the wired services. Close releases every client.
type App struct {
	Config    *config.Config
	Clock     timeutil.Clock
	Verifier  auth.Verifier
	Profiles  profilesvc.Store
	Gate      *permission.Gate
	Reminders reminder.Store
	Scheduler *reminder.Scheduler
	Lifecycle *lifecycle.Service
	Sender    reminder.Sender
	Checks    []health.Check

	closers []func() error
}

// Open connects to Firebase and the configured reminder backend.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	clients, err := firebase.InitializeClients(ctx, firebase.Config{
		ProjectID:                    cfg.FirebaseProjectID,
		GoogleApplicationCredentials: cfg.GoogleApplicationCredentials,
	})
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	if firebase.Emulated() {
		applog.LogInfo(ctx, "using firebase emulators", zap.String("projectId", cfg.FirebaseProjectID))
	}

	store, check, closeStore, err := NewReminderStore(ctx, cfg, clients.Firestore)
	if err != nil {
		_ = clients.Close()
		return nil, err
	}

	a := New(cfg, timeutil.SystemClock{},
		profilesvc.NewFirestoreStore(clients.Firestore),
		permission.NewGate(permission.NewFirestoreSource(clients.Firestore)),
		store,
		reminder.NewFCMSender(clients.Messaging),
	)
	a.Verifier = auth.NewFirebaseVerifier(clients.Auth)
	a.Checks = []health.Check{{Name: "firestore", Ping: FirestorePing(clients.Firestore)}}
	a.closers = []func() error{clients.Close}
	if check != nil {
		a.Checks = append(a.Checks, *check)
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}
	return a, nil
}

// New assembles an App from services that are already open.
func New(
	cfg *config.Config,
	clock timeutil.Clock,
	profiles profilesvc.Store,
	gate *permission.Gate,
	store reminder.Store,
	sender reminder.Sender,
) *App {
	scheduler := reminder.NewScheduler(store, clock,
		reminder.WithLead(cfg.ReminderLead),
		reminder.WithBuffer(cfg.ReminderBuffer),
	)
	return &App{
		Config:    cfg,
		Clock:     clock,
		Profiles:  profiles,
		Gate:      gate,
		Reminders: store,
		Scheduler: scheduler,
		Lifecycle: lifecycle.NewService(profiles, gate, scheduler, clock),
		Sender:    sender,
	}
}

// Dispatcher returns a dispatcher over the app's reminder store and sender.
func (a *App) Dispatcher() *reminder.Dispatcher {
	return reminder.NewDispatcher(a.Reminders, a.Sender, a.Clock)
}

// Close releases clients in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewReminderStore opens the configured reminder backend. The health check
// and close func are nil for Firestore, which shares the Firebase client.
func NewReminderStore(ctx context.Context, cfg *config.Config, fs *firestore.Client) (reminder.Store, *health.Check, func() error, error) {
	if cfg.ReminderBackend != config.BackendRedis {
		return reminder.NewFirestoreStore(fs), nil, nil, nil
	}
	rdb, err := reminder.DialRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	applog.LogInfo(ctx, "reminder store using redis")
	check := &health.Check{Name: "redis", Ping: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
	return reminder.NewRedisStore(rdb), check, rdb.Close, nil
}

// FirestorePing reads at most one profile document.
func FirestorePing(client *firestore.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		iter := client.Collection(profilesvc.Collection).Limit(1).Documents(ctx)
		defer iter.Stop()
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}
