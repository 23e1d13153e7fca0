package profile

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/janisto/storytime-api/internal/domain"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

// Collection is the Firestore collection holding one profile document per user.
const Collection = "profiles"

// categorizeError converts errors to audit-safe categories.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}

// firestoreProfile maps to Firestore document structure.
type firestoreProfile struct {
	ChildName   string           `firestore:"child_name"`
	Stage       string           `firestore:"stage"`
	DateOfBirth *time.Time       `firestore:"date_of_birth"`
	DueDate     *time.Time       `firestore:"due_date"`
	Interests   []string         `firestore:"interests"`
	StoryTime   domain.TimeOfDay `firestore:"story_time"`
	TimeZone    string           `firestore:"time_zone"`
	LastUpdate  time.Time        `firestore:"last_update"`
	CreatedAt   time.Time        `firestore:"created_at"`
	UpdatedAt   time.Time        `firestore:"updated_at"`
}

func toFirestore(p domain.Profile, now time.Time) firestoreProfile {
	return firestoreProfile{
		ChildName:   p.ChildName,
		Stage:       string(p.Stage),
		DateOfBirth: p.DateOfBirth,
		DueDate:     p.DueDate,
		Interests:   p.Interests,
		StoryTime:   p.StoryTime,
		TimeZone:    p.TimeZone,
		LastUpdate:  p.LastUpdate,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   now,
	}
}

func (fp firestoreProfile) toDomain(userID string) (*domain.Profile, error) {
	st, err := domain.ParseStage(fp.Stage)
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		ID:          userID,
		ChildName:   fp.ChildName,
		Stage:       st,
		DateOfBirth: fp.DateOfBirth,
		DueDate:     fp.DueDate,
		Interests:   fp.Interests,
		StoryTime:   fp.StoryTime,
		TimeZone:    fp.TimeZone,
		LastUpdate:  fp.LastUpdate,
		CreatedAt:   fp.CreatedAt,
	}, nil
}

// FirestoreStore implements Store using Firestore with transactions.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// Create stores a new profile using a transaction to prevent duplicates.
func (s *FirestoreStore) Create(ctx context.Context, userID string, p domain.Profile) (*domain.Profile, error) {
	docRef := s.client.Collection(Collection).Doc(userID)
	now := time.Now().UTC()

	var result *domain.Profile

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err == nil && doc.Exists() {
			return ErrAlreadyExists
		}
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		np := normalize(p)
		np.ID = userID
		np.CreatedAt = now
		if np.LastUpdate.IsZero() {
			np.LastUpdate = now
		}
		if err := tx.Set(docRef, toFirestore(np, now)); err != nil {
			return err
		}
		result = &np
		return nil
	})
	if err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:   "create",
			UserID:   userID,
			Resource: "profile",
			Err:      err,
			Reason:   categorizeError(err),
		})
		return nil, err
	}

	applog.Audit(ctx, applog.AuditEvent{
		Action:   "create",
		UserID:   userID,
		Resource: "profile",
	})

	return result, nil
}

// Get retrieves a profile by user ID.
func (s *FirestoreStore) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	doc, err := s.client.Collection(Collection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var fp firestoreProfile
	if err := doc.DataTo(&fp); err != nil {
		return nil, err
	}
	return fp.toDomain(userID)
}

// Update applies user edits using a transaction for atomicity.
func (s *FirestoreStore) Update(ctx context.Context, userID string, params UpdateParams) (*domain.Profile, error) {
	docRef := s.client.Collection(Collection).Doc(userID)

	var result *domain.Profile

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}

		var fp firestoreProfile
		if err := doc.DataTo(&fp); err != nil {
			return err
		}
		p, err := fp.toDomain(userID)
		if err != nil {
			return err
		}
		applyUpdate(p, params)

		if err := tx.Set(docRef, toFirestore(*p, time.Now().UTC())); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:   "update",
			UserID:   userID,
			Resource: "profile",
			Err:      err,
			Reason:   categorizeError(err),
		})
		return nil, err
	}

	applog.Audit(ctx, applog.AuditEvent{
		Action:   "update",
		UserID:   userID,
		Resource: "profile",
	})

	return result, nil
}

// Save overwrites an existing profile with the reconciled copy.
func (s *FirestoreStore) Save(ctx context.Context, userID string, p domain.Profile) error {
	docRef := s.client.Collection(Collection).Doc(userID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}

		var existing firestoreProfile
		if err := doc.DataTo(&existing); err != nil {
			return err
		}
		np := normalize(p)
		np.CreatedAt = existing.CreatedAt
		return tx.Set(docRef, toFirestore(np, time.Now().UTC()))
	})
	if err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:   "save",
			UserID:   userID,
			Resource: "profile",
			Err:      err,
			Reason:   categorizeError(err),
		})
		return err
	}

	applog.Audit(ctx, applog.AuditEvent{
		Action:   "save",
		UserID:   userID,
		Resource: "profile",
		Details:  map[string]any{"stage": string(p.Stage)},
	})

	return nil
}

// Delete removes a profile using a transaction to ensure it exists.
func (s *FirestoreStore) Delete(ctx context.Context, userID string) error {
	docRef := s.client.Collection(Collection).Doc(userID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}

		return tx.Delete(docRef)
	})
	if err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:   "delete",
			UserID:   userID,
			Resource: "profile",
			Err:      err,
			Reason:   categorizeError(err),
		})
		return err
	}

	applog.Audit(ctx, applog.AuditEvent{
		Action:   "delete",
		UserID:   userID,
		Resource: "profile",
	})

	return nil
}

// Compile-time interface check
var _ Store = (*FirestoreStore)(nil)
