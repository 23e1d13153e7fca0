package reminder

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

const remindersCollection = "reminders"

// firestoreReminder maps to Firestore document structure.
type firestoreReminder struct {
	UserID     string    `firestore:"user_id"`
	Identifier string    `firestore:"identifier"`
	FireAt     time.Time `firestore:"fire_at"`
	Hour       int       `firestore:"hour"`
	Minute     int       `firestore:"minute"`
	LeadSecs   int64     `firestore:"lead_seconds"`
	Repeats    bool      `firestore:"repeats"`
	TimeZone   string    `firestore:"time_zone"`
	Title      string    `firestore:"title"`
	Body       string    `firestore:"body"`
	UpdatedAt  time.Time `firestore:"updated_at"`
}

func toFirestore(userID string, req Request) firestoreReminder {
	return firestoreReminder{
		UserID:     userID,
		Identifier: req.Identifier,
		FireAt:     req.FireAt.UTC(),
		Hour:       req.Hour,
		Minute:     req.Minute,
		LeadSecs:   int64(req.Lead / time.Second),
		Repeats:    req.Repeats,
		TimeZone:   req.TimeZone,
		Title:      req.Title,
		Body:       req.Body,
		UpdatedAt:  time.Now().UTC(),
	}
}

func (fr firestoreReminder) request() Request {
	return Request{
		Identifier: fr.Identifier,
		FireAt:     fr.FireAt,
		Hour:       fr.Hour,
		Minute:     fr.Minute,
		Lead:       time.Duration(fr.LeadSecs) * time.Second,
		Repeats:    fr.Repeats,
		TimeZone:   fr.TimeZone,
		Title:      fr.Title,
		Body:       fr.Body,
	}
}

// FirestoreStore implements Store with one document per user and identifier.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed reminder store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) doc(userID, identifier string) *firestore.DocumentRef {
	return s.client.Collection(remindersCollection).Doc(userID + ":" + identifier)
}

// Add writes the request, replacing any document under the same identifier.
func (s *FirestoreStore) Add(ctx context.Context, userID string, req Request) error {
	fr := toFirestore(userID, req)
	if _, err := s.doc(userID, req.Identifier).Set(ctx, fr); err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:     "schedule",
			UserID:     userID,
			Resource:   "reminder",
			ResourceID: req.Identifier,
			Err:        err,
		})
		return err
	}
	applog.Audit(ctx, applog.AuditEvent{
		Action:     "schedule",
		UserID:     userID,
		Resource:   "reminder",
		ResourceID: req.Identifier,
		Details:    map[string]any{"fireAt": fr.FireAt},
	})
	return nil
}

// Cancel deletes the document. Deleting a missing document succeeds.
func (s *FirestoreStore) Cancel(ctx context.Context, userID, identifier string) error {
	if _, err := s.doc(userID, identifier).Delete(ctx); err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:     "cancel",
			UserID:     userID,
			Resource:   "reminder",
			ResourceID: identifier,
			Err:        err,
		})
		return err
	}
	applog.Audit(ctx, applog.AuditEvent{
		Action:     "cancel",
		UserID:     userID,
		Resource:   "reminder",
		ResourceID: identifier,
	})
	return nil
}

// Pending lists the identifiers registered for userID.
func (s *FirestoreStore) Pending(ctx context.Context, userID string) ([]string, error) {
	docs, err := s.client.Collection(remindersCollection).
		Where("user_id", "==", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		var fr firestoreReminder
		if err := doc.DataTo(&fr); err != nil {
			return nil, err
		}
		ids = append(ids, fr.Identifier)
	}
	return ids, nil
}

// Due returns requests whose fire time is at or before now, oldest first.
func (s *FirestoreStore) Due(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	q := s.client.Collection(remindersCollection).
		Where("fire_at", "<=", now.UTC()).
		OrderBy("fire_at", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		var fr firestoreReminder
		if err := doc.DataTo(&fr); err != nil {
			return nil, err
		}
		entries = append(entries, Entry{UserID: fr.UserID, Request: fr.request()})
	}
	return entries, nil
}

// Advance replaces or deletes the document inside a transaction that first
// checks it still holds prev.
func (s *FirestoreStore) Advance(ctx context.Context, userID string, prev Request, next *Request) (bool, error) {
	ref := s.doc(userID, prev.Identifier)
	var applied bool
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var fr firestoreReminder
		if err := snap.DataTo(&fr); err != nil {
			return err
		}
		if !fr.request().Same(prev) {
			return nil
		}
		applied = true
		if next == nil {
			return tx.Delete(ref)
		}
		return tx.Set(ref, toFirestore(userID, *next))
	})
	if err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:     "advance",
			UserID:     userID,
			Resource:   "reminder",
			ResourceID: prev.Identifier,
			Err:        err,
		})
		return false, err
	}
	if applied {
		applog.Audit(ctx, applog.AuditEvent{
			Action:     "advance",
			UserID:     userID,
			Resource:   "reminder",
			ResourceID: prev.Identifier,
			Details:    map[string]any{"removed": next == nil},
		})
	}
	return applied, nil
}

// Compile-time interface check
var _ Store = (*FirestoreStore)(nil)
