package permission

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

const permissionsCollection = "notification_permissions"

// firestorePermission maps to Firestore document structure.
type firestorePermission struct {
	Status          string     `firestore:"status"`
	PromptRequested bool       `firestore:"prompt_requested"`
	RequestedAt     *time.Time `firestore:"requested_at"`
	UpdatedAt       time.Time  `firestore:"updated_at"`
}

// FirestoreSource implements Source with one document per user. Devices
// report their OS authorization state; a request flags the document so the
// device shows the system prompt on its next foreground.
type FirestoreSource struct {
	client *firestore.Client
}

// NewFirestoreSource creates a new Firestore-backed permission source.
func NewFirestoreSource(client *firestore.Client) *FirestoreSource {
	return &FirestoreSource{client: client}
}

// CurrentStatus returns the last reported status. Users with no report yet
// have never been asked.
func (s *FirestoreSource) CurrentStatus(ctx context.Context, userID string) (Status, error) {
	doc, err := s.client.Collection(permissionsCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return StatusNotDetermined, nil
		}
		return StatusUnknown, err
	}
	var fp firestorePermission
	if err := doc.DataTo(&fp); err != nil {
		return StatusUnknown, err
	}
	st, err := ParseStatus(fp.Status)
	if err != nil {
		return StatusUnknown, err
	}
	return st, nil
}

// Request flags a pending system prompt for a user who has not been asked.
func (s *FirestoreSource) Request(ctx context.Context, userID string) (Status, error) {
	docRef := s.client.Collection(permissionsCollection).Doc(userID)
	result := StatusUnknown

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		fp := firestorePermission{Status: string(StatusNotDetermined)}
		doc, err := tx.Get(docRef)
		switch {
		case err == nil:
			if err := doc.DataTo(&fp); err != nil {
				return err
			}
		case status.Code(err) != codes.NotFound:
			return err
		}

		st, err := ParseStatus(fp.Status)
		if err != nil {
			return err
		}
		result = st
		if !NeedsRequest(st) {
			return nil
		}

		now := time.Now().UTC()
		fp.PromptRequested = true
		fp.RequestedAt = &now
		fp.UpdatedAt = now
		return tx.Set(docRef, fp)
	})
	if err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:   "request",
			UserID:   userID,
			Resource: "notification_permission",
			Err:      err,
		})
		return StatusUnknown, err
	}

	applog.Audit(ctx, applog.AuditEvent{
		Action:   "request",
		UserID:   userID,
		Resource: "notification_permission",
		Details:  map[string]any{"status": string(result)},
	})
	return result, nil
}

// Report stores the device-observed status and clears any pending prompt.
func (s *FirestoreSource) Report(ctx context.Context, userID string, st Status) error {
	docRef := s.client.Collection(permissionsCollection).Doc(userID)
	_, err := docRef.Set(ctx, map[string]any{
		"status":           string(st),
		"prompt_requested": false,
		"updated_at":       time.Now().UTC(),
	}, firestore.MergeAll)
	if err != nil {
		applog.Audit(ctx, applog.AuditEvent{
			Action:   "report",
			UserID:   userID,
			Resource: "notification_permission",
			Err:      err,
		})
		return err
	}

	applog.Audit(ctx, applog.AuditEvent{
		Action:   "report",
		UserID:   userID,
		Resource: "notification_permission",
		Details:  map[string]any{"status": string(st)},
	})
	return nil
}

// Compile-time interface check
var _ Source = (*FirestoreSource)(nil)
