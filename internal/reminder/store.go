package reminder

import (
	"context"
	"time"
)

// Store is the notification primitive holding registered requests.
//
// Add replaces any request with the same identifier. Cancel of a missing
// identifier is a no-op.
//
// Advance is a compare-and-set used by dispatchers: when the stored request
// under prev.Identifier is still the Same as prev it is replaced by next, or
// removed when next is nil, and Advance reports true. Otherwise nothing is
// written and it reports false. Only the dispatcher that wins Advance
// delivers the occurrence.
type Store interface {
	Add(ctx context.Context, userID string, req Request) error
	Cancel(ctx context.Context, userID, identifier string) error
	Pending(ctx context.Context, userID string) ([]string, error)
	Due(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	Advance(ctx context.Context, userID string, prev Request, next *Request) (bool, error)
}
