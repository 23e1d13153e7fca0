package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/janisto/storytime-api/internal/domain"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
)

// DefaultBatchSize bounds the requests handled per dispatch pass.
const DefaultBatchSize = 100

// Sender delivers a reminder to the user's devices.
type Sender interface {
	Send(ctx context.Context, userID string, req Request) error
}

// Dispatcher delivers due reminders. Repeating requests are re-armed for
// their next daily occurrence and one-shot requests are removed. Each
// occurrence is claimed in the store before it is sent, so a request changed
// or cancelled since Due read it is skipped, and concurrent dispatchers
// deliver it at most once. Failed sends are not retried.
type Dispatcher struct {
	store     Store
	sender    Sender
	clock     timeutil.Clock
	batchSize int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store Store, sender Sender, clock timeutil.Clock) *Dispatcher {
	return &Dispatcher{
		store:     store,
		sender:    sender,
		clock:     clock,
		batchSize: DefaultBatchSize,
	}
}

// RunOnce handles one batch of due reminders and returns how many were
// delivered.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := d.clock.Now()
	entries, err := d.store.Due(ctx, now, d.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, e := range entries {
		req := e.Request
		fields := []zap.Field{zap.String("userId", e.UserID), zap.String("identifier", req.Identifier)}

		won, err := d.store.Advance(ctx, e.UserID, req, following(req, now))
		if err != nil {
			applog.LogError(ctx, "reminder claim failed", err, fields...)
			continue
		}
		if !won {
			applog.LogDebug(ctx, "reminder changed before delivery", fields...)
			continue
		}

		if err := d.sender.Send(ctx, e.UserID, req); err != nil {
			applog.LogError(ctx, "reminder delivery failed", err, fields...)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// following returns the request that replaces req once it fires, or nil for
// one-shot requests.
func following(req Request, now time.Time) *Request {
	if !req.Repeats {
		return nil
	}
	loc, err := domain.LoadLocation(req.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	next := req
	next.FireAt = NextOccurrence(req, now, loc).UTC()
	return &next
}

// Run dispatches every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	applog.LogInfo(ctx, "reminder dispatcher started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			applog.LogInfo(ctx, "reminder dispatcher stopped")
			return
		case <-ticker.C:
			n, err := d.RunOnce(ctx)
			if err != nil {
				applog.LogError(ctx, "reminder dispatch failed", err)
				continue
			}
			if n > 0 {
				applog.LogInfo(ctx, "reminders delivered", zap.Int("count", n))
			}
		}
	}
}
