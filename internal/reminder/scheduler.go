package reminder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/janisto/storytime-api/internal/domain"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
)

// ErrUnscheduled reports that the previous request was cancelled but its
// replacement could not be registered, leaving no reminder in place.
var ErrUnscheduled = errors.New("reminder unscheduled")

// Reminder describes a reminder to schedule.
type Reminder struct {
	Identifier string
	Target     domain.TimeOfDay
	// Day anchors the reminder on a calendar day; nil means today.
	Day      *time.Time
	Location *time.Location
	Repeats  bool
	Title    string
	Body     string
}

// Scheduler plans reminders and registers them with a Store.
type Scheduler struct {
	store  Store
	clock  timeutil.Clock
	lead   time.Duration
	buffer time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLead sets the interval before the target time the reminder fires.
func WithLead(d time.Duration) Option {
	return func(s *Scheduler) { s.lead = d }
}

// WithBuffer sets the minimum distance from now for a same-day reminder.
func WithBuffer(d time.Duration) Option {
	return func(s *Scheduler) { s.buffer = d }
}

// NewScheduler creates a scheduler with the default lead and buffer.
func NewScheduler(store Store, clock timeutil.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  store,
		clock:  clock,
		lead:   DefaultLead,
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule plans r and registers it, superseding any request under the same
// identifier. If registration fails after the old request was cancelled the
// returned error wraps ErrUnscheduled.
func (s *Scheduler) Schedule(ctx context.Context, userID string, r Reminder) (Decision, error) {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	now := s.clock.Now().In(loc)

	var d Decision
	if r.Day != nil {
		d = PlanOn(*r.Day, r.Target, now, s.lead, s.buffer)
	} else {
		d = Plan(r.Target, now, s.lead, s.buffer)
	}

	req := Request{
		Identifier: r.Identifier,
		FireAt:     d.FireAt,
		Hour:       r.Target.Hour,
		Minute:     r.Target.Minute,
		Lead:       s.lead,
		Repeats:    r.Repeats,
		TimeZone:   loc.String(),
		Title:      r.Title,
		Body:       r.Body,
	}

	if err := s.store.Cancel(ctx, userID, r.Identifier); err != nil {
		return Decision{}, fmt.Errorf("cancel %s: %w", r.Identifier, err)
	}
	if err := s.store.Add(ctx, userID, req); err != nil {
		applog.LogError(ctx, "reminder left unscheduled", err,
			zap.String("userId", userID), zap.String("identifier", r.Identifier))
		return Decision{}, fmt.Errorf("%w: add %s: %w", ErrUnscheduled, r.Identifier, err)
	}

	applog.LogInfo(ctx, "reminder scheduled",
		zap.String("userId", userID),
		zap.String("identifier", r.Identifier),
		zap.Time("fireAt", d.FireAt),
		zap.Bool("rolledToTomorrow", d.RolledToTomorrow),
		zap.Bool("repeats", r.Repeats),
	)
	return d, nil
}

// Cancel removes the request under identifier. Missing requests are ignored.
func (s *Scheduler) Cancel(ctx context.Context, userID, identifier string) error {
	if err := s.store.Cancel(ctx, userID, identifier); err != nil {
		return fmt.Errorf("cancel %s: %w", identifier, err)
	}
	return nil
}

// HasPending reports whether a request is registered under identifier.
func (s *Scheduler) HasPending(ctx context.Context, userID, identifier string) (bool, error) {
	ids, err := s.store.Pending(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, identifier), nil
}
