// Package lifecycle keeps child profiles in step with the child's age and
// schedules the reminders that go with them.
//
// A Service holds no per-user state. Callers must not run two operations
// for the same user concurrently.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/janisto/storytime-api/internal/domain"
	"github.com/janisto/storytime-api/internal/permission"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
	"github.com/janisto/storytime-api/internal/reminder"
	"github.com/janisto/storytime-api/internal/service/profile"
)

// ErrDueDatePassed reports a due date on a calendar day before today in the
// profile's time zone.
var ErrDueDatePassed = errors.New("due date has passed")

// AutoUpdateResult is the outcome of one PerformAutoUpdate call.
type AutoUpdateResult struct {
	IsSuccess   bool
	HasUpdates  bool
	UpdateCount int
	// NewStage is set when the stage changed.
	NewStage *domain.Stage
	// Profile is the stored profile after the run, nil when nothing was loaded.
	Profile *domain.Profile
}

// Service orchestrates reconciliation, persistence and reminder scheduling.
type Service struct {
	profiles  profile.Store
	gate      *permission.Gate
	scheduler *reminder.Scheduler
	clock     timeutil.Clock
}

// NewService creates a lifecycle service.
func NewService(profiles profile.Store, gate *permission.Gate, scheduler *reminder.Scheduler, clock timeutil.Clock) *Service {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Service{
		profiles:  profiles,
		gate:      gate,
		scheduler: scheduler,
		clock:     clock,
	}
}

type run struct {
	ctx    context.Context
	userID string
	phase  Phase
}

func (r *run) to(p Phase) {
	if !CanTransition(r.phase, p) {
		applog.LogWarn(r.ctx, "unexpected auto-update transition",
			zap.String("userId", r.userID),
			zap.Stringer("from", r.phase),
			zap.Stringer("to", p),
		)
	}
	applog.LogDebug(r.ctx, "auto-update phase",
		zap.String("userId", r.userID),
		zap.Stringer("from", r.phase),
		zap.Stringer("to", p),
	)
	r.phase = p
}

// load returns p when supplied, otherwise the stored profile.
func (s *Service) load(ctx context.Context, userID string, p *domain.Profile) (*domain.Profile, error) {
	if p != nil {
		return p, nil
	}
	return s.profiles.Get(ctx, userID)
}

// NeedsAutoUpdate reports whether the profile's stage is out of date or its
// last reconciliation is stale. A missing profile needs nothing.
func (s *Service) NeedsAutoUpdate(ctx context.Context, userID string, p *domain.Profile) bool {
	p, err := s.load(ctx, userID, p)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			applog.LogError(ctx, "failed to load profile", err, zap.String("userId", userID))
		}
		return false
	}
	return domain.NeedsReconcile(*p, s.clock.Now())
}

// PerformAutoUpdate reconciles and persists the profile when it needs it,
// then brings the due-date reminder in line with the new state. When p is
// nil the stored profile is used. The supplied profile is never modified.
//
// IsSuccess reflects loading and persistence only. Reminder failures are
// logged and do not fail the result.
func (s *Service) PerformAutoUpdate(ctx context.Context, userID string, p *domain.Profile) AutoUpdateResult {
	r := &run{ctx: ctx, userID: userID, phase: PhaseIdle}
	r.to(PhaseChecking)

	current, err := s.load(ctx, userID, p)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			applog.LogError(ctx, "failed to load profile", err, zap.String("userId", userID))
		}
		r.to(PhaseIdle)
		return AutoUpdateResult{}
	}

	now := s.clock.Now()
	if !domain.NeedsReconcile(*current, now) {
		r.to(PhaseNoOp)
		r.to(PhaseIdle)
		out := current.Clone()
		return AutoUpdateResult{IsSuccess: true, Profile: &out}
	}

	r.to(PhaseReconciling)
	updated, _ := domain.Reconcile(*current, now)
	changed := domain.ChangedFields(*current, updated)

	r.to(PhasePersisting)
	if err := s.profiles.Save(ctx, userID, updated); err != nil {
		applog.LogError(ctx, "failed to persist reconciled profile", err, zap.String("userId", userID))
		r.to(PhaseIdle)
		return AutoUpdateResult{}
	}

	r.to(PhaseSchedulingReminders)
	s.syncDueDateReminder(ctx, userID, *current, updated)
	r.to(PhaseIdle)

	result := AutoUpdateResult{
		IsSuccess:   true,
		HasUpdates:  true,
		UpdateCount: len(changed),
		Profile:     &updated,
	}
	if updated.Stage != current.Stage {
		st := updated.Stage
		result.NewStage = &st
	}

	applog.LogInfo(ctx, "profile auto-updated",
		zap.String("userId", userID),
		zap.Stringer("previousStage", current.Stage),
		zap.Stringer("stage", updated.Stage),
		zap.Strings("changed", changed),
	)
	return result
}

func (s *Service) syncDueDateReminder(ctx context.Context, userID string, before, after domain.Profile) {
	if before.IsPregnancy() && !after.IsPregnancy() {
		if err := s.scheduler.Cancel(ctx, userID, reminder.DueDateIdentifier); err != nil {
			applog.LogError(ctx, "failed to cancel due-date reminder", err, zap.String("userId", userID))
		}
		return
	}
	if !after.IsPregnancy() || after.DueDate == nil {
		return
	}
	if !s.gate.CanSend(ctx, userID) {
		return
	}
	if err := s.scheduleDueDate(ctx, userID, after); err != nil && !errors.Is(err, ErrDueDatePassed) {
		applog.LogError(ctx, "failed to schedule due-date reminder", err, zap.String("userId", userID))
	}
}

// scheduleDueDate registers the one-shot reminder on the due day. A due date
// already behind us cancels any earlier reminder and returns
// ErrDueDatePassed.
func (s *Service) scheduleDueDate(ctx context.Context, userID string, p domain.Profile) error {
	loc, err := p.Location()
	if err != nil {
		return err
	}
	if p.DueDatePassed(s.clock.Now()) {
		if err := s.scheduler.Cancel(ctx, userID, reminder.DueDateIdentifier); err != nil {
			return err
		}
		applog.LogInfo(ctx, "due-date reminder skipped for past due date", zap.String("userId", userID))
		return ErrDueDatePassed
	}
	day, _ := p.DueDay(loc)
	_, err = s.scheduler.Schedule(ctx, userID, reminder.Reminder{
		Identifier: reminder.DueDateIdentifier,
		Target:     p.StoryTime,
		Day:        &day,
		Location:   loc,
		Title:      "Due date is here",
		Body:       fmt.Sprintf("Today is the day! Welcome %s with a gentle story.", p.DisplayName()),
	})
	return err
}

// SetupDueDateNotifications schedules the due-date reminder for a pregnancy
// profile. It only checks permission and never prompts for it.
func (s *Service) SetupDueDateNotifications(ctx context.Context, userID string) bool {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			applog.LogError(ctx, "failed to load profile", err, zap.String("userId", userID))
		}
		return false
	}
	if !p.IsPregnancy() || p.DueDate == nil {
		return false
	}
	if !s.gate.CanSend(ctx, userID) {
		applog.LogInfo(ctx, "due-date reminder skipped without permission", zap.String("userId", userID))
		return false
	}
	if err := s.scheduleDueDate(ctx, userID, *p); err != nil {
		if !errors.Is(err, ErrDueDatePassed) {
			applog.LogError(ctx, "failed to schedule due-date reminder", err, zap.String("userId", userID))
		}
		return false
	}
	return true
}

// DueDatePassed reports whether p's due date is before today in its time
// zone.
func (s *Service) DueDatePassed(p domain.Profile) bool {
	return p.DueDatePassed(s.clock.Now())
}

// ScheduleStoryTimeReminder registers the daily story-time reminder, lead
// before at in the profile's time zone, replacing any earlier one. An
// existing profile gets at as its story time, so later time zone changes
// reschedule at the same time. It returns false when permission is missing
// or persisting or scheduling fails.
func (s *Service) ScheduleStoryTimeReminder(ctx context.Context, userID string, at domain.TimeOfDay, displayName string) bool {
	if err := at.Validate(); err != nil {
		applog.LogWarn(ctx, "invalid story time", zap.String("userId", userID), zap.Error(err))
		return false
	}
	if !s.gate.CanSend(ctx, userID) {
		applog.LogInfo(ctx, "story-time reminder skipped without permission", zap.String("userId", userID))
		return false
	}

	loc := time.UTC
	p, err := s.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		if p.StoryTime != at {
			if p, err = s.profiles.Update(ctx, userID, profile.UpdateParams{StoryTime: &at}); err != nil {
				applog.LogError(ctx, "failed to persist story time", err, zap.String("userId", userID))
				return false
			}
		}
		if l, err := p.Location(); err == nil {
			loc = l
		}
		if displayName == "" {
			displayName = p.DisplayName()
		}
	case !errors.Is(err, profile.ErrNotFound):
		applog.LogError(ctx, "failed to load profile", err, zap.String("userId", userID))
		return false
	}
	if displayName == "" {
		displayName = "your child"
	}

	_, err = s.scheduler.Schedule(ctx, userID, reminder.Reminder{
		Identifier: reminder.StoryTimeIdentifier,
		Target:     at,
		Location:   loc,
		Repeats:    true,
		Title:      "Story time soon",
		Body:       fmt.Sprintf("It's almost story time with %s.", displayName),
	})
	if err != nil {
		applog.LogError(ctx, "failed to schedule story-time reminder", err, zap.String("userId", userID))
		return false
	}
	return true
}

// CancelStoryTimeReminders removes the story-time reminder, if any.
func (s *Service) CancelStoryTimeReminders(ctx context.Context, userID string) error {
	return s.scheduler.Cancel(ctx, userID, reminder.StoryTimeIdentifier)
}

// HasScheduledStoryTimeReminders reports whether a story-time reminder is pending.
func (s *Service) HasScheduledStoryTimeReminders(ctx context.Context, userID string) (bool, error) {
	return s.scheduler.HasPending(ctx, userID, reminder.StoryTimeIdentifier)
}

// CancelDueDateReminder removes the due-date reminder, if any.
func (s *Service) CancelDueDateReminder(ctx context.Context, userID string) error {
	return s.scheduler.Cancel(ctx, userID, reminder.DueDateIdentifier)
}
