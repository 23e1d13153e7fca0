package reminder

import (
	"time"

	"github.com/janisto/storytime-api/internal/domain"
)

// Defaults for the lead interval and the minimum future buffer.
const (
	DefaultLead   = 10 * time.Minute
	DefaultBuffer = 5 * time.Minute
)

// Decision is the outcome of planning a reminder.
type Decision struct {
	FireAt           time.Time
	RolledToTomorrow bool
}

// Plan computes when a reminder for target should fire, lead before the
// target time today. If that is not at least buffer after now, the reminder
// rolls to the same time tomorrow. Arithmetic happens in now's location.
func Plan(target domain.TimeOfDay, now time.Time, lead, buffer time.Duration) Decision {
	return PlanOn(now, target, now, lead, buffer)
}

// PlanOn is Plan anchored on the calendar day of day instead of today.
// A candidate that is too soon rolls to the day after now.
func PlanOn(day time.Time, target domain.TimeOfDay, now time.Time, lead, buffer time.Duration) Decision {
	day = day.In(now.Location())
	candidate := target.On(day).Add(-lead)
	minimumValid := now.Add(buffer)
	if !candidate.Before(minimumValid) {
		return Decision{FireAt: candidate}
	}
	tomorrow := now.AddDate(0, 0, 1)
	return Decision{
		FireAt:           target.On(tomorrow).Add(-lead),
		RolledToTomorrow: true,
	}
}

// NextOccurrence returns the first daily fire time of req after now. Each
// candidate is rebuilt from the target wall-clock time on a later calendar
// day in loc, so a time skipped by a DST change affects only that day.
func NextOccurrence(req Request, now time.Time, loc *time.Location) time.Time {
	target := domain.TimeOfDay{Hour: req.Hour, Minute: req.Minute}
	y, m, d := req.FireAt.Add(req.Lead).In(loc).Date()
	for i := 1; ; i++ {
		next := target.On(time.Date(y, m, d+i, 0, 0, 0, 0, loc)).Add(-req.Lead)
		if next.After(now) {
			return next
		}
	}
}
