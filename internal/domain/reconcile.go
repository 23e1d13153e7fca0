package domain

import (
	"slices"
	"time"
)

const (
	// StaleAfterDays is the age of the last reconciliation that forces a new one.
	StaleAfterDays = 30

	// MinInterests is the number of interests reconciliation tops a profile up to.
	MinInterests = 3
)

// DaysBetween returns the number of whole 24 hour periods from start to end.
// It is negative when end precedes start.
func DaysBetween(start, end time.Time) int {
	return int(end.Sub(start) / (24 * time.Hour))
}

// IsStale reports whether the profile has not been reconciled for StaleAfterDays.
func IsStale(p Profile, now time.Time) bool {
	return DaysBetween(p.LastUpdate, now) >= StaleAfterDays
}

// NeedsReconcile reports whether Reconcile would change the profile.
func NeedsReconcile(p Profile, now time.Time) bool {
	return HasTransitioned(p, now) || IsStale(p, now)
}

// Reconcile aligns the profile with the stage computed at now using the
// built-in vocabulary. See Vocabulary.Reconcile.
func Reconcile(p Profile, now time.Time) (Profile, bool) {
	return defaultVocabulary.Reconcile(p, now)
}

// Reconcile recomputes the stage and, when it changed or the profile is
// stale, filters the interests against the stage's allowed list and tops
// them up from the vocabulary until MinInterests are present. Kept interests
// retain their relative order. The input profile is never modified.
func (v Vocabulary) Reconcile(p Profile, now time.Time) (Profile, bool) {
	newStage := Classify(now, p.DateOfBirth, p.DueDate, p.Stage)
	stageChanged := newStage != p.Stage
	if !stageChanged && !IsStale(p, now) {
		return p, false
	}

	out := p.Clone()
	if stageChanged {
		if out.Stage == StagePregnancy && out.DueDate != nil && out.DateOfBirth == nil {
			// The due date becomes the birth date once the child has arrived.
			out.DateOfBirth = out.DueDate
			out.DueDate = nil
		}
		out.Stage = newStage
	}

	allowed := v.Allowed(out.Stage)
	filtered := make([]string, 0, max(len(out.Interests), MinInterests))
	for _, in := range out.Interests {
		if slices.Contains(allowed, in) && !slices.Contains(filtered, in) {
			filtered = append(filtered, in)
		}
	}
	for _, suggestion := range allowed {
		if len(filtered) >= MinInterests {
			break
		}
		if !slices.Contains(filtered, suggestion) {
			filtered = append(filtered, suggestion)
		}
	}

	out.Interests = filtered
	out.LastUpdate = now
	return out, true
}

// ChangedFields lists the profile fields that differ between before and after.
func ChangedFields(before, after Profile) []string {
	var fields []string
	if before.Stage != after.Stage {
		fields = append(fields, "stage")
	}
	if !equalTimePtr(before.DateOfBirth, after.DateOfBirth) {
		fields = append(fields, "dateOfBirth")
	}
	if !equalTimePtr(before.DueDate, after.DueDate) {
		fields = append(fields, "dueDate")
	}
	if !slices.Equal(before.Interests, after.Interests) {
		fields = append(fields, "interests")
	}
	if !before.LastUpdate.Equal(after.LastUpdate) {
		fields = append(fields, "lastUpdate")
	}
	return fields
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
