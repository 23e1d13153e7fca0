package domain

import (
	"fmt"
	"time"
)

// Stage is the developmental phase of the child.
type Stage string

// Stages in developmental order.
const (
	StagePregnancy   Stage = "pregnancy"
	StageNewborn     Stage = "newborn"
	StageInfant      Stage = "infant"
	StageToddler     Stage = "toddler"
	StagePreschooler Stage = "preschooler"
)

// Stages lists every stage in developmental order.
var Stages = []Stage{StagePregnancy, StageNewborn, StageInfant, StageToddler, StagePreschooler}

// Upper bounds (inclusive) of the age bands, in months.
const (
	newbornMaxMonths = 3
	infantMaxMonths  = 12
	toddlerMaxMonths = 36
)

// ParseStage converts a stored or user supplied value to a Stage.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
	}
	return st, nil
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	return s.Ordinal() >= 0
}

// Ordinal returns the position of s in developmental order, or -1 if unknown.
func (s Stage) Ordinal() int {
	switch s {
	case StagePregnancy:
		return 0
	case StageNewborn:
		return 1
	case StageInfant:
		return 2
	case StageToddler:
		return 3
	case StagePreschooler:
		return 4
	default:
		return -1
	}
}

func (s Stage) String() string {
	return string(s)
}

// StageForMonths maps an age in whole months to a stage. Negative ages are
// clamped to zero. Preschooler is the terminal band.
func StageForMonths(months int) Stage {
	if months < 0 {
		months = 0
	}
	switch {
	case months <= newbornMaxMonths:
		return StageNewborn
	case months <= infantMaxMonths:
		return StageInfant
	case months <= toddlerMaxMonths:
		return StageToddler
	default:
		return StagePreschooler
	}
}

// Classify determines the stage for the given dates at instant now.
//
// A pregnancy whose due date has passed becomes Newborn. Without a date of
// birth there is nothing to classify on and the current stage is returned
// unchanged.
func Classify(now time.Time, dateOfBirth, dueDate *time.Time, current Stage) Stage {
	if current == StagePregnancy && dueDate != nil && !now.Before(*dueDate) {
		return StageNewborn
	}
	if dateOfBirth == nil {
		return current
	}
	return StageForMonths(MonthsBetween(*dateOfBirth, now))
}

// HasTransitioned reports whether the profile's stored stage is out of date.
func HasTransitioned(p Profile, now time.Time) bool {
	if p.Stage == StagePregnancy && p.DueDate != nil && !now.Before(*p.DueDate) {
		return true
	}
	return Classify(now, p.DateOfBirth, p.DueDate, p.Stage) != p.Stage
}

// MonthsBetween returns the number of whole calendar months elapsed from
// start to end, evaluated in start's location. It is zero when end is not
// after start.
func MonthsBetween(start, end time.Time) int {
	end = end.In(start.Location())
	if !end.After(start) {
		return 0
	}
	years := end.Year() - start.Year()
	months := years*12 + int(end.Month()) - int(start.Month())
	// The last month only counts once its day and clock time are reached.
	if dayClock(end) < dayClock(start) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func dayClock(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(t.Day())*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}
