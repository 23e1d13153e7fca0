package domain

import (
	"fmt"
	"slices"
	"time"
)

// TimeOfDay is a wall-clock hour and minute without a date component.
type TimeOfDay struct {
	Hour   int `json:"hour"   firestore:"hour"`
	Minute int `json:"minute" firestore:"minute"`
}

// DefaultStoryTime is used when a profile has no explicit story time.
var DefaultStoryTime = TimeOfDay{Hour: 19, Minute: 30}

// NewTimeOfDay validates hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	t := TimeOfDay{Hour: hour, Minute: minute}
	if err := t.Validate(); err != nil {
		return TimeOfDay{}, err
	}
	return t, nil
}

// Validate checks that the hour and minute are in range.
func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: %02d:%02d", ErrInvalidTimeOfDay, t.Hour, t.Minute)
	}
	return nil
}

// On returns the instant at this time of day on the calendar day of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, t.Hour, t.Minute, 0, 0, d.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Profile is the child profile the lifecycle engine works on. Values are
// copied between steps; use Clone before mutating a shared instance.
type Profile struct {
	ID          string
	ChildName   string
	Stage       Stage
	DateOfBirth *time.Time
	DueDate     *time.Time
	Interests   []string
	StoryTime   TimeOfDay
	TimeZone    string
	LastUpdate  time.Time
	CreatedAt   time.Time
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	c := p
	c.Interests = slices.Clone(p.Interests)
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		c.DateOfBirth = &dob
	}
	if p.DueDate != nil {
		due := *p.DueDate
		c.DueDate = &due
	}
	return c
}

// IsPregnancy reports whether the profile tracks an expected child.
func (p Profile) IsPregnancy() bool {
	return p.Stage == StagePregnancy
}

// DueDay returns the due date's calendar day at midnight in loc. Due dates
// are stored at UTC midnight.
func (p Profile) DueDay(loc *time.Location) (time.Time, bool) {
	if p.DueDate == nil {
		return time.Time{}, false
	}
	due := p.DueDate.UTC()
	return time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, loc), true
}

// DueDatePassed reports whether the due date is a calendar day before today
// in the profile's time zone. The due day itself has not passed.
func (p Profile) DueDatePassed(now time.Time) bool {
	loc, err := p.Location()
	if err != nil {
		loc = time.UTC
	}
	day, ok := p.DueDay(loc)
	if !ok {
		return false
	}
	y, m, d := now.In(loc).Date()
	return day.Before(time.Date(y, m, d, 0, 0, 0, 0, loc))
}

// Location resolves the profile's time zone, defaulting to UTC.
func (p Profile) Location() (*time.Location, error) {
	return LoadLocation(p.TimeZone)
}

// DisplayName is the name used to personalize notifications.
func (p Profile) DisplayName() string {
	if p.ChildName != "" {
		return p.ChildName
	}
	if p.IsPregnancy() {
		return "your little one"
	}
	return "your child"
}

// LoadLocation resolves an IANA time zone name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, name)
	}
	return loc, nil
}
