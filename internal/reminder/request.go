package reminder

import (
	"time"
)

// Identifiers, one per reminder kind.
const (
	StoryTimeIdentifier = "story_time_reminder"
	DueDateIdentifier   = "due_date_reminder"
)

// Request is a registered notification. There is at most one per user and
// identifier.
type Request struct {
	Identifier string
	FireAt     time.Time
	// Hour and Minute are the target wall-clock time; FireAt is Lead before it.
	Hour     int
	Minute   int
	Lead     time.Duration
	Repeats  bool
	TimeZone string
	Title    string
	Body     string
}

// Same reports whether r and o are the same registration. Stores use it to
// detect a request replaced or removed since it was read.
func (r Request) Same(o Request) bool {
	return r.Identifier == o.Identifier &&
		r.FireAt.Equal(o.FireAt) &&
		r.Hour == o.Hour &&
		r.Minute == o.Minute &&
		r.Lead == o.Lead &&
		r.Repeats == o.Repeats &&
		r.TimeZone == o.TimeZone &&
		r.Title == o.Title &&
		r.Body == o.Body
}

// Entry pairs a request with its owner, as returned by Store.Due.
type Entry struct {
	UserID  string
	Request Request
}
