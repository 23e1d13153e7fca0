package timeutil

import (
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Wire formats. Timestamps are UTC with fixed millisecond precision, log
// timestamps with microseconds, calendar dates carry no time of day.
const (
	RFC3339Millis = "2006-01-02T15:04:05.000Z"
	RFC3339Micros = "2006-01-02T15:04:05.000000Z"
	DateOnly      = time.DateOnly
)

// Time is an instant that always encodes as "2024-01-15T10:30:00.000Z".
// JSON null leaves the existing value untouched, like time.Time.
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

func (t Time) MarshalJSON() ([]byte, error) {
	return quote(t.UTC().Format(RFC3339Millis)), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s, ok := unquote(data)
	if !ok {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("timeutil: invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Date is a calendar day such as a date of birth or a due date. It is held
// as midnight UTC and encodes as "2024-01-15". Decoding also accepts a full
// RFC 3339 timestamp and truncates it to its UTC day.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	u := t.UTC()
	return Date{Time: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	if d, err := time.Parse(DateOnly, s); err == nil {
		return Date{Time: d}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("timeutil: invalid date %q", s)
	}
	return NewDate(ts), nil
}

func (d Date) String() string {
	return d.UTC().Format(DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return quote(d.String()), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s, ok := unquote(data)
	if !ok {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Schema describes Date as a plain string in the OpenAPI document so request
// validation sees the wire form rather than the wrapped struct.
func (Date) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:        huma.TypeString,
		Description: "Calendar date (YYYY-MM-DD)",
		Examples:    []any{"2024-01-15"},
	}
}

func quote(s string) []byte {
	return []byte(`"` + s + `"`)
}

// unquote strips JSON string quotes. It reports false for null.
func unquote(data []byte) (string, bool) {
	s := string(data)
	if s == "null" {
		return "", false
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s, true
}
