package permission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

// ErrInvalidStatus is returned for unknown status values.
var ErrInvalidStatus = errors.New("invalid permission status")

// Status is the notification authorization state reported by the device.
type Status string

// Authorization states.
const (
	StatusUnknown       Status = "unknown"
	StatusNotDetermined Status = "not_determined"
	StatusDenied        Status = "denied"
	StatusAuthorized    Status = "authorized"
	StatusProvisional   Status = "provisional"
)

// ParseStatus converts a stored or reported value to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusUnknown, StatusNotDetermined, StatusDenied, StatusAuthorized, StatusProvisional:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Context describes why permission is wanted and how to treat a prior denial.
type Context struct {
	Reason        string
	ShowForDenied bool
}

// CanSend reports whether notifications may be delivered.
func CanSend(s Status) bool {
	return s == StatusAuthorized || s == StatusProvisional
}

// NeedsRequest reports whether the user has never been asked.
func NeedsRequest(s Status) bool {
	return s == StatusNotDetermined
}

// ShouldExplain reports whether the app should show an explanation screen.
// An unknown status errs toward explaining, never toward requesting.
func ShouldExplain(s Status, c Context) bool {
	switch s {
	case StatusNotDetermined:
		return true
	case StatusDenied:
		return c.ShowForDenied
	case StatusAuthorized, StatusProvisional:
		return false
	default:
		return true
	}
}

// Source reads and requests authorization from the platform.
type Source interface {
	CurrentStatus(ctx context.Context, userID string) (Status, error)
	Request(ctx context.Context, userID string) (Status, error)
	Report(ctx context.Context, userID string, status Status) error
}

// Gate wraps a Source with the authorization decision rules.
type Gate struct {
	source Source
}

// NewGate creates a Gate backed by source.
func NewGate(source Source) *Gate {
	return &Gate{source: source}
}

// Refresh queries the live status. Failures degrade to StatusUnknown.
func (g *Gate) Refresh(ctx context.Context, userID string) Status {
	st, err := g.source.CurrentStatus(ctx, userID)
	if err != nil {
		applog.LogWarn(ctx, "permission status unavailable",
			zap.String("userId", userID), zap.Error(err))
		return StatusUnknown
	}
	return st
}

// CanSend refreshes the status and reports whether notifications may be sent.
func (g *Gate) CanSend(ctx context.Context, userID string) bool {
	return CanSend(g.Refresh(ctx, userID))
}

// Request asks the platform for authorization if the user was never asked.
// Any other status is returned as is; a denial is never re-requested.
func (g *Gate) Request(ctx context.Context, userID string) (Status, error) {
	st, err := g.source.CurrentStatus(ctx, userID)
	if err != nil {
		return StatusUnknown, err
	}
	if !NeedsRequest(st) {
		return st, nil
	}
	return g.source.Request(ctx, userID)
}

// Report records the status a device observed after prompting the user.
func (g *Gate) Report(ctx context.Context, userID string, st Status) error {
	if _, err := ParseStatus(string(st)); err != nil {
		return err
	}
	return g.source.Report(ctx, userID, st)
}
