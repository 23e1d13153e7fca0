package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEvent records a change to user data. ResourceID defaults to UserID
// for per-user singletons such as the profile.
type AuditEvent struct {
	Action     string
	UserID     string
	Resource   string
	ResourceID string
	// Err marks the event as a failure. Only Reason is logged for it, so
	// Reason must be a safe category rather than raw error text.
	Err     error
	Reason  string
	Details map[string]any
}

// Result is "success" or "failure".
func (e AuditEvent) Result() string {
	if e.Err != nil {
		return "failure"
	}
	return "success"
}

// Audit logs e with the request-scoped logger. Failures log at warn level.
func Audit(ctx context.Context, e AuditEvent) {
	resourceID := e.ResourceID
	if resourceID == "" {
		resourceID = e.UserID
	}
	fields := []zap.Field{
		zap.String("audit.action", e.Action),
		zap.String("audit.user_id", e.UserID),
		zap.String("audit.resource_type", e.Resource),
		zap.String("audit.resource_id", resourceID),
		zap.String("audit.result", e.Result()),
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("audit.reason", e.Reason))
	}
	if len(e.Details) > 0 {
		fields = append(fields, zap.Any("audit.details", e.Details))
	}

	level := zapcore.InfoLevel
	if e.Err != nil {
		level = zapcore.WarnLevel
	}
	LoggerFromContext(ctx).Log(level, "audit event", fields...)
}
