package logging

import (
	"context"

	"go.uber.org/zap"
)

type (
	ctxLoggerKey        struct{}
	ctxCorrelationIDKey struct{}
)

// LoggerFromContext returns the request-scoped logger, or the global one
// outside a request.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return Logger()
	}
	if l, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return Logger()
}

// WithFields returns a context whose logger carries fields on every entry.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return contextWithLogger(ctx, LoggerFromContext(ctx).With(fields...))
}

// CorrelationID is the trace ID of the request, or its request ID when no
// trace header arrived. Empty outside RequestLogger.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxCorrelationIDKey{}).(string)
	return id
}

func LogDebug(ctx context.Context, msg string, fields ...zap.Field) {
	LoggerFromContext(ctx).Debug(msg, fields...)
}

func LogInfo(ctx context.Context, msg string, fields ...zap.Field) {
	LoggerFromContext(ctx).Info(msg, fields...)
}

func LogWarn(ctx context.Context, msg string, fields ...zap.Field) {
	LoggerFromContext(ctx).Warn(msg, fields...)
}

// LogError appends err as the error field when it is non-nil.
func LogError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	LoggerFromContext(ctx).Error(msg, fields...)
}

func contextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

func contextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxCorrelationIDKey{}, id)
}
