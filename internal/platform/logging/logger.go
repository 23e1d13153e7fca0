// Package logging provides the process logger in Cloud Logging's JSON shape
// plus request-scoped helpers.
package logging

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/janisto/storytime-api/internal/platform/timeutil"
)

var (
	loggerOnce sync.Once
	baseLogger *zap.Logger
	loggerErr  error
)

var severities = map[zapcore.Level]string{
	zapcore.DebugLevel:  "DEBUG",
	zapcore.InfoLevel:   "INFO",
	zapcore.WarnLevel:   "WARNING",
	zapcore.ErrorLevel:  "ERROR",
	zapcore.DPanicLevel: "CRITICAL",
	zapcore.PanicLevel:  "ALERT",
	zapcore.FatalLevel:  "EMERGENCY",
}

func encodeSeverity(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	s, ok := severities[level]
	if !ok {
		s = "DEFAULT"
	}
	enc.AppendString(s)
}

func encodeTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(timeutil.RFC3339Micros))
}

// build writes JSON to stdout at LOG_LEVEL (default info). On Cloud Run the
// service and revision are attached as serviceContext so Error Reporting
// groups entries.
func build() {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stdout"}
	enc := &cfg.EncoderConfig
	enc.TimeKey, enc.EncodeTime = "timestamp", encodeTime
	enc.LevelKey, enc.EncodeLevel = "severity", encodeSeverity
	enc.MessageKey = "message"
	enc.CallerKey = "caller"
	if lvl, err := zap.ParseAtomicLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		cfg.Level = lvl
	}

	opts := []zap.Option{zap.AddCaller()}
	if svc := os.Getenv("K_SERVICE"); svc != "" {
		opts = append(opts, zap.Fields(zap.Any("serviceContext", map[string]string{
			"service": svc,
			"version": os.Getenv("K_REVISION"),
		})))
	}

	baseLogger, loggerErr = cfg.Build(opts...)
	if loggerErr != nil {
		baseLogger = zap.NewNop()
	}
}

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	loggerOnce.Do(build)
	return baseLogger
}

// Sync flushes buffered entries. Call on shutdown.
func Sync() error {
	return Logger().Sync()
}

// Err reports whether building the logger failed. A failed build falls back
// to a no-op logger.
func Err() error {
	loggerOnce.Do(build)
	return loggerErr
}
