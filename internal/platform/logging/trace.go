package logging

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const traceparentHeader = "traceparent"

var (
	projectIDOnce   sync.Once
	cachedProjectID string
)

// traceContext is a parsed W3C traceparent header:
// {version}-{trace-id}-{parent-id}-{trace-flags}.
type traceContext struct {
	traceID string
	spanID  string
	sampled bool
}

func parseTraceparent(header string) (traceContext, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 {
		return traceContext{}, false
	}
	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]
	if !isHex(version, 2) || version == "ff" || !isHex(flags, 2) {
		return traceContext{}, false
	}
	if !isHex(traceID, 32) || allZero(traceID) || !isHex(spanID, 16) || allZero(spanID) {
		return traceContext{}, false
	}
	bits, _ := strconv.ParseUint(flags, 16, 8)
	return traceContext{
		traceID: strings.ToLower(traceID),
		spanID:  strings.ToLower(spanID),
		sampled: bits&0x01 == 1,
	}, true
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func allZero(s string) bool {
	return strings.Trim(s, "0") == ""
}

func (tc traceContext) resource(projectID string) string {
	return fmt.Sprintf("projects/%s/traces/%s", projectID, tc.traceID)
}

// traceFields returns the Cloud Logging trace correlation fields, or nil
// when the header is invalid or the project is unknown.
func traceFields(header, projectID string) []zap.Field {
	tc, ok := parseTraceparent(header)
	if !ok || projectID == "" {
		return nil
	}
	return []zap.Field{
		zap.String("logging.googleapis.com/trace", tc.resource(projectID)),
		zap.String("logging.googleapis.com/spanId", tc.spanID),
		zap.Bool("logging.googleapis.com/trace_sampled", tc.sampled),
	}
}

func resolveProjectID() string {
	projectIDOnce.Do(func() {
		for _, key := range []string{"FIREBASE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"} {
			if v := os.Getenv(key); v != "" {
				cachedProjectID = v
				return
			}
		}
	})
	return cachedProjectID
}
