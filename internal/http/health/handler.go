package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

const checkTimeout = 2 * time.Second

// Check probes one backing dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Response is the payload for the health endpoints.
type Response struct {
	Status string            `json:"status"           doc:"Overall status"           example:"healthy"`
	Checks map[string]string `json:"checks,omitempty" doc:"Per dependency status"`
}

// Output wraps a health Response.
type Output struct {
	Body Response
}

// Register registers the liveness and readiness endpoints. Both are public.
func Register(api huma.API, checks ...Check) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe",
		Tags:        []string{"Health"},
	}, func(_ context.Context, _ *struct{}) (*Output, error) {
		return &Output{Body: Response{Status: "healthy"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-readiness",
		Method:      http.MethodGet,
		Path:        "/health/ready",
		Summary:     "Readiness probe",
		Description: "Pings every backing store. Returns 503 when any is unreachable.",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, _ *struct{}) (*Output, error) {
		resp := Response{Status: "healthy", Checks: make(map[string]string, len(checks))}
		for _, c := range checks {
			pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				applog.LogWarn(ctx, "readiness check failed", zap.String("check", c.Name), zap.Error(err))
				resp.Checks[c.Name] = "unavailable"
				resp.Status = "unavailable"
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		if resp.Status != "healthy" {
			return nil, huma.Error503ServiceUnavailable("dependency unavailable")
		}
		return &Output{Body: resp}, nil
	})
}
