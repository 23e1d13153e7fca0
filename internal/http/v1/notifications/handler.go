package notifications

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/janisto/storytime-api/internal/permission"
	"github.com/janisto/storytime-api/internal/platform/auth"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

// Register registers notification permission endpoints.
func Register(api huma.API, gate *permission.Gate) {
	huma.Register(api, huma.Operation{
		OperationID: "get-notification-permission",
		Method:      http.MethodGet,
		Path:        "/notifications/permission",
		Summary:     "Get notification permission",
		Description: "Returns the live notification authorization status. An unavailable status is reported as unknown.",
		Tags:        []string{"Notifications"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *PermissionGetInput) (*PermissionOutput, error) {
		user := auth.UserFromContext(ctx)

		st := gate.Refresh(ctx, user.UID)
		return &PermissionOutput{
			Body: toState(st, permission.Context{ShowForDenied: input.ShowForDenied}),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-notification-permission",
		Method:      http.MethodPut,
		Path:        "/notifications/permission",
		Summary:     "Report notification permission",
		Description: "Records the authorization status a device observed.",
		Tags:        []string{"Notifications"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *PermissionReportInput) (*PermissionOutput, error) {
		user := auth.UserFromContext(ctx)

		st := permission.Status(input.Body.Status)
		if err := gate.Report(ctx, user.UID, st); err != nil {
			if errors.Is(err, permission.ErrInvalidStatus) {
				return nil, huma.Error422UnprocessableEntity("invalid permission status")
			}
			applog.LogError(ctx, "failed to record permission status", err, zap.String("userId", user.UID))
			return nil, huma.Error500InternalServerError("internal error")
		}
		return &PermissionOutput{Body: toState(st, permission.Context{})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-notification-permission",
		Method:      http.MethodPost,
		Path:        "/notifications/permission/request",
		Summary:     "Request notification permission",
		Description: "Asks for authorization when the user was never asked. A prior decision is returned unchanged.",
		Tags:        []string{"Notifications"},
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, _ *PermissionRequestInput) (*PermissionOutput, error) {
		user := auth.UserFromContext(ctx)

		st, err := gate.Request(ctx, user.UID)
		if err != nil {
			applog.LogError(ctx, "failed to request permission", err, zap.String("userId", user.UID))
			return nil, huma.Error503ServiceUnavailable("permission request unavailable")
		}
		return &PermissionOutput{Body: toState(st, permission.Context{})}, nil
	})
}

func toState(st permission.Status, c permission.Context) PermissionState {
	return PermissionState{
		Status:        string(st),
		CanSend:       permission.CanSend(st),
		NeedsRequest:  permission.NeedsRequest(st),
		ShouldExplain: permission.ShouldExplain(st, c),
	}
}
