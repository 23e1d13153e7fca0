package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/storytime-api/internal/http/health"
	"github.com/janisto/storytime-api/internal/http/v1/notifications"
	"github.com/janisto/storytime-api/internal/http/v1/profile"
	"github.com/janisto/storytime-api/internal/http/v1/reminders"
	"github.com/janisto/storytime-api/internal/permission"
	"github.com/janisto/storytime-api/internal/platform/auth"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
	"github.com/janisto/storytime-api/internal/service/lifecycle"
	profilesvc "github.com/janisto/storytime-api/internal/service/profile"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Verifier  auth.Verifier
	Profiles  profilesvc.Store
	Lifecycle *lifecycle.Service
	Gate      *permission.Gate
	Clock     timeutil.Clock
	Checks    []health.Check
}

// Register wires all HTTP routes into the provided API router.
func Register(api huma.API, deps Dependencies) {
	// Apply auth middleware for protected endpoints
	api.UseMiddleware(auth.NewAuthMiddleware(api, deps.Verifier))

	health.Register(api, deps.Checks...)
	profile.Register(api, deps.Profiles, deps.Lifecycle, deps.Clock)
	reminders.Register(api, deps.Lifecycle, deps.Gate, deps.Profiles)
	notifications.Register(api, deps.Gate)
}
