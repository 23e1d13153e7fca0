package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

type userContextKey struct{}

// authReasons names each verification failure for logs. Raw SDK errors can
// echo token fragments and are never logged.
var authReasons = []struct {
	err    error
	reason string
}{
	{ErrNoToken, "no_token"},
	{ErrTokenExpired, "token_expired"},
	{ErrTokenRevoked, "token_revoked"},
	{ErrUserDisabled, "user_disabled"},
	{ErrCertificateFetch, "certificate_fetch_failed"},
	{ErrInvalidToken, "invalid_token"},
}

func categorizeAuthError(err error) string {
	for _, r := range authReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "unknown"
}

// NewAuthMiddleware checks Firebase ID tokens on operations that declare a
// security requirement and stores the caller in the request context. Key
// fetch outages answer 503 with Retry-After so clients do not sign out.
func NewAuthMiddleware(api huma.API, verifier Verifier) func(huma.Context, func(huma.Context)) {
	reject := func(ctx huma.Context, err error, stage string) {
		applog.LogWarn(ctx.Context(), "auth failed", zap.String("stage", stage),
			zap.String("reason", categorizeAuthError(err)))
		if errors.Is(err, ErrCertificateFetch) {
			ctx.SetHeader("Retry-After", "30")
			_ = huma.WriteErr(api, ctx, http.StatusServiceUnavailable, "authentication service temporarily unavailable")
			return
		}
		ctx.SetHeader("WWW-Authenticate", "Bearer")
		msg := "invalid or expired token"
		if stage == "header" {
			msg = "missing or invalid authorization header"
		}
		_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, msg)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		if len(ctx.Operation().Security) == 0 {
			next(ctx)
			return
		}

		token, err := BearerToken(ctx.Header("Authorization"))
		if err != nil {
			reject(ctx, err, "header")
			return
		}
		user, err := verifier.Verify(ctx.Context(), token)
		if err != nil {
			reject(ctx, err, "verify")
			return
		}

		reqCtx := applog.WithFields(ctx.Context(),
			zap.String("userId", user.UID), zap.Bool("anonymous", user.Anonymous()))
		next(huma.WithContext(ctx, context.WithValue(reqCtx, userContextKey{}, user)))
	}
}

// UserFromContext retrieves the authenticated user from context.
// Returns nil if no user is authenticated.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}
