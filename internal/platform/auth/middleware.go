package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	applog "github.com/janisto/profile-search/internal/platform/logging"
)

// SecurityScheme is the OpenAPI security scheme name for Firebase ID tokens.
const SecurityScheme = "bearerAuth"

type userContextKey struct{}

// Requirement returns the operation security requirement for SecurityScheme.
func Requirement() []map[string][]string {
	return []map[string][]string{{SecurityScheme: {}}}
}

// RegisterSecurityScheme documents SecurityScheme in the API's OpenAPI components.
func RegisterSecurityScheme(api huma.API) {
	components := api.OpenAPI().Components
	if components.SecuritySchemes == nil {
		components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	components.SecuritySchemes[SecurityScheme] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
		Description:  "Firebase ID token",
	}
}

// NewAuthMiddleware enforces bearer authentication on operations that declare a
// security requirement. Operations without one pass through untouched.
func NewAuthMiddleware(api huma.API, verifier Verifier) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if len(ctx.Operation().Security) == 0 {
			next(ctx)
			return
		}

		token, err := ExtractBearerToken(ctx.Header("Authorization"))
		if err == nil {
			var user *User
			if user, err = verifier.Verify(ctx.Context(), token); err == nil {
				next(huma.WithValue(ctx, userContextKey{}, user))
				return
			}
		}

		applog.LogWarn(ctx.Context(), "authentication failed", zap.String("reason", reason(err)))
		if errors.Is(err, ErrCertificateFetch) {
			ctx.SetHeader("Retry-After", "30")
			_ = huma.WriteErr(api, ctx, http.StatusServiceUnavailable, "authentication service temporarily unavailable")
			return
		}
		ctx.SetHeader("WWW-Authenticate", `Bearer realm="profile-search"`)
		message := "invalid or expired token"
		if token == "" {
			message = "missing or invalid authorization header"
		}
		_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, message)
	}
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}
