package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/profile-search/internal/http/v1/search"
	"github.com/janisto/profile-search/internal/platform/auth"
	searchsvc "github.com/janisto/profile-search/internal/service/search"
)

// Options configure the versioned API.
type Options struct {
	// MaxUploadBytes bounds multipart request bodies.
	MaxUploadBytes int64
}

// Register wires all versioned API operations into api. A nil verifier leaves
// every operation public.
func Register(api huma.API, verifier auth.Verifier, searchService searchsvc.Service, opts Options) {
	requireAuth := verifier != nil
	if requireAuth {
		auth.RegisterSecurityScheme(api)
		api.UseMiddleware(auth.NewAuthMiddleware(api, verifier))
	}

	search.Register(api, searchService, search.Options{
		RequireAuth:  requireAuth,
		MaxBodyBytes: opts.MaxUploadBytes,
	})
}
