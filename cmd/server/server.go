package main

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/profile-search/internal/http/health"
	"github.com/janisto/profile-search/internal/http/v1/routes"
	"github.com/janisto/profile-search/internal/http/web"
	"github.com/janisto/profile-search/internal/platform/auth"
	"github.com/janisto/profile-search/internal/platform/config"
	applog "github.com/janisto/profile-search/internal/platform/logging"
	appmiddleware "github.com/janisto/profile-search/internal/platform/middleware"
	"github.com/janisto/profile-search/internal/platform/respond"
	"github.com/janisto/profile-search/internal/search"
	searchsvc "github.com/janisto/profile-search/internal/service/search"
)

const (
	apiPrefix = "/v1"
	docsPath  = "/api-docs"
	// multipartOverhead leaves room for boundaries and text fields on top of the image.
	multipartOverhead = 64 << 10
	// writeSlack is added to the search timeout so a timed-out search can still render.
	writeSlack = 10 * time.Second
)

// dependencies are the collaborators the router is built from.
type dependencies struct {
	cfg      config.Config
	version  string
	search   searchsvc.Service
	verifier auth.Verifier // nil disables API authentication
}

// newRouter builds the full handler: the search page at the root and the
// versioned API under apiPrefix.
func newRouter(deps dependencies) chi.Router {
	bodyLimit := deps.cfg.MaxUploadBytes + multipartOverhead

	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	router.Use(
		appmiddleware.Security(appmiddleware.SecurityOptions{
			SkipPaths: []string{apiPrefix + docsPath},
			PagePaths: []string{"/", "/image", "/search"},
		}),
		appmiddleware.Vary(),
		appmiddleware.CORS(deps.cfg.CORSOrigins...),
		appmiddleware.RequestID(),
		// RealIP trusts X-Real-IP / X-Forwarded-For. Only deploy behind a trusted proxy.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(bodyLimit),
		applog.RequestLogger(),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	health.Register(router)

	sessions := search.NewSessions(deps.search, deps.cfg.SessionTTL, search.WithMaxSessions(deps.cfg.MaxSessions))
	web.NewHandler(sessions,
		web.WithMaxUploadBytes(bodyLimit),
		web.WithSessionTTL(deps.cfg.SessionTTL),
	).Register(router)

	router.Route(apiPrefix, func(r chi.Router) {
		cfg := huma.DefaultConfig("Profile Search API", deps.version)
		cfg.DocsPath = docsPath
		cfg.Servers = []*huma.Server{{URL: apiPrefix}}
		api := humachi.New(r, cfg)
		api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation, addCBORContent)

		routes.Register(api, deps.verifier, deps.search, routes.Options{MaxUploadBytes: bodyLimit})
	})

	return router
}

// addCBORContent advertises application/cbor wherever an operation offers JSON.
func addCBORContent(_ *huma.OpenAPI, op *huma.Operation) {
	if op.RequestBody != nil && op.RequestBody.Content != nil {
		if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
			op.RequestBody.Content["application/cbor"] = jsonContent
		}
	}
	for _, resp := range op.Responses {
		if resp.Content == nil {
			continue
		}
		if jsonContent, ok := resp.Content["application/json"]; ok {
			resp.Content["application/cbor"] = jsonContent
		}
	}
}

// newHTTPServer applies the server timeouts. Without a search timeout a request may
// wait on the search service indefinitely, so WriteTimeout is disabled too.
func newHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	var writeTimeout time.Duration
	if cfg.SearchTimeout > 0 {
		writeTimeout = cfg.SearchTimeout + writeSlack
	}
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}
}
