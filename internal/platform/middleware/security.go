package middleware

import (
	"net/http"
	"strings"
)

const (
	apiCSP = "frame-ancestors 'none'"
	// pageCSP lets the search page show data: previews and remote profile pictures
	// from any http or https host while forms may only post back to this origin.
	pageCSP = "default-src 'self'; img-src 'self' data: http: https:; style-src 'self' 'unsafe-inline'; " +
		"form-action 'self'; frame-ancestors 'none'"
)

// SecurityOptions selects which paths get which header set.
type SecurityOptions struct {
	// SkipPaths get no security headers at all (e.g. "/api-docs").
	SkipPaths []string
	// PagePaths are HTML pages; they get pageCSP instead of apiCSP. Like every other
	// response they are sent with Cache-Control: no-store, as they carry session state.
	PagePaths []string
}

// Security sets OWASP recommended headers on all responses.
//
// Headers set:
//   - Cache-Control: no-store
//   - Content-Security-Policy: apiCSP, or pageCSP for PagePaths
//   - Cross-Origin-Opener-Policy / Cross-Origin-Resource-Policy: same-origin
//   - Permissions-Policy: browser features disabled
//   - Referrer-Policy: strict-origin-when-cross-origin
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
func Security(opts SecurityOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matchesAny(r.URL.Path, opts.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}
			csp := apiCSP
			if matchesPage(r.URL.Path, opts.PagePaths) {
				csp = pageCSP
			}
			h := w.Header()
			h.Set("Cache-Control", "no-store")
			h.Set("Content-Security-Policy", csp)
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			h.Set(
				"Permissions-Policy",
				"accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()",
			)
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// matchesPage treats "/" as an exact match so it does not swallow every path.
func matchesPage(path string, pages []string) bool {
	for _, p := range pages {
		if p == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
