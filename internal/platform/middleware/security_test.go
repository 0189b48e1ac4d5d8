package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveSecurity(opts SecurityOptions, path string) http.Header {
	h := Security(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp.Header()
}

func TestSecurityHeadersOnAPI(t *testing.T) {
	h := serveSecurity(SecurityOptions{PagePaths: []string{"/"}}, "/v1/search")

	want := map[string]string{
		"Cache-Control":                "no-store",
		"Content-Security-Policy":      apiCSP,
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Cross-Origin-Resource-Policy": "same-origin",
		"Referrer-Policy":              "strict-origin-when-cross-origin",
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
	}
	for name, value := range want {
		if got := h.Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
	if h.Get("Permissions-Policy") == "" {
		t.Error("expected Permissions-Policy header")
	}
}

func TestSecurityPageCSP(t *testing.T) {
	opts := SecurityOptions{PagePaths: []string{"/", "/search", "/image"}}
	for _, path := range []string{"/", "/search", "/image"} {
		if got := serveSecurity(opts, path).Get("Content-Security-Policy"); got != pageCSP {
			t.Errorf("%s: expected page CSP, got %q", path, got)
		}
	}
	page := serveSecurity(opts, "/")
	if cc := page.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected pages to be no-store, got %q", cc)
	}
	if csp := page.Get("Content-Security-Policy"); !strings.Contains(csp, "img-src 'self' data: http: https:") {
		t.Errorf("expected page CSP to allow data, http and https images, got %q", csp)
	}
	if got := serveSecurity(opts, "/health").Get("Content-Security-Policy"); got != apiCSP {
		t.Errorf("root page must not match every path, got %q", got)
	}
}

func TestSecuritySkipPaths(t *testing.T) {
	h := serveSecurity(SecurityOptions{SkipPaths: []string{"/api-docs"}}, "/api-docs/index.html")
	if got := h.Get("X-Frame-Options"); got != "" {
		t.Fatalf("expected no security headers on skipped path, got X-Frame-Options=%q", got)
	}
}
