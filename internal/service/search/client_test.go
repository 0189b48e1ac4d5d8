package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func newTestClient(serverURL string) *Client {
	return NewClient(http.DefaultClient, WithBaseURL(serverURL))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchSendsMultipartFields(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "profile-search-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("name"); got != "Alex" {
			t.Errorf("expected name Alex, got %q", got)
		}
		if got := r.FormValue("location"); got != "Helsinki" {
			t.Errorf("expected location Helsinki, got %q", got)
		}
		if got := r.FormValue("age"); got != "29" {
			t.Errorf("expected age 29, got %q", got)
		}
		if _, ok := r.MultipartForm.File["image"]; ok {
			t.Error("expected no image part")
		}
		writeJSON(w, http.StatusOK, []any{})
	})
	defer srv.Close()

	client := NewClient(http.DefaultClient, WithBaseURL(srv.URL+"/"), WithUserAgent("profile-search-test"))
	profiles, err := client.Search(context.Background(), Criteria{Name: "Alex", Location: "Helsinki", Age: 29})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 0 {
		t.Fatalf("expected no profiles, got %d", len(profiles))
	}
}

func TestSearchSendsEmptyFieldsAndImage(t *testing.T) {
	imageData := []byte("\x89PNG\r\n\x1a\nfake")
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		for _, field := range []string{"name", "location", "age"} {
			values, ok := r.MultipartForm.Value[field]
			if !ok || len(values) != 1 || values[0] != "" {
				t.Errorf("expected empty %s field, got %v", field, values)
			}
		}
		files := r.MultipartForm.File["image"]
		if len(files) != 1 {
			t.Errorf("expected one image part, got %d", len(files))
			return
		}
		if files[0].Filename != "me.png" {
			t.Errorf("expected filename me.png, got %s", files[0].Filename)
		}
		if ct := files[0].Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("expected content type image/png, got %s", ct)
		}
		f, err := files[0].Open()
		if err != nil {
			t.Errorf("open part: %v", err)
			return
		}
		defer func() { _ = f.Close() }()
		got, _ := io.ReadAll(f)
		if string(got) != string(imageData) {
			t.Errorf("image bytes mismatch")
		}
		writeJSON(w, http.StatusOK, []any{})
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Search(context.Background(), Criteria{
		Image: &File{Filename: "me.png", ContentType: "image/png", Data: imageData},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchDecodesProfilesInOrder(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{
				"name":             "Alex",
				"age":              29,
				"location":         "Helsinki",
				"bio":              "Coffee.",
				"last_active":      "2024-06-01T12:30:00.123456",
				"profile_pictures": []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"},
			},
			{
				"name":             "Sam",
				"age":              "31",
				"location":         "Espoo",
				"bio":              nil,
				"last_active":      nil,
				"profile_pictures": nil,
			},
			{
				"name":        "Kim",
				"age":         "",
				"location":    "",
				"last_active": "not a date",
			},
		})
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	profiles, err := client.Search(context.Background(), Criteria{Name: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(profiles))
	}
	names := []string{profiles[0].Name, profiles[1].Name, profiles[2].Name}
	if strings.Join(names, ",") != "Alex,Sam,Kim" {
		t.Errorf("unexpected order %v", names)
	}
	if profiles[0].Age != 29 || profiles[1].Age != 31 || profiles[2].Age != 0 {
		t.Errorf("unexpected ages %d %d %d", profiles[0].Age, profiles[1].Age, profiles[2].Age)
	}
	want := time.Date(2024, 6, 1, 12, 30, 0, 123456000, time.UTC)
	if !profiles[0].LastActive.Equal(want) {
		t.Errorf("expected last active %s, got %s", want, profiles[0].LastActive)
	}
	if !profiles[1].LastActive.IsZero() || !profiles[2].LastActive.IsZero() {
		t.Error("expected zero last active for missing and invalid values")
	}
	if len(profiles[0].ProfilePictures) != 2 || profiles[0].ProfilePictures[1] != "https://img.example.com/2.jpg" {
		t.Errorf("unexpected pictures %v", profiles[0].ProfilePictures)
	}
	if profiles[1].ProfilePictures == nil {
		t.Error("expected non-nil pictures slice")
	}
	if profiles[1].Bio != "" {
		t.Errorf("expected empty bio, got %q", profiles[1].Bio)
	}
}

func TestSearchKeepsProfilesWithUnreadableAge(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"name":"Alex","age":29,"location":"Helsinki"},
			{"name":"Sam","age":"Unknown","location":"Espoo"},
			{"name":"Kim","age":{"years":30}},
			{"name":"Robin","age":null}
		]`)
	})
	defer srv.Close()

	profiles, err := newTestClient(srv.URL).Search(context.Background(), Criteria{Name: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 4 {
		t.Fatalf("expected 4 profiles, got %d", len(profiles))
	}
	if profiles[0].Age != 29 {
		t.Errorf("expected age 29, got %d", profiles[0].Age)
	}
	for _, p := range profiles[1:] {
		if p.Age != 0 {
			t.Errorf("%s: expected unknown age, got %d", p.Name, p.Age)
		}
	}
	if profiles[1].Location != "Espoo" {
		t.Errorf("expected other fields kept, got %+v", profiles[1])
	}
}

func TestParseAge(t *testing.T) {
	tests := map[string]int{
		`29`:        29,
		`"31"`:      31,
		`" 42 "`:    42,
		`30.9`:      30,
		`""`:        0,
		`null`:      0,
		``:          0,
		`"Unknown"`: 0,
		`-3`:        0,
		`true`:      0,
		`"NaN"`:     0,
	}
	for raw, want := range tests {
		if got := parseAge(json.RawMessage(raw)); got != want {
			t.Errorf("parseAge(%s) = %d, want %d", raw, got, want)
		}
	}
}

func TestSearchStatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", http.StatusInternalServerError, `{"error":"Search failed"}`, "Search failed"},
		{"message field", http.StatusBadRequest, `{"message":"Name required"}`, "Name required"},
		{"plain text", http.StatusBadGateway, `upstream down`, "HTTP error! status: 502"},
		{"empty body", http.StatusServiceUnavailable, ``, "HTTP error! status: 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			defer srv.Close()

			_, err := newTestClient(srv.URL).Search(context.Background(), Criteria{})
			if !errors.Is(err, ErrUpstreamStatus) {
				t.Fatalf("expected ErrUpstreamStatus, got %v", err)
			}
			var upstreamErr *UpstreamError
			if !errors.As(err, &upstreamErr) {
				t.Fatalf("expected UpstreamError, got %T", err)
			}
			if upstreamErr.Kind != UpstreamErrorKindStatus {
				t.Errorf("expected kind %q, got %q", UpstreamErrorKindStatus, upstreamErr.Kind)
			}
			if upstreamErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, upstreamErr.Status)
			}
			if UserMessage(err) != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, UserMessage(err))
			}
		})
	}
}

func TestSearchRejectedObject(t *testing.T) {
	srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "searching", "message": "Search in progress"})
	})
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), Criteria{})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if UserMessage(err) != "Search in progress" {
		t.Errorf("unexpected message %q", UserMessage(err))
	}
}

func TestSearchDecodeErrors(t *testing.T) {
	bodies := map[string]string{
		"invalid json": `[{"name":`,
		"scalar":       `"hello"`,
		"empty":        ``,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			defer srv.Close()

			_, err := newTestClient(srv.URL).Search(context.Background(), Criteria{})
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
			var upstreamErr *UpstreamError
			if !errors.As(err, &upstreamErr) || upstreamErr.Kind != UpstreamErrorKindDecode {
				t.Fatalf("expected decode UpstreamError, got %v", err)
			}
		})
	}
}

func TestSearchTransportError(t *testing.T) {
	srv := newTestServer(func(http.ResponseWriter, *http.Request) {})
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Search(context.Background(), Criteria{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "fetching search results:") {
		t.Errorf("unexpected error %v", err)
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		t.Error("transport failures should not be UpstreamError")
	}
	if UserMessage(err) != GenericFailureMessage {
		t.Errorf("expected generic message, got %q", UserMessage(err))
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil)
	if c.baseURL != defaultBaseURL {
		t.Errorf("expected base URL %s, got %s", defaultBaseURL, c.baseURL)
	}
	if c.httpClient == nil || c.httpClient.Timeout != 0 {
		t.Error("expected default HTTP client without timeout")
	}
	if c.userAgent != defaultUserAgent {
		t.Errorf("expected user agent %s, got %s", defaultUserAgent, c.userAgent)
	}
}

func TestUpstreamErrorString(t *testing.T) {
	var nilErr *UpstreamError
	if nilErr.Error() != "search upstream error" {
		t.Errorf("unexpected nil error string %q", nilErr.Error())
	}
	if nilErr.Unwrap() != nil {
		t.Error("expected nil unwrap")
	}
	err := &UpstreamError{Kind: UpstreamErrorKindStatus, Status: 500}
	if err.Error() != "search upstream error (kind=status status=500)" {
		t.Errorf("unexpected error string %q", err.Error())
	}
	if UserMessage(nil) != "" {
		t.Error("expected empty message for nil error")
	}
}
