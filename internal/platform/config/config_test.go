package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "API_URL", "SEARCH_TIMEOUT", "MAX_UPLOAD_BYTES", "SESSION_TTL", "AUTH_ENABLED", "CORS_ALLOWED_ORIGINS", "MAX_SESSIONS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("expected port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Errorf("expected API URL %s, got %s", defaultAPIURL, cfg.APIURL)
	}
	if cfg.SearchTimeout != 0 {
		t.Errorf("expected no search timeout, got %s", cfg.SearchTimeout)
	}
	if cfg.MaxUploadBytes != defaultMaxUploadBytes {
		t.Errorf("expected %d upload bytes, got %d", defaultMaxUploadBytes, cfg.MaxUploadBytes)
	}
	if cfg.SessionTTL != defaultSessionTTL {
		t.Errorf("expected session TTL %s, got %s", defaultSessionTTL, cfg.SessionTTL)
	}
	if cfg.MaxSessions != defaultMaxSessions {
		t.Errorf("expected %d max sessions, got %d", defaultMaxSessions, cfg.MaxSessions)
	}
	if cfg.Auth.Enabled {
		t.Error("expected auth disabled by default")
	}
	if cfg.CORSOrigins != nil {
		t.Errorf("expected no CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("API_URL", "https://search.example.com/")
	t.Setenv("SEARCH_TIMEOUT", "45s")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("MAX_SESSIONS", "50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://search.example.com" {
		t.Errorf("expected trailing slash to be trimmed, got %s", cfg.APIURL)
	}
	if cfg.SearchTimeout != 45*time.Second || cfg.SessionTTL != 10*time.Minute {
		t.Errorf("unexpected durations: %s %s", cfg.SearchTimeout, cfg.SessionTTL)
	}
	if cfg.MaxUploadBytes != 2048 {
		t.Errorf("expected 2048, got %d", cfg.MaxUploadBytes)
	}
	if cfg.MaxSessions != 50 {
		t.Errorf("expected 50 max sessions, got %d", cfg.MaxSessions)
	}
	if !slices.Equal(cfg.CORSOrigins, []string{"https://a.example.com", "https://b.example.com"}) {
		t.Errorf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
	if !cfg.Auth.Enabled || cfg.Auth.ProjectID != "demo-project" {
		t.Errorf("unexpected auth config %+v", cfg.Auth)
	}
}

func TestLoadTelemetry(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("SERVICE_VERSION", "1.2.3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := TelemetryConfig{
		OTLPEndpoint:   "collector:4317",
		OTLPProtocol:   "http/protobuf",
		OTLPInsecure:   true,
		ServiceName:    defaultServiceName,
		ServiceVersion: "1.2.3",
	}
	if cfg.Telemetry != want {
		t.Errorf("unexpected telemetry config %+v", cfg.Telemetry)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry.OTLPProtocol != "grpc" {
		t.Errorf("expected grpc protocol, got %s", cfg.Telemetry.OTLPProtocol)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"relative api url":      {"API_URL": "search.local"},
		"bad timeout":           {"SEARCH_TIMEOUT": "soon"},
		"negative timeout":      {"SEARCH_TIMEOUT": "-1s"},
		"zero session ttl":      {"SESSION_TTL": "0s"},
		"bad upload limit":      {"MAX_UPLOAD_BYTES": "lots"},
		"auth without project":  {"AUTH_ENABLED": "true", "FIREBASE_PROJECT_ID": ""},
		"negative upload limit": {"MAX_UPLOAD_BYTES": "-5"},
		"zero session limit":    {"MAX_SESSIONS": "0"},
		"bad session limit":     {"MAX_SESSIONS": "many"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("API_URL=https://dotenv.example.com\nPORT=7000\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("PORT", "7777")
	t.Setenv("API_URL", "")
	// t.Setenv registers cleanup; unset so godotenv may fill it in.
	if err := os.Unsetenv("API_URL"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("API_URL"); got != "https://dotenv.example.com" {
		t.Errorf("expected API_URL from .env, got %q", got)
	}
	if got := os.Getenv("PORT"); got != "7777" {
		t.Errorf("expected existing PORT to win, got %q", got)
	}
}

func TestLoadDotEnvMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("NOT A VALID LINE\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	err := LoadDotEnv(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}
