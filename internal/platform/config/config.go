package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort           = "8080"
	defaultAPIURL         = "http://localhost:10000"
	defaultMaxUploadBytes = 10 << 20 // 10 MiB
	defaultSessionTTL     = time.Hour
	defaultMaxSessions    = 200
	defaultServiceName    = "profile-search"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port string
	// APIURL is the base URL of the remote search service; requests go to APIURL + "/search".
	APIURL string
	// SearchTimeout bounds one upstream call. Zero waits indefinitely.
	SearchTimeout  time.Duration
	MaxUploadBytes int64
	SessionTTL     time.Duration
	// MaxSessions caps the in-memory page sessions, each of which may hold an upload.
	MaxSessions int
	CORSOrigins []string
	Auth        AuthConfig
	Telemetry   TelemetryConfig
}

// AuthConfig controls optional Firebase bearer authentication of the JSON API.
type AuthConfig struct {
	Enabled         bool
	ProjectID       string
	CredentialsFile string
}

// TelemetryConfig controls OpenTelemetry trace and metric export. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and validates the configuration.
func Load() (Config, error) {
	apiURL := strings.TrimRight(getEnv("API_URL", defaultAPIURL), "/")
	if u, err := url.Parse(apiURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("invalid API_URL %q: must be an absolute URL", apiURL)
	}

	searchTimeout, err := getEnvDuration("SEARCH_TIMEOUT", 0)
	if err != nil {
		return Config{}, err
	}
	sessionTTL, err := getEnvDuration("SESSION_TTL", defaultSessionTTL)
	if err != nil {
		return Config{}, err
	}
	if sessionTTL <= 0 {
		return Config{}, errors.New("SESSION_TTL must be positive")
	}

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", strconv.Itoa(defaultMaxUploadBytes)), 10, 64)
	if err != nil || maxUpload <= 0 {
		return Config{}, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %q", os.Getenv("MAX_UPLOAD_BYTES"))
	}

	maxSessions, err := strconv.Atoi(getEnv("MAX_SESSIONS", strconv.Itoa(defaultMaxSessions)))
	if err != nil || maxSessions <= 0 {
		return Config{}, fmt.Errorf("invalid MAX_SESSIONS: %q", os.Getenv("MAX_SESSIONS"))
	}

	cfg := Config{
		Port:           getEnv("PORT", defaultPort),
		APIURL:         apiURL,
		SearchTimeout:  searchTimeout,
		MaxUploadBytes: maxUpload,
		SessionTTL:     sessionTTL,
		MaxSessions:    maxSessions,
		CORSOrigins:    parseCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Auth: AuthConfig{
			Enabled:         getEnvBool("AUTH_ENABLED", false),
			ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			OTLPProtocol:   getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf"),
			OTLPInsecure:   getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", defaultServiceName),
			ServiceVersion: os.Getenv("SERVICE_VERSION"),
		},
	}

	if cfg.Auth.Enabled && cfg.Auth.ProjectID == "" {
		return Config{}, errors.New("FIREBASE_PROJECT_ID must be set when AUTH_ENABLED is true")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func parseCSV(value string) []string {
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
