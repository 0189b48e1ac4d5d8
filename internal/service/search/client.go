package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	applog "github.com/janisto/profile-search/internal/platform/logging"
	"github.com/janisto/profile-search/internal/platform/timeutil"
)

const (
	defaultBaseURL    = "http://localhost:10000"
	defaultUserAgent  = "profile-search"
	searchPath        = "/search"
	maxResponseBytes  = 32 << 20
	defaultImageType  = "application/octet-stream"
	defaultImageField = "image"
)

// Client implements Service using the remote search endpoint.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	userAgent      string
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	telemetry      *instruments
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the endpoint root; requests go to baseURL + "/search".
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMeterProvider records search metrics with mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		c.meterProvider = mp
	}
}

// WithTracerProvider records search spans with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// NewClient creates a new search client. A nil httpClient uses NewHTTPClient(0).
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	c := &Client{
		httpClient:     httpClient,
		baseURL:        defaultBaseURL,
		userAgent:      defaultUserAgent,
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.telemetry = newInstruments(c.meterProvider, c.tracerProvider)
	return c
}

// NewHTTPClient returns an HTTP client with a traced transport. A zero timeout waits
// for the search service indefinitely.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// Search response types (snake_case JSON tags matching the search service).

type searchProfile struct {
	Name            string          `json:"name"`
	Age             json.RawMessage `json:"age"`
	Location        string          `json:"location"`
	Bio             string          `json:"bio"`
	LastActive      json.RawMessage `json:"last_active"`
	ProfilePictures []string        `json:"profile_pictures"`
}

type searchStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) Search(ctx context.Context, criteria Criteria) ([]Profile, error) {
	ctx, done := c.telemetry.start(ctx, criteria)
	profiles, err := c.search(ctx, criteria)
	done(profiles, err)
	return profiles, err
}

func (c *Client) search(ctx context.Context, criteria Criteria) ([]Profile, error) {
	body, contentType, err := encodeCriteria(criteria)
	if err != nil {
		return nil, fmt.Errorf("encoding search criteria: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching search results: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	applog.LogInfo(ctx, "search service responded",
		zap.Int("status", resp.StatusCode),
		zap.Bool("image", criteria.Image != nil),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(ctx, resp.StatusCode, raw)
	}
	return decodeProfiles(resp.StatusCode, raw)
}

func encodeCriteria(criteria Criteria) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	age := ""
	if criteria.Age != 0 {
		age = strconv.Itoa(criteria.Age)
	}
	fields := [][2]string{
		{"name", criteria.Name},
		{"location", criteria.Location},
		{"age", age},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if img := criteria.Image; img != nil {
		contentType := img.ContentType
		if contentType == "" {
			contentType = defaultImageType
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", multipart.FileContentDisposition(defaultImageField, img.Filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func statusError(ctx context.Context, status int, raw []byte) *UpstreamError {
	message := fmt.Sprintf("HTTP error! status: %d", status)
	var body searchStatus
	if json.Unmarshal(raw, &body) == nil {
		if m := firstNonEmpty(body.Error, body.Message); m != "" {
			message = m
		}
	}
	applog.LogWarn(ctx, "search service returned error status",
		zap.Int("status", status),
		zap.String("upstreamMessage", message),
	)
	return &UpstreamError{
		Kind:    UpstreamErrorKindStatus,
		Status:  status,
		Message: message,
		cause:   ErrUpstreamStatus,
	}
}

func decodeProfiles(status int, raw []byte) ([]Profile, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, decodeError(status, errors.New("empty body"))
	}

	switch trimmed[0] {
	case '{':
		var body searchStatus
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return nil, decodeError(status, err)
		}
		message := firstNonEmpty(body.Message, body.Error)
		if message == "" {
			message = fmt.Sprintf("Search service returned %q instead of results.", body.Status)
		}
		return nil, &UpstreamError{
			Kind:    UpstreamErrorKindRejected,
			Status:  status,
			Message: message,
			cause:   ErrRejected,
		}
	case '[':
	default:
		return nil, decodeError(status, errors.New("expected a JSON array"))
	}

	var wire []searchProfile
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, decodeError(status, err)
	}

	profiles := make([]Profile, len(wire))
	for i, p := range wire {
		pictures := p.ProfilePictures
		if pictures == nil {
			pictures = []string{}
		}
		profiles[i] = Profile{
			Name:            p.Name,
			Age:             parseAge(p.Age),
			Location:        p.Location,
			Bio:             p.Bio,
			LastActive:      parseLastActive(p.LastActive),
			ProfilePictures: pictures,
		}
	}
	return profiles, nil
}

func decodeError(status int, err error) *UpstreamError {
	return &UpstreamError{
		Kind:    UpstreamErrorKindDecode,
		Status:  status,
		Message: "Search service returned an unreadable response.",
		cause:   fmt.Errorf("%w: %w", ErrDecode, err),
	}
}

// parseAge accepts a JSON number or a numeric string. Anything else, such as null,
// "" or a placeholder like "Unknown", is an unknown age (0).
func parseAge(raw json.RawMessage) int {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// parseLastActive returns the zero time for missing or unparseable values.
func parseLastActive(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	t, err := timeutil.Parse(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Compile-time interface check
var _ Service = (*Client)(nil)
