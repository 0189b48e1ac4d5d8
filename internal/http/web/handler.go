// Package web serves the server-rendered search page.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	applog "github.com/janisto/profile-search/internal/platform/logging"
	"github.com/janisto/profile-search/internal/platform/respond"
	"github.com/janisto/profile-search/internal/platform/timeutil"
	"github.com/janisto/profile-search/internal/search"
)

const (
	defaultMaxUploadBytes = 10 << 20
	sessionRetryAfter     = "30"
)

// Page notices for requests the form itself cannot represent.
const (
	noticeNoImage     = "Choose an image file first."
	noticeBadUpload   = "The upload could not be read."
	noticeTooLarge    = "The image is too large."
	noticeInvalidAge  = "Age must be a whole number."
	noticeStillActive = "A search is already in progress."
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("index.html").Funcs(template.FuncMap{
		"inc":         func(i int) int { return i + 1 },
		"displayTime": func(t time.Time) string { return timeutil.Display(t, time.Local) },
	}).ParseFS(templateFS, "templates/index.html"),
)

// Handler serves the search page for one session store.
type Handler struct {
	sessions       *search.Sessions
	maxUploadBytes int64
	sessionTTL     time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxUploadBytes bounds multipart request bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithSessionTTL sets the session cookie lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		h.sessionTTL = ttl
	}
}

// NewHandler creates a page handler backed by sessions.
func NewHandler(sessions *search.Sessions, opts ...Option) *Handler {
	h := &Handler{
		sessions:       sessions,
		maxUploadBytes: defaultMaxUploadBytes,
		sessionTTL:     search.DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the page routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.index)
	r.Post("/image", h.selectImage)
	r.Post("/search", h.submit)
}

type pageData struct {
	Form        search.View
	Notice      string
	Preview     template.URL
	ThumbWidth  int
	ThumbHeight int
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	form, r, ok := h.formFor(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, form, "")
}

func (h *Handler) selectImage(w http.ResponseWriter, r *http.Request) {
	form, r, ok := h.formFor(w, r)
	if !ok {
		return
	}
	if status, notice := h.parseUpload(w, r); status != 0 {
		h.render(w, r, status, form, notice)
		return
	}

	img, status, notice := readImage(r)
	if img == nil {
		if status == 0 {
			status, notice = http.StatusBadRequest, noticeNoImage
		}
		h.render(w, r, status, form, notice)
		return
	}
	form.SelectImage(img)
	applog.LogAuditEvent(r.Context(), applog.AuditEvent{
		Action:   "select_image",
		Actor:    form.ID(),
		Resource: "image",
		Result:   applog.AuditSuccess,
		Details:  map[string]any{"contentType": img.ContentType, "bytes": len(img.Data)},
	})
	respond.WriteRedirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	form, r, ok := h.formFor(w, r)
	if !ok {
		return
	}
	if status, notice := h.parseUpload(w, r); status != 0 {
		h.render(w, r, status, form, notice)
		return
	}

	age, err := search.ParseAge(r.FormValue("age"))
	if err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, form, noticeInvalidAge)
		return
	}
	if err := form.SetFields(r.FormValue("name"), r.FormValue("location"), age); err != nil {
		h.render(w, r, http.StatusConflict, form, noticeStillActive)
		return
	}

	img, status, notice := readImage(r)
	if status != 0 {
		h.render(w, r, status, form, notice)
		return
	}
	if img != nil {
		form.SelectImage(img)
	}

	// The search outlives the request; a closed tab does not cancel it.
	if err := form.Submit(context.WithoutCancel(r.Context())); errors.Is(err, search.ErrInFlight) {
		h.render(w, r, http.StatusConflict, form, noticeStillActive)
		return
	}
	h.render(w, r, http.StatusOK, form, "")
}

// parseUpload reads a multipart or urlencoded body within the upload limit. A zero
// status means success.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) (int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	err := r.ParseMultipartForm(h.maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err == nil {
		return 0, ""
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, noticeTooLarge
	}
	applog.LogWarn(r.Context(), "failed to parse form", zap.Error(err))
	return http.StatusBadRequest, noticeBadUpload
}

// readImage returns the uploaded "image" part, or nil when none was sent. Empty parts
// count as no image.
func readImage(r *http.Request) (*search.Image, int, string) {
	if r.MultipartForm == nil {
		return nil, 0, ""
	}
	headers := r.MultipartForm.File["image"]
	if len(headers) == 0 {
		return nil, 0, ""
	}
	data, err := readPart(headers[0])
	if err != nil {
		applog.LogWarn(r.Context(), "failed to read image upload", zap.Error(err))
		return nil, http.StatusBadRequest, noticeBadUpload
	}
	img, err := search.NewImage(headers[0].Filename, headers[0].Header.Get("Content-Type"), data)
	if errors.Is(err, search.ErrEmptyImage) {
		return nil, 0, ""
	}
	if err != nil {
		return nil, http.StatusBadRequest, noticeBadUpload
	}
	return img, 0, ""
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// formFor returns the caller's form, starting a session when the cookie is missing
// or stale. The returned request logs with the session ID. When no session can be
// started it writes a 503 and reports false.
func (h *Handler) formFor(w http.ResponseWriter, r *http.Request) (*search.Form, *http.Request, bool) {
	withSession := func(form *search.Form) (*search.Form, *http.Request, bool) {
		return form, r.WithContext(applog.WithFields(r.Context(), zap.String("session", form.ID()))), true
	}
	if c, err := r.Cookie(search.SessionCookie); err == nil {
		if form, ok := h.sessions.Get(c.Value); ok {
			return withSession(form)
		}
	}
	form, err := h.sessions.New()
	if err != nil {
		applog.LogWarn(r.Context(), "session store full", zap.Error(err))
		w.Header().Set("Retry-After", sessionRetryAfter)
		respond.WriteProblem(w, r, http.StatusServiceUnavailable, "too many active searches, try again shortly")
		return nil, r, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     search.SessionCookie,
		Value:    form.ID(),
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return withSession(form)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, form *search.Form, notice string) {
	view := form.Snapshot()
	data := pageData{Form: view, Notice: notice}
	if view.Image != nil && strings.HasPrefix(view.Image.ContentType, "image/") {
		data.Preview = template.URL(view.Image.PreviewURL()) //nolint:gosec // data URL of the user's own upload
		if view.Image.Width > 0 {
			data.ThumbWidth, data.ThumbHeight = view.Image.ThumbnailSize(search.PreviewMaxSize)
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		applog.LogError(r.Context(), "failed to render page", err)
		respond.WriteProblem(w, r, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
