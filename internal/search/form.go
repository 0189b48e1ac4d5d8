package search

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	applog "github.com/janisto/profile-search/internal/platform/logging"
	searchsvc "github.com/janisto/profile-search/internal/service/search"
)

// NoMatchesMessage is shown when a search succeeds with an empty result list.
const NoMatchesMessage = "No matches found. Try different search criteria."

var (
	// ErrInFlight is returned while a submission of the same form is still running.
	ErrInFlight = errors.New("a search is already in progress")
	// ErrInvalidAge is returned by ParseAge for values that are not a non-negative integer.
	ErrInvalidAge = errors.New("age must be a whole number")
)

// ParseAge parses the age form field. An empty value means not given.
func ParseAge(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	age, err := strconv.Atoi(value)
	if err != nil || age < 0 {
		return 0, ErrInvalidAge
	}
	return age, nil
}

// Outcome maps a search result to what the form shows: the profiles to list and the
// message to display. Failures and empty results both show no profiles.
func Outcome(profiles []searchsvc.Profile, err error) ([]searchsvc.Profile, string) {
	if err != nil {
		return []searchsvc.Profile{}, searchsvc.UserMessage(err)
	}
	if len(profiles) == 0 {
		return []searchsvc.Profile{}, NoMatchesMessage
	}
	return profiles, ""
}

// View is a read-only copy of form state for rendering.
type View struct {
	Name     string
	Location string
	Age      int
	Image    *Image
	Results  []searchsvc.Profile
	Error    string
	Loading  bool
}

// HasImage reports whether an image is selected.
func (v View) HasImage() bool { return v.Image != nil }

// AgeValue renders the age field, empty when not given.
func (v View) AgeValue() string {
	if v.Age == 0 {
		return ""
	}
	return strconv.Itoa(v.Age)
}

// Form holds the state of one search form. It is safe for concurrent use.
type Form struct {
	id  string
	svc searchsvc.Service

	mu       sync.Mutex
	name     string
	location string
	age      int
	image    *Image
	results  []searchsvc.Profile
	errMsg   string
	loading  bool
}

// NewForm creates an empty form backed by svc.
func NewForm(id string, svc searchsvc.Service) *Form {
	return &Form{
		id:      id,
		svc:     svc,
		results: []searchsvc.Profile{},
	}
}

// ID returns the identifier of the session owning the form.
func (f *Form) ID() string { return f.id }

// SetFields updates the text inputs. Inputs are locked while a search runs.
func (f *Form) SetFields(name, location string, age int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loading {
		return ErrInFlight
	}
	f.name = name
	f.location = location
	f.age = age
	return nil
}

// SelectImage replaces the selected image. The next submission includes it.
func (f *Form) SelectImage(img *Image) {
	f.mu.Lock()
	f.image = img
	f.mu.Unlock()
}

// Submit runs one search with the current inputs and records the outcome. Only one
// submission may run at a time; a concurrent call returns ErrInFlight and leaves the
// state untouched.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return ErrInFlight
	}
	f.errMsg = ""
	f.loading = true
	criteria := searchsvc.Criteria{
		Name:     f.name,
		Location: f.location,
		Age:      f.age,
		Image:    f.image.file(),
	}
	f.mu.Unlock()

	var (
		profiles  []searchsvc.Profile
		err       error
		completed bool
	)
	defer func() {
		// A panicking service still ends the submission with a failure message.
		if !completed {
			profiles, err = nil, errSearchPanicked
		}
		results, message := Outcome(profiles, err)
		f.mu.Lock()
		f.results = results
		f.errMsg = message
		f.loading = false
		f.mu.Unlock()
	}()

	profiles, err = f.svc.Search(ctx, criteria)
	completed = true

	result := applog.AuditSuccess
	if err != nil {
		result = applog.AuditFailure
		applog.LogWarn(ctx, "search failed", zap.Error(err))
	}
	applog.LogAuditEvent(ctx, applog.AuditEvent{
		Action:   "search",
		Actor:    f.id,
		Resource: "profiles",
		Result:   result,
		Details: map[string]any{
			"profiles": len(profiles),
			"image":    criteria.Image != nil,
		},
	})
	return nil
}

var errSearchPanicked = errors.New("search panicked")

// Snapshot returns a copy of the current state.
func (f *Form) Snapshot() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return View{
		Name:     f.name,
		Location: f.location,
		Age:      f.age,
		Image:    f.image,
		Results:  slices.Clone(f.results),
		Error:    f.errMsg,
		Loading:  f.loading,
	}
}

// Loading reports whether a submission is running.
func (f *Form) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}
