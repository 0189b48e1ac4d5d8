package search

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/janisto/profile-search/internal/platform/auth"
	applog "github.com/janisto/profile-search/internal/platform/logging"
	"github.com/janisto/profile-search/internal/platform/timeutil"
	"github.com/janisto/profile-search/internal/search"
	searchsvc "github.com/janisto/profile-search/internal/service/search"
)

// Options configure the search operation.
type Options struct {
	// RequireAuth declares the bearerAuth security requirement on the operation.
	RequireAuth bool
	// MaxBodyBytes bounds the multipart request body. Zero keeps huma's default.
	MaxBodyBytes int64
}

// Register wires the search operation into api.
func Register(api huma.API, svc searchsvc.Service, opts Options) {
	op := huma.Operation{
		OperationID:  "search-profiles",
		Method:       http.MethodPost,
		Path:         "/search",
		Summary:      "Search profiles",
		Description:  "Forwards the name, location, age and optional image to the search service and returns the matched profiles in order.",
		Tags:         []string{"Search"},
		MaxBodyBytes: opts.MaxBodyBytes,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
			http.StatusGatewayTimeout,
		},
	}
	if opts.RequireAuth {
		op.Security = auth.Requirement()
		op.Errors = append(op.Errors, http.StatusUnauthorized, http.StatusServiceUnavailable)
	}

	huma.Register(api, op, func(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
		criteria, err := toCriteria(&input.RawBody)
		if err != nil {
			return nil, err
		}

		profiles, err := svc.Search(ctx, criteria)
		auditSearch(ctx, criteria, profiles, err)
		if err != nil {
			return nil, mapServiceError(ctx, err)
		}

		results, message := search.Outcome(profiles, nil)
		return &SearchOutput{Body: SearchResult{
			Profiles: toHTTPProfiles(results),
			Count:    len(results),
			Message:  message,
		}}, nil
	})
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func toCriteria(form *multipart.Form) (searchsvc.Criteria, error) {
	age, err := search.ParseAge(formValue(form, "age"))
	if err != nil {
		return searchsvc.Criteria{}, huma.Error422UnprocessableEntity("invalid age", &huma.ErrorDetail{
			Message:  err.Error(),
			Location: "body.age",
			Value:    formValue(form, "age"),
		})
	}
	criteria := searchsvc.Criteria{
		Name:     formValue(form, "name"),
		Location: formValue(form, "location"),
		Age:      age,
	}

	files := form.File["image"]
	if len(files) == 0 {
		return criteria, nil
	}
	img, err := readImage(files[0])
	if err != nil {
		return searchsvc.Criteria{}, err
	}
	if img != nil {
		criteria.Image = &searchsvc.File{Filename: img.Filename, ContentType: img.ContentType, Data: img.Data}
	}
	return criteria, nil
}

// readImage returns nil for an empty file part.
func readImage(fh *multipart.FileHeader) (*search.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, huma.Error400BadRequest("unable to read image")
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, huma.Error400BadRequest("unable to read image")
	}
	img, err := search.NewImage(fh.Filename, fh.Header.Get("Content-Type"), data)
	if errors.Is(err, search.ErrEmptyImage) {
		return nil, nil
	}
	return img, err
}

func auditSearch(ctx context.Context, criteria searchsvc.Criteria, profiles []searchsvc.Profile, err error) {
	actor := "anonymous"
	if user := auth.UserFromContext(ctx); user != nil {
		actor = user.UID
	}
	result := applog.AuditSuccess
	if err != nil {
		result = applog.AuditFailure
	}
	applog.LogAuditEvent(ctx, applog.AuditEvent{
		Action:   "search",
		Actor:    actor,
		Resource: "profiles",
		Result:   result,
		Details: map[string]any{
			"profiles": len(profiles),
			"image":    criteria.Image != nil,
		},
	})
}

func mapServiceError(ctx context.Context, err error) error {
	var upstreamErr *searchsvc.UpstreamError
	switch {
	case errors.As(err, &upstreamErr):
		return huma.Error502BadGateway(searchsvc.UserMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		applog.LogWarn(ctx, "search timed out", zap.Error(err))
		return huma.Error504GatewayTimeout("search service did not respond in time")
	default:
		applog.LogError(ctx, "search request failed", err)
		return huma.Error502BadGateway("search service unavailable")
	}
}

func toHTTPProfiles(profiles []searchsvc.Profile) []Profile {
	out := make([]Profile, len(profiles))
	for i, p := range profiles {
		pictures := p.ProfilePictures
		if pictures == nil {
			pictures = []string{}
		}
		out[i] = Profile{
			Name:            p.Name,
			Age:             p.Age,
			Location:        p.Location,
			Bio:             p.Bio,
			LastActive:      timeutil.NewTime(p.LastActive),
			ProfilePictures: pictures,
		}
	}
	return out
}
