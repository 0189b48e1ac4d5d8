package search

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service errors
var (
	ErrUpstreamStatus = errors.New("search service returned an error status")
	ErrRejected       = errors.New("search service rejected the request")
	ErrDecode         = errors.New("search service response could not be decoded")
)

// GenericFailureMessage is shown when an error carries no message meant for people.
const GenericFailureMessage = "Search failed. Please try again."

// UpstreamErrorKind classifies search service failures.
type UpstreamErrorKind string

const (
	UpstreamErrorKindStatus   UpstreamErrorKind = "status"
	UpstreamErrorKindRejected UpstreamErrorKind = "rejected"
	UpstreamErrorKindDecode   UpstreamErrorKind = "decode"
)

// UpstreamError describes a response from the search service that did not carry results.
type UpstreamError struct {
	Kind UpstreamErrorKind
	// Status is the HTTP status code of the response.
	Status int
	// Message is the text shown to the user.
	Message string
	cause   error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "search upstream error"
	}
	if e.Message == "" {
		return fmt.Sprintf("search upstream error (kind=%s status=%d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("search upstream error (kind=%s status=%d): %s", e.Kind, e.Status, e.Message)
}

// Unwrap enables errors.Is/As against sentinel service errors.
func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// UserMessage returns the message to surface for err: the upstream message when there
// is one, otherwise GenericFailureMessage.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.Message != "" {
		return upstreamErr.Message
	}
	return GenericFailureMessage
}

// File is an image sent along with the search criteria.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Criteria are the user supplied search inputs. Empty fields are still sent.
type Criteria struct {
	Name     string
	Location string
	// Age is zero when not given.
	Age   int
	Image *File
}

// Profile is one matched profile, as returned by the search service.
type Profile struct {
	Name     string
	Age      int
	Location string
	Bio      string
	// LastActive is zero when the service did not report it.
	LastActive      time.Time
	ProfilePictures []string
}

// Service runs profile searches against the remote search endpoint.
type Service interface {
	Search(ctx context.Context, criteria Criteria) ([]Profile, error)
}
