package search

import (
	"github.com/janisto/profile-search/internal/platform/timeutil"
)

// Profile is one matched profile.
type Profile struct {
	Name            string        `json:"name"                 doc:"First name"                     example:"Alex"`
	Age             int           `json:"age"                  doc:"Age in years, 0 when unknown"   example:"29"`
	Location        string        `json:"location"             doc:"Reported location"              example:"Helsinki"`
	Bio             string        `json:"bio,omitempty"        doc:"Profile biography"              example:"Coffee and long walks."`
	LastActive      timeutil.Time `json:"lastActive"           doc:"Last activity, null if unknown" example:"2024-06-01T12:30:00.000Z"`
	ProfilePictures []string      `json:"profilePictures"      doc:"Picture URLs in display order"`
}

// SearchResult is the response body of a search.
type SearchResult struct {
	Profiles []Profile `json:"profiles"          doc:"Matched profiles in the order returned by the search service"`
	Count    int       `json:"count"             doc:"Number of profiles"                                            example:"2"`
	Message  string    `json:"message,omitempty" doc:"Shown instead of results when nothing matched"                  example:"No matches found. Try different search criteria."`
}
