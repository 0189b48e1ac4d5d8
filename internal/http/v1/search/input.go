package search

import "mime/multipart"

// SearchInput for POST /search. The multipart body carries the text fields "name",
// "location" and "age" plus an optional "image" file part.
type SearchInput struct {
	RawBody multipart.Form
}
