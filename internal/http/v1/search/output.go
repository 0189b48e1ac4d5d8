package search

// SearchOutput for POST /search
type SearchOutput struct {
	Body SearchResult
}
