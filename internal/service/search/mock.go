package search

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MockSearchService implements Service for unit tests. It returns Profiles, or Err when
// set, and records every call.
type MockSearchService struct {
	mu       sync.Mutex
	Profiles []Profile
	Err      error
	// Block, when non-nil, makes Search wait until it is closed or ctx is done.
	Block chan struct{}
	calls []Criteria
}

// NewMockSearchService creates a mock pre-populated with two demo profiles.
func NewMockSearchService() *MockSearchService {
	return &MockSearchService{
		Profiles: []Profile{
			{
				Name:            "Alex",
				Age:             29,
				Location:        "Helsinki",
				Bio:             "Coffee and long walks.",
				LastActive:      time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
				ProfilePictures: []string{"https://images.example.com/alex-1.jpg", "https://images.example.com/alex-2.jpg"},
			},
			{
				Name:            "Sam",
				Age:             31,
				Location:        "Espoo",
				ProfilePictures: []string{"https://images.example.com/sam-1.jpg"},
			},
		},
	}
}

func (m *MockSearchService) Search(ctx context.Context, criteria Criteria) ([]Profile, error) {
	m.mu.Lock()
	m.calls = append(m.calls, criteria)
	block := m.Block
	profiles := slices.Clone(m.Profiles)
	err := m.Err
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	return profiles, nil
}

// Calls returns the criteria of every Search call so far.
func (m *MockSearchService) Calls() []Criteria {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// LastCriteria returns the criteria of the most recent call.
func (m *MockSearchService) LastCriteria() (Criteria, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Criteria{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Compile-time interface check
var _ Service = (*MockSearchService)(nil)
