// Package stub provides a map-backed feed source for tests.
package stub

import (
	"context"
	"sync"

	"token-radar/internal/domain"
	"token-radar/internal/feed"
)

// Feed is an in-memory feed.Source. Configure the Tokens and Errs maps,
// then hand it to the code under test. Safe for concurrent use.
type Feed struct {
	mu sync.Mutex

	// Tokens maps category to the rows Fetch returns.
	Tokens map[feed.Category][]domain.FeedToken

	// Errs maps category to an injected fetch error.
	Errs map[feed.Category]error

	// Fetches counts Fetch calls per category.
	Fetches map[feed.Category]int
}

// New creates an empty stub feed.
func New() *Feed {
	return &Feed{
		Tokens:  make(map[feed.Category][]domain.FeedToken),
		Errs:    make(map[feed.Category]error),
		Fetches: make(map[feed.Category]int),
	}
}

var _ feed.Source = (*Feed)(nil)

func (f *Feed) Fetch(_ context.Context, category feed.Category) ([]domain.FeedToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Fetches[category]++
	if err := f.Errs[category]; err != nil {
		return nil, err
	}

	rows := make([]domain.FeedToken, len(f.Tokens[category]))
	copy(rows, f.Tokens[category])
	return rows, nil
}

// Set replaces the rows for a category.
func (f *Feed) Set(category feed.Category, tokens ...domain.FeedToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tokens[category] = tokens
}

// FetchCount returns how many times a category was fetched.
func (f *Feed) FetchCount(category feed.Category) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Fetches[category]
}
