// Package feed fetches ranked token lists from the discovery feed API.
// Two categories exist: new_creation for freshly deployed tokens and
// completed for tokens that finished their bonding phase.
package feed

import (
	"context"
	"errors"

	"token-radar/internal/domain"
)

// Category selects a discovery feed.
type Category string

const (
	CategoryNewCreation Category = "new_creation"
	CategoryCompleted   Category = "completed"
)

// Source is the read side of the discovery feed.
type Source interface {
	// Fetch returns the current ranking for a category. Rows with
	// malformed addresses are dropped, not reported as errors.
	Fetch(ctx context.Context, category Category) ([]domain.FeedToken, error)
}

// ErrBadStatus indicates a non-200 response from the feed API.
var ErrBadStatus = errors.New("feed: unexpected response status")
