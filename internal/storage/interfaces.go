// Package storage defines the persistence interfaces for token lifecycle
// records and price history, with in-memory, PostgreSQL and ClickHouse
// implementations in sub-packages.
package storage

import (
	"context"

	"token-radar/internal/domain"
)

// CreationResult reports the outcome of a new_creation transition.
type CreationResult struct {
	// Recorded is true when the token moved None -> NewCreation. Repeat
	// sightings report false.
	Recorded bool
}

// CompletionResult reports the outcome of a completed transition.
type CompletionResult struct {
	// Recorded is true when the token moved None -> Completed directly.
	Recorded bool

	// Upgraded is true when the token moved NewCreation -> Completed.
	Upgraded bool

	// Notify carries the notification decision: (Recorded || Upgraded) and
	// the external filter passed.
	Notify bool
}

// TokenStore is the single source of truth for token lifecycle state.
// Transitions are atomic per (chain, address): concurrent calls for the
// same token serialize so exactly one outcome wins. State never regresses:
// None -> NewCreation -> Completed, or None -> Completed.
type TokenStore interface {
	// Get retrieves a token record. Returns ErrNotFound if absent.
	Get(ctx context.Context, chain domain.Chain, address string) (*domain.TokenRecord, error)

	// RecordNewCreation marks first sighting in the new_creation feed.
	// A no-op for tokens in any state past None.
	RecordNewCreation(ctx context.Context, tok *domain.TokenRecord) (CreationResult, error)

	// RecordCompleted marks sighting in the completed feed, applying the
	// monotonic transition table. passesFilter feeds the Notify decision.
	RecordCompleted(ctx context.Context, tok *domain.TokenRecord, passesFilter bool) (CompletionResult, error)

	// SaveCachedPool attaches discovered pool metadata to an existing
	// record. Returns ErrNotFound when the token was never recorded.
	SaveCachedPool(ctx context.Context, chain domain.Chain, address string, pool *domain.PoolRef) error
}

// PriceHistoryStore is the append-only price timeseries.
type PriceHistoryStore interface {
	// InsertBulk appends price points. Points are immutable once written.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByToken retrieves all points for a token, ordered by observation
	// time ascending.
	GetByToken(ctx context.Context, chain domain.Chain, address string) ([]*domain.PricePoint, error)
}
