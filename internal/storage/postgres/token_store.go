// Package postgres implements the storage interfaces on PostgreSQL via
// pgx. Lifecycle transitions are single-statement conditional upserts, so
// the database serializes racing transitions for the same token.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

// TokenStore implements storage.TokenStore on PostgreSQL.
type TokenStore struct {
	pool *Pool
	now  func() time.Time
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool, now: time.Now}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// normalizeAddress canonicalizes an address for the identity key. EVM
// addresses are case-insensitive hex; Solana addresses are case-sensitive
// base58 and pass through unchanged.
func normalizeAddress(chain domain.Chain, address string) string {
	if chain.IsEVM() {
		return strings.ToLower(address)
	}
	return address
}

// Get retrieves a token record. Returns ErrNotFound if absent.
func (s *TokenStore) Get(ctx context.Context, chain domain.Chain, address string) (*domain.TokenRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT symbol, decimals, state,
		       pool_address, pool_protocol, pool_version, pool_stable, pool_pair_token,
		       created_at
		FROM token_records
		WHERE chain = $1 AND address = $2
	`, string(chain), normalizeAddress(chain, address))

	var (
		rec       domain.TokenRecord
		state     string
		poolAddr  *string
		poolProto *string
		poolVer   *string
		poolStbl  *bool
		poolPair  *string
	)
	err := row.Scan(&rec.Symbol, &rec.Decimals, &state,
		&poolAddr, &poolProto, &poolVer, &poolStbl, &poolPair,
		&rec.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query token record: %w", err)
	}

	rec.Chain = chain
	rec.Address = normalizeAddress(chain, address)
	rec.State = domain.ParseSourceState(state)
	if poolAddr != nil {
		rec.CachedPool = &domain.PoolRef{
			Address:   *poolAddr,
			Protocol:  deref(poolProto),
			Version:   deref(poolVer),
			PairToken: deref(poolPair),
		}
		if poolStbl != nil {
			rec.CachedPool.Stable = *poolStbl
		}
	}

	return &rec, nil
}

// RecordNewCreation inserts the record in state new_creation unless any
// record already exists for the token.
func (s *TokenStore) RecordNewCreation(ctx context.Context, tok *domain.TokenRecord) (storage.CreationResult, error) {
	if tok == nil || tok.Address == "" {
		return storage.CreationResult{}, storage.ErrInvalidInput
	}

	nowMs := s.now().UnixMilli()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO token_records (chain, address, symbol, decimals, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'new_creation', $5, $5)
		ON CONFLICT (chain, address) DO NOTHING
	`, string(tok.Chain), normalizeAddress(tok.Chain, tok.Address), tok.Symbol, tok.Decimals, nowMs)
	if err != nil {
		return storage.CreationResult{}, fmt.Errorf("record new creation: %w", err)
	}

	return storage.CreationResult{Recorded: tag.RowsAffected() == 1}, nil
}

// RecordCompleted applies the completed-feed transition table in one
// statement. The WHERE clause on the conflict update guards monotonicity:
// an already-completed row matches nothing and the query returns no rows.
func (s *TokenStore) RecordCompleted(ctx context.Context, tok *domain.TokenRecord, passesFilter bool) (storage.CompletionResult, error) {
	if tok == nil || tok.Address == "" {
		return storage.CompletionResult{}, storage.ErrInvalidInput
	}

	nowMs := s.now().UnixMilli()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO token_records (chain, address, symbol, decimals, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'completed', $5, $5)
		ON CONFLICT (chain, address) DO UPDATE
		SET state = 'completed', updated_at = EXCLUDED.updated_at
		WHERE token_records.state = 'new_creation'
		RETURNING (xmax = 0) AS inserted
	`, string(tok.Chain), normalizeAddress(tok.Chain, tok.Address), tok.Symbol, tok.Decimals, nowMs)

	var inserted bool
	if err := row.Scan(&inserted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row exists and is already completed: full no-op.
			return storage.CompletionResult{}, nil
		}
		return storage.CompletionResult{}, fmt.Errorf("record completed: %w", err)
	}

	if inserted {
		return storage.CompletionResult{Recorded: true, Notify: passesFilter}, nil
	}
	return storage.CompletionResult{Upgraded: true, Notify: passesFilter}, nil
}

// SaveCachedPool attaches discovered pool metadata to an existing record.
func (s *TokenStore) SaveCachedPool(ctx context.Context, chain domain.Chain, address string, pool *domain.PoolRef) error {
	if pool == nil {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE token_records
		SET pool_address = $3, pool_protocol = $4, pool_version = $5,
		    pool_stable = $6, pool_pair_token = $7, updated_at = $8
		WHERE chain = $1 AND address = $2
	`, string(chain), normalizeAddress(chain, address),
		pool.Address, pool.Protocol, pool.Version, pool.Stable, pool.PairToken,
		s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save cached pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
