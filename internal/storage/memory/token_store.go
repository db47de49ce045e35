// Package memory provides in-memory implementations of the storage
// interfaces, used for tests and single-process deployments.
package memory

import (
	"context"
	"hash/fnv"
	"sync"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

const shardCount = 32

// shard holds a slice of the keyed record map behind its own mutex, so a
// transition locks only its shard and never blocks unrelated tokens.
type shard struct {
	mu   sync.Mutex
	data map[string]*domain.TokenRecord
}

// TokenStore is a lock-sharded in-memory implementation of
// storage.TokenStore. The shard mutex is held only for the duration of a
// transition's read-modify-write, never across any I/O.
type TokenStore struct {
	shards [shardCount]*shard
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	s := &TokenStore{}
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[string]*domain.TokenRecord)}
	}
	return s
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Get retrieves a token record. Returns ErrNotFound if absent.
func (s *TokenStore) Get(_ context.Context, chain domain.Chain, address string) (*domain.TokenRecord, error) {
	key := domain.TokenKey(chain, address)
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRecord(rec), nil
}

// RecordNewCreation marks first sighting in the new_creation feed.
func (s *TokenStore) RecordNewCreation(_ context.Context, tok *domain.TokenRecord) (storage.CreationResult, error) {
	if tok == nil || tok.Address == "" {
		return storage.CreationResult{}, storage.ErrInvalidInput
	}

	key := domain.TokenKey(tok.Chain, tok.Address)
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.data[key]; exists {
		return storage.CreationResult{Recorded: false}, nil
	}

	rec := copyRecord(tok)
	rec.State = domain.StateNewCreation
	sh.data[key] = rec
	return storage.CreationResult{Recorded: true}, nil
}

// RecordCompleted applies the monotonic completed-feed transition table.
func (s *TokenStore) RecordCompleted(_ context.Context, tok *domain.TokenRecord, passesFilter bool) (storage.CompletionResult, error) {
	if tok == nil || tok.Address == "" {
		return storage.CompletionResult{}, storage.ErrInvalidInput
	}

	key := domain.TokenKey(tok.Chain, tok.Address)
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	existing, ok := sh.data[key]
	if !ok {
		rec := copyRecord(tok)
		rec.State = domain.StateCompleted
		sh.data[key] = rec
		return storage.CompletionResult{Recorded: true, Notify: passesFilter}, nil
	}

	switch existing.State {
	case domain.StateCompleted:
		return storage.CompletionResult{}, nil
	case domain.StateNewCreation:
		existing.State = domain.StateCompleted
		return storage.CompletionResult{Upgraded: true, Notify: passesFilter}, nil
	default:
		existing.State = domain.StateCompleted
		return storage.CompletionResult{Recorded: true, Notify: passesFilter}, nil
	}
}

// SaveCachedPool attaches pool metadata to an existing record.
func (s *TokenStore) SaveCachedPool(_ context.Context, chain domain.Chain, address string, pool *domain.PoolRef) error {
	if pool == nil {
		return storage.ErrInvalidInput
	}

	key := domain.TokenKey(chain, address)
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.data[key]
	if !ok {
		return storage.ErrNotFound
	}

	poolCopy := *pool
	rec.CachedPool = &poolCopy
	return nil
}

// copyRecord clones a record to prevent external mutation.
func copyRecord(rec *domain.TokenRecord) *domain.TokenRecord {
	c := *rec
	if rec.CachedPool != nil {
		pool := *rec.CachedPool
		c.CachedPool = &pool
	}
	return &c
}
