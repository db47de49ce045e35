package memory

import (
	"context"
	"sort"
	"sync"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of
// storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.PricePoint // keyed by token key
}

// NewPriceHistoryStore creates an empty price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		data: make(map[string][]*domain.PricePoint),
	}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk appends price points.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil || p.Address == "" {
			return storage.ErrInvalidInput
		}
		key := domain.TokenKey(p.Chain, p.Address)
		pointCopy := *p
		s.data[key] = append(s.data[key], &pointCopy)
	}
	return nil
}

// GetByToken retrieves all points for a token, ordered by observation time.
func (s *PriceHistoryStore) GetByToken(_ context.Context, chain domain.Chain, address string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.data[domain.TokenKey(chain, address)]
	result := make([]*domain.PricePoint, len(points))
	for i, p := range points {
		pointCopy := *p
		result[i] = &pointCopy
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}
