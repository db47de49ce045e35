package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk appends price points in a single batch. The table is
// append-only MergeTree; duplicates are not rejected.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (
			chain, address, symbol, price_usd, pool, strategy, stale, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			string(p.Chain), p.Address, p.Symbol,
			p.PriceUSD, p.Pool, string(p.Strategy),
			boolToUint8(p.Stale), uint64(p.ObservedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByToken retrieves all points for a token, ordered by observation time ASC.
func (s *PriceHistoryStore) GetByToken(ctx context.Context, chain domain.Chain, address string) ([]*domain.PricePoint, error) {
	query := `
		SELECT chain, address, symbol, price_usd, pool, strategy, stale, observed_at
		FROM price_history
		WHERE chain = ? AND address = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, string(chain), address)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func scanPricePoints(rows driver.Rows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint
	for rows.Next() {
		var (
			p          domain.PricePoint
			chain      string
			strategy   string
			stale      uint8
			observedAt uint64
		)
		err := rows.Scan(&chain, &p.Address, &p.Symbol, &p.PriceUSD,
			&p.Pool, &strategy, &stale, &observedAt)
		if err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.Chain = domain.Chain(chain)
		p.Strategy = domain.PriceStrategy(strategy)
		p.Stale = stale != 0
		p.ObservedAt = int64(observedAt)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return points, nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
