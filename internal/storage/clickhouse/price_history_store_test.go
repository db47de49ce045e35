package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-radar/internal/domain"
)

func TestPriceHistoryStore_InsertAndGetByToken(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceHistoryStore(conn)
	ctx := context.Background()

	points := []*domain.PricePoint{
		{
			Chain:      domain.ChainBase,
			Address:    "0xmeme",
			Symbol:     "MEME",
			PriceUSD:   decimal.RequireFromString("0.000000000000123456"),
			Pool:       "0xpool1",
			Strategy:   domain.StrategyFactoryReserves,
			Stale:      false,
			ObservedAt: 1700000002000,
		},
		{
			Chain:      domain.ChainBase,
			Address:    "0xmeme",
			Symbol:     "MEME",
			PriceUSD:   decimal.RequireFromString("0.000000000000123999"),
			Pool:       "0xpool1",
			Strategy:   domain.StrategyCachedPool,
			Stale:      true,
			ObservedAt: 1700000001000,
		},
		{
			Chain:      domain.ChainBase,
			Address:    "0xother",
			Symbol:     "OTHER",
			PriceUSD:   decimal.RequireFromString("42.5"),
			Pool:       "0xpool2",
			Strategy:   domain.StrategyRouterQuote,
			Stale:      false,
			ObservedAt: 1700000003000,
		},
	}

	err := store.InsertBulk(ctx, points)
	require.NoError(t, err)

	got, err := store.GetByToken(ctx, domain.ChainBase, "0xmeme")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by observed_at ascending.
	assert.Equal(t, int64(1700000001000), got[0].ObservedAt)
	assert.Equal(t, int64(1700000002000), got[1].ObservedAt)

	assert.Equal(t, domain.StrategyCachedPool, got[0].Strategy)
	assert.True(t, got[0].Stale)
	assert.True(t, got[0].PriceUSD.Equal(decimal.RequireFromString("0.000000000000123999")))

	assert.Equal(t, "0xpool1", got[1].Pool)
	assert.False(t, got[1].Stale)
	assert.True(t, got[1].PriceUSD.Equal(decimal.RequireFromString("0.000000000000123456")))
}

func TestPriceHistoryStore_InsertEmptyBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceHistoryStore(conn)

	err := store.InsertBulk(context.Background(), nil)
	assert.NoError(t, err)
}

func TestPriceHistoryStore_GetByTokenEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceHistoryStore(conn)

	got, err := store.GetByToken(context.Background(), domain.ChainBase, "0xnothing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
