package postgres

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

func testToken(address string) *domain.TokenRecord {
	return &domain.TokenRecord{
		Chain:    domain.ChainBase,
		Address:  address,
		Symbol:   "MEME",
		Decimals: 18,
	}
}

func TestTokenStore_RecordNewCreation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	res, err := store.RecordNewCreation(ctx, testToken("0xAAA1"))
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	// Same token again is a no-op.
	res, err = store.RecordNewCreation(ctx, testToken("0xAAA1"))
	require.NoError(t, err)
	assert.False(t, res.Recorded)

	rec, err := store.Get(ctx, domain.ChainBase, "0xAAA1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateNewCreation, rec.State)
	assert.Equal(t, "MEME", rec.Symbol)
	assert.NotZero(t, rec.CreatedAt)
}

func TestTokenStore_RecordCompletedTransitions(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	// Unseen token: completed arrives first.
	res, err := store.RecordCompleted(ctx, testToken("0xBBB1"), true)
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.False(t, res.Upgraded)
	assert.True(t, res.Notify)

	// Already completed: full no-op, no notification.
	res, err = store.RecordCompleted(ctx, testToken("0xBBB1"), true)
	require.NoError(t, err)
	assert.False(t, res.Recorded)
	assert.False(t, res.Upgraded)
	assert.False(t, res.Notify)

	// Known new_creation token upgrades.
	_, err = store.RecordNewCreation(ctx, testToken("0xBBB2"))
	require.NoError(t, err)

	res, err = store.RecordCompleted(ctx, testToken("0xBBB2"), true)
	require.NoError(t, err)
	assert.False(t, res.Recorded)
	assert.True(t, res.Upgraded)
	assert.True(t, res.Notify)

	rec, err := store.Get(ctx, domain.ChainBase, "0xBBB2")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, rec.State)
}

func TestTokenStore_RecordCompletedFilterRejected(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	// Filter rejection still records the transition, only suppresses notify.
	res, err := store.RecordCompleted(ctx, testToken("0xCCC1"), false)
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.False(t, res.Notify)

	rec, err := store.Get(ctx, domain.ChainBase, "0xCCC1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, rec.State)
}

func TestTokenStore_ConcurrentCompletedSingleWinner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	const callers = 16
	results := make([]storage.CompletionResult, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := store.RecordCompleted(ctx, testToken("0xDDD1"), true)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	recorded := 0
	for _, res := range results {
		if res.Recorded {
			recorded++
		}
		assert.False(t, res.Upgraded)
	}
	assert.Equal(t, 1, recorded, "exactly one caller should win the insert")
}

func TestTokenStore_AddressCaseInsensitive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	_, err := store.RecordNewCreation(ctx, testToken("0xAbCdEf"))
	require.NoError(t, err)

	res, err := store.RecordNewCreation(ctx, testToken("0xABCDEF"))
	require.NoError(t, err)
	assert.False(t, res.Recorded, "checksum and lowercase forms are the same token")

	rec, err := store.Get(ctx, domain.ChainBase, "0xABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef", rec.Address)
}

func TestTokenStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)

	_, err := store.Get(context.Background(), domain.ChainBase, "0xmissing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_SaveCachedPool(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	ref := &domain.PoolRef{
		Address:   "0xpool1",
		Protocol:  "aerodrome",
		Version:   "v2",
		Stable:    false,
		PairToken: "0xweth",
	}

	// No record yet.
	err := store.SaveCachedPool(ctx, domain.ChainBase, "0xEEE1", ref)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.RecordNewCreation(ctx, testToken("0xEEE1"))
	require.NoError(t, err)

	err = store.SaveCachedPool(ctx, domain.ChainBase, "0xEEE1", ref)
	require.NoError(t, err)

	rec, err := store.Get(ctx, domain.ChainBase, "0xEEE1")
	require.NoError(t, err)
	require.NotNil(t, rec.CachedPool)
	assert.Equal(t, "0xpool1", rec.CachedPool.Address)
	assert.Equal(t, "aerodrome", rec.CachedPool.Protocol)
	assert.False(t, rec.CachedPool.Stable)
	assert.Equal(t, "0xweth", rec.CachedPool.PairToken)
}
