package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"token-radar/internal/domain"
	"token-radar/internal/storage"
)

func memeToken() *domain.TokenRecord {
	return &domain.TokenRecord{
		Chain:     domain.ChainBase,
		Address:   "0x00000000000000000000000000000000000000A1",
		Symbol:    "MEME",
		Decimals:  18,
		CreatedAt: 1700000000000,
	}
}

func TestTokenStore_RecordNewCreationIdempotent(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	first, err := store.RecordNewCreation(ctx, memeToken())
	if err != nil {
		t.Fatalf("first RecordNewCreation failed: %v", err)
	}
	if !first.Recorded {
		t.Error("first call should record")
	}

	second, err := store.RecordNewCreation(ctx, memeToken())
	if err != nil {
		t.Fatalf("second RecordNewCreation failed: %v", err)
	}
	if second.Recorded {
		t.Error("repeat call should be a no-op")
	}

	rec, err := store.Get(ctx, domain.ChainBase, memeToken().Address)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.State != domain.StateNewCreation {
		t.Errorf("state = %v, want StateNewCreation", rec.State)
	}
}

func TestTokenStore_RecordCompletedTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh token records directly", func(t *testing.T) {
		store := NewTokenStore()
		res, err := store.RecordCompleted(ctx, memeToken(), true)
		if err != nil {
			t.Fatalf("RecordCompleted failed: %v", err)
		}
		want := storage.CompletionResult{Recorded: true, Notify: true}
		if res != want {
			t.Errorf("result = %+v, want %+v", res, want)
		}
	})

	t.Run("new creation upgrades once", func(t *testing.T) {
		store := NewTokenStore()
		if _, err := store.RecordNewCreation(ctx, memeToken()); err != nil {
			t.Fatalf("RecordNewCreation failed: %v", err)
		}

		res, err := store.RecordCompleted(ctx, memeToken(), true)
		if err != nil {
			t.Fatalf("RecordCompleted failed: %v", err)
		}
		want := storage.CompletionResult{Upgraded: true, Notify: true}
		if res != want {
			t.Errorf("upgrade result = %+v, want %+v", res, want)
		}

		// Repeat is a full no-op.
		res, err = store.RecordCompleted(ctx, memeToken(), true)
		if err != nil {
			t.Fatalf("repeat RecordCompleted failed: %v", err)
		}
		if res != (storage.CompletionResult{}) {
			t.Errorf("repeat result = %+v, want zero", res)
		}
	})

	t.Run("filter failure suppresses notify only", func(t *testing.T) {
		store := NewTokenStore()
		res, err := store.RecordCompleted(ctx, memeToken(), false)
		if err != nil {
			t.Fatalf("RecordCompleted failed: %v", err)
		}
		want := storage.CompletionResult{Recorded: true, Notify: false}
		if res != want {
			t.Errorf("result = %+v, want %+v", res, want)
		}
	})

	t.Run("completed never regresses", func(t *testing.T) {
		store := NewTokenStore()
		if _, err := store.RecordCompleted(ctx, memeToken(), true); err != nil {
			t.Fatalf("RecordCompleted failed: %v", err)
		}
		res, err := store.RecordNewCreation(ctx, memeToken())
		if err != nil {
			t.Fatalf("RecordNewCreation failed: %v", err)
		}
		if res.Recorded {
			t.Error("new_creation after completed must be a no-op")
		}
		rec, err := store.Get(ctx, domain.ChainBase, memeToken().Address)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec.State != domain.StateCompleted {
			t.Errorf("state regressed to %v", rec.State)
		}
	})
}

func TestTokenStore_ConcurrentTransitionsSingleWinner(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	results := make([]storage.CompletionResult, callers)

	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			res, err := store.RecordCompleted(ctx, memeToken(), true)
			if err != nil {
				t.Errorf("RecordCompleted failed: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	var recorded, notified int
	for _, res := range results {
		if res.Recorded {
			recorded++
		}
		if res.Notify {
			notified++
		}
	}
	if recorded != 1 {
		t.Errorf("recorded winners = %d, want exactly 1", recorded)
	}
	if notified != 1 {
		t.Errorf("notify decisions = %d, want exactly 1", notified)
	}
}

func TestTokenStore_EVMAddressCaseInsensitive(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	tok := memeToken()
	if _, err := store.RecordNewCreation(ctx, tok); err != nil {
		t.Fatalf("RecordNewCreation failed: %v", err)
	}

	lower := memeToken()
	lower.Address = "0x00000000000000000000000000000000000000a1"
	res, err := store.RecordNewCreation(ctx, lower)
	if err != nil {
		t.Fatalf("RecordNewCreation failed: %v", err)
	}
	if res.Recorded {
		t.Error("same address in different case must not create a second record")
	}
}

func TestTokenStore_SaveCachedPool(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	pool := &domain.PoolRef{
		Address:   "0x00000000000000000000000000000000000000B1",
		Protocol:  "aerodrome",
		Version:   "v2",
		PairToken: "0x4200000000000000000000000000000000000006",
	}

	err := store.SaveCachedPool(ctx, domain.ChainBase, memeToken().Address, pool)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown token, got %v", err)
	}

	if _, err := store.RecordNewCreation(ctx, memeToken()); err != nil {
		t.Fatalf("RecordNewCreation failed: %v", err)
	}
	if err := store.SaveCachedPool(ctx, domain.ChainBase, memeToken().Address, pool); err != nil {
		t.Fatalf("SaveCachedPool failed: %v", err)
	}

	rec, err := store.Get(ctx, domain.ChainBase, memeToken().Address)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.CachedPool == nil || rec.CachedPool.Address != pool.Address {
		t.Errorf("cached pool = %+v, want %+v", rec.CachedPool, pool)
	}
}
