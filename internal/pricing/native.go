package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"token-radar/internal/evm"
)

// NativePriceSource fetches the native asset's USD price from upstream.
type NativePriceSource func(ctx context.Context) (decimal.Decimal, error)

// NativePrice is a TTL cache over the native asset's USD price. Within the
// TTL window reads return the cached value with zero upstream calls.
// Concurrent callers observing an expired entry coalesce into a single
// upstream fetch; on fetch failure the last cached value is served stale.
type NativePrice struct {
	source NativePriceSource
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu         sync.RWMutex
	value      decimal.Decimal
	observedAt time.Time
	valid      bool
}

// NativePriceOption configures NativePrice.
type NativePriceOption func(*NativePrice)

// WithClock overrides the cache clock, for tests.
func WithClock(now func() time.Time) NativePriceOption {
	return func(p *NativePrice) {
		p.now = now
	}
}

// NewNativePrice creates the cache. A zero ttl defaults to 30 seconds.
func NewNativePrice(source NativePriceSource, ttl time.Duration, opts ...NativePriceOption) *NativePrice {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	p := &NativePrice{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type nativeEntry struct {
	value      decimal.Decimal
	observedAt time.Time
}

// Get returns the native asset's USD price and the time it was observed.
// Two calls within the TTL window return byte-identical results.
func (p *NativePrice) Get(ctx context.Context) (decimal.Decimal, time.Time, error) {
	if v, at, ok := p.fresh(); ok {
		return v, at, nil
	}

	res, err, _ := p.group.Do("native", func() (interface{}, error) {
		// A waiter queued behind the winning fetch sees a fresh entry here.
		if v, at, ok := p.fresh(); ok {
			return nativeEntry{value: v, observedAt: at}, nil
		}

		value, err := p.source(ctx)
		if err != nil {
			// Serve stale if we ever had a value.
			p.mu.RLock()
			defer p.mu.RUnlock()
			if p.valid {
				return nativeEntry{value: p.value, observedAt: p.observedAt}, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
		}

		at := p.now()
		p.mu.Lock()
		p.value = value
		p.observedAt = at
		p.valid = true
		p.mu.Unlock()

		return nativeEntry{value: value, observedAt: at}, nil
	})
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	entry := res.(nativeEntry)
	return entry.value, entry.observedAt, nil
}

func (p *NativePrice) fresh() (decimal.Decimal, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.valid && p.now().Sub(p.observedAt) < p.ttl {
		return p.value, p.observedAt, true
	}
	return decimal.Decimal{}, time.Time{}, false
}

// NativeSourceFromPools builds a NativePriceSource that derives the native
// asset's USD price from the native/USD-stable volatile pool's reserves.
func NativeSourceFromPools(pools evm.PoolClient, native, usd common.Address, nativeDecimals, usdDecimals int) NativePriceSource {
	return func(ctx context.Context) (decimal.Decimal, error) {
		pool, err := pools.GetPool(ctx, native, usd, false)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("native pool lookup: %w", err)
		}
		if pool == (common.Address{}) {
			return decimal.Decimal{}, fmt.Errorf("no native/USD pool")
		}

		reserves, err := pools.GetReserves(ctx, pool)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("native pool reserves: %w", err)
		}

		token0, err := pools.Token0(ctx, pool)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("native pool token0: %w", err)
		}

		nativeRes, usdRes := reserves.Reserve0, reserves.Reserve1
		if token0 != native {
			nativeRes, usdRes = usdRes, nativeRes
		}

		return reserveRatioPrice(nativeRes, usdRes, nativeDecimals, usdDecimals)
	}
}
