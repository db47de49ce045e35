// Package pricing resolves token USD prices from DEX liquidity pools.
//
// Resolution is best-effort and cache-assisted: a token with cached pool
// metadata is priced straight from that pool; otherwise the oracle walks a
// discovery sequence (router quote, then factory lookup across stable and
// volatile pair variants, then reserve-ratio computation) until one
// strategy yields a price. Prices denominated in the native asset are
// converted to USD through a TTL-cached native price.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"token-radar/internal/domain"
	"token-radar/internal/evm"
)

// Oracle resolves token prices for one EVM chain.
type Oracle struct {
	pools          evm.PoolClient
	native         *NativePrice
	nativeToken    common.Address
	usdToken       common.Address
	nativeDecimals int
	usdDecimals    int
	protocol       string
	staleAfter     time.Duration
	now            func() time.Time
	logger         *log.Logger
}

// Options configures an Oracle.
type Options struct {
	Pools       evm.PoolClient
	Native      *NativePrice
	NativeToken common.Address // wrapped native asset, e.g. WETH
	USDToken    common.Address // canonical USD stable, e.g. USDC

	// NativeDecimals defaults to 18, USDDecimals to 6.
	NativeDecimals int
	USDDecimals    int

	// Protocol names the DEX whose factory/router are configured; recorded
	// in cached pool metadata. Defaults to "aerodrome".
	Protocol string

	// StaleAfter marks quotes from pools whose reserves are older than this
	// as stale. Zero defaults to 10 minutes.
	StaleAfter time.Duration

	Now    func() time.Time
	Logger *log.Logger
}

// New creates an Oracle.
func New(opts Options) *Oracle {
	nativeDecimals := opts.NativeDecimals
	if nativeDecimals == 0 {
		nativeDecimals = 18
	}
	usdDecimals := opts.USDDecimals
	if usdDecimals == 0 {
		usdDecimals = 6
	}
	protocol := opts.Protocol
	if protocol == "" {
		protocol = "aerodrome"
	}
	staleAfter := opts.StaleAfter
	if staleAfter == 0 {
		staleAfter = 10 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Oracle{
		pools:          opts.Pools,
		native:         opts.Native,
		nativeToken:    opts.NativeToken,
		usdToken:       opts.USDToken,
		nativeDecimals: nativeDecimals,
		usdDecimals:    usdDecimals,
		protocol:       protocol,
		staleAfter:     staleAfter,
		now:            now,
		logger:         logger,
	}
}

// NativePriceUSD returns the native asset's cached USD price.
func (o *Oracle) NativePriceUSD(ctx context.Context) (decimal.Decimal, error) {
	value, _, err := o.native.Get(ctx)
	return value, err
}

// TokenPriceUSD resolves a token's USD price. When cached pool metadata is
// supplied the discovery search is skipped and the price comes directly
// from that pool.
func (o *Oracle) TokenPriceUSD(ctx context.Context, token common.Address, decimals int, cached *domain.PoolRef) (*domain.PriceQuote, error) {
	if cached != nil {
		return o.priceFromCachedPool(ctx, token, decimals, cached)
	}
	return o.discoverPrice(ctx, token, decimals)
}

// priceFromCachedPool prices against known pool metadata. Stable pools go
// through the router's quoting function (the stable curve is not a plain
// reserve ratio); volatile pools use the constant-product spot price.
func (o *Oracle) priceFromCachedPool(ctx context.Context, token common.Address, decimals int, cached *domain.PoolRef) (*domain.PriceQuote, error) {
	pool := common.HexToAddress(cached.Address)
	pair := common.HexToAddress(cached.PairToken)
	pairDecimals, err := o.pairDecimals(pair)
	if err != nil {
		return nil, err
	}

	var price decimal.Decimal
	stale := false

	if cached.Stable {
		out, err := o.pools.QuoteAmountOut(ctx, unitAmount(decimals), token, pair)
		if err != nil {
			return nil, fmt.Errorf("%w: cached stable pool quote: %v", ErrPriceUnavailable, err)
		}
		price, err = amountOutPrice(out, pairDecimals)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
		}
	} else {
		price, stale, err = o.priceFromReserves(ctx, pool, token, decimals, pair, pairDecimals)
		if err != nil {
			return nil, err
		}
	}

	price, err = o.toUSD(ctx, price, pair)
	if err != nil {
		return nil, err
	}

	return &domain.PriceQuote{
		ValueUSD:   price,
		Pool:       cached,
		Strategy:   domain.StrategyCachedPool,
		Stale:      stale,
		ObservedAt: o.now().UnixMilli(),
	}, nil
}

// discoverPrice runs the strategy chain for a token without cached pool
// metadata: router quote first, then factory lookup + reserve ratio.
func (o *Oracle) discoverPrice(ctx context.Context, token common.Address, decimals int) (*domain.PriceQuote, error) {
	if quote, err := o.routerQuote(ctx, token, decimals); err == nil {
		return quote, nil
	} else if !errors.Is(err, evm.ErrQuoteUnsupported) {
		o.logger.Printf("[pricing] router quote for %s failed: %v", token.Hex(), err)
	}

	quote, err := o.factoryPrice(ctx, token, decimals)
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// routerQuote tries the router's direct quote function against the USD
// stable first, then the native asset.
func (o *Oracle) routerQuote(ctx context.Context, token common.Address, decimals int) (*domain.PriceQuote, error) {
	unit := unitAmount(decimals)

	for _, pair := range []common.Address{o.usdToken, o.nativeToken} {
		out, err := o.pools.QuoteAmountOut(ctx, unit, token, pair)
		if err != nil {
			if errors.Is(err, evm.ErrQuoteUnsupported) {
				return nil, err
			}
			continue
		}

		pairDecimals, err := o.pairDecimals(pair)
		if err != nil {
			continue
		}
		price, err := amountOutPrice(out, pairDecimals)
		if err != nil {
			continue
		}
		price, err = o.toUSD(ctx, price, pair)
		if err != nil {
			continue
		}

		return &domain.PriceQuote{
			ValueUSD: price,
			Pool: &domain.PoolRef{
				Protocol:  o.protocol,
				PairToken: pair.Hex(),
			},
			Strategy:   domain.StrategyRouterQuote,
			ObservedAt: o.now().UnixMilli(),
		}, nil
	}

	return nil, fmt.Errorf("%w: no router quote", ErrPriceUnavailable)
}

// pairVariant is one factory lookup candidate.
type pairVariant struct {
	pair   common.Address
	stable bool
}

// factoryPrice looks the pool up from the factory across the known pair
// variants and prices from whichever pool is found first.
func (o *Oracle) factoryPrice(ctx context.Context, token common.Address, decimals int) (*domain.PriceQuote, error) {
	variants := []pairVariant{
		{pair: o.nativeToken, stable: false},
		{pair: o.usdToken, stable: false},
		{pair: o.usdToken, stable: true},
		{pair: o.nativeToken, stable: true},
	}

	var lastErr error
	for _, v := range variants {
		pool, err := o.pools.GetPool(ctx, token, v.pair, v.stable)
		if err != nil {
			lastErr = err
			continue
		}
		if pool == (common.Address{}) {
			continue
		}

		pairDecimals, err := o.pairDecimals(v.pair)
		if err != nil {
			lastErr = err
			continue
		}

		price, stale, err := o.priceFromReserves(ctx, pool, token, decimals, v.pair, pairDecimals)
		if err != nil {
			lastErr = err
			continue
		}
		price, err = o.toUSD(ctx, price, v.pair)
		if err != nil {
			lastErr = err
			continue
		}

		return &domain.PriceQuote{
			ValueUSD: price,
			Pool: &domain.PoolRef{
				Address:   pool.Hex(),
				Protocol:  o.protocol,
				Version:   "v2",
				Stable:    v.stable,
				PairToken: v.pair.Hex(),
			},
			Strategy:   domain.StrategyFactoryReserves,
			Stale:      stale,
			ObservedAt: o.now().UnixMilli(),
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, lastErr)
	}
	return nil, fmt.Errorf("%w: no pool found for %s", ErrPriceUnavailable, token.Hex())
}

// priceFromReserves computes the reserve-ratio price from a pool, orienting
// numerator and denominator by the pool's token ordering. The bool result
// reports reserve staleness.
func (o *Oracle) priceFromReserves(ctx context.Context, pool, token common.Address, tokenDecimals int, pair common.Address, pairDecimals int) (decimal.Decimal, bool, error) {
	reserves, err := o.pools.GetReserves(ctx, pool)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("%w: reserves for %s: %v", ErrPriceUnavailable, pool.Hex(), err)
	}

	token0, err := o.pools.Token0(ctx, pool)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("%w: token0 for %s: %v", ErrPriceUnavailable, pool.Hex(), err)
	}

	tokenRes, pairRes := reserves.Reserve0, reserves.Reserve1
	if token0 != token {
		tokenRes, pairRes = pairRes, tokenRes
	}

	price, err := reserveRatioPrice(tokenRes, pairRes, tokenDecimals, pairDecimals)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	stale := reserves.UpdatedAt > 0 && o.now().Unix()-reserves.UpdatedAt > int64(o.staleAfter.Seconds())
	return price, stale, nil
}

// toUSD converts a price denominated in pair units into USD. A USD-stable
// denomination passes through; a native denomination is multiplied by the
// cached native price.
func (o *Oracle) toUSD(ctx context.Context, price decimal.Decimal, pair common.Address) (decimal.Decimal, error) {
	switch pair {
	case o.usdToken:
		return price, nil
	case o.nativeToken:
		nativeUSD, err := o.NativePriceUSD(ctx)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return price.Mul(nativeUSD), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unsupported pair token %s", ErrPriceUnavailable, pair.Hex())
	}
}

func (o *Oracle) pairDecimals(pair common.Address) (int, error) {
	switch pair {
	case o.usdToken:
		return o.usdDecimals, nil
	case o.nativeToken:
		return o.nativeDecimals, nil
	default:
		return 0, fmt.Errorf("%w: unsupported pair token %s", ErrPriceUnavailable, pair.Hex())
	}
}
