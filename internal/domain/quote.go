package domain

import "github.com/shopspring/decimal"

// PriceStrategy identifies which pricing path produced a quote.
type PriceStrategy string

const (
	StrategyCachedPool      PriceStrategy = "cached_pool"
	StrategyRouterQuote     PriceStrategy = "router_quote"
	StrategyFactoryReserves PriceStrategy = "factory_reserves"
)

// PriceQuote is a point-in-time USD price for a token. Produced per call,
// not persisted by the oracle itself.
type PriceQuote struct {
	ValueUSD   decimal.Decimal
	Pool       *PoolRef // pool the price was derived from
	Strategy   PriceStrategy
	Stale      bool  // reserves older than the staleness threshold
	ObservedAt int64 // Unix timestamp in milliseconds
}

// PricePoint is a price-history row appended to the timeseries store.
type PricePoint struct {
	Chain      Chain
	Address    string
	Symbol     string
	PriceUSD   decimal.Decimal
	Pool       string
	Strategy   PriceStrategy
	Stale      bool
	ObservedAt int64 // Unix timestamp in milliseconds
}
