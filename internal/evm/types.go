// Package evm provides the on-chain liquidity query surface used by the
// price oracle, backed by JSON-RPC eth_call against a pool of endpoints.
package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reserves holds a pool's current balances and its last update time.
type Reserves struct {
	Reserve0  *big.Int
	Reserve1  *big.Int
	UpdatedAt int64 // Unix seconds, pool-reported blockTimestampLast
}

// PoolClient defines the liquidity pool query surface.
type PoolClient interface {
	// GetPool resolves the pool for a token pair from the factory.
	// Returns the zero address when no pool exists.
	GetPool(ctx context.Context, tokenA, tokenB common.Address, stable bool) (common.Address, error)

	// GetReserves retrieves current reserves for a pool.
	GetReserves(ctx context.Context, pool common.Address) (*Reserves, error)

	// Token0 returns the pool's first token.
	Token0(ctx context.Context, pool common.Address) (common.Address, error)

	// Token1 returns the pool's second token.
	Token1(ctx context.Context, pool common.Address) (common.Address, error)

	// QuoteAmountOut asks the router how much tokenOut a swap of amountIn
	// tokenIn would return. Returns ErrQuoteUnsupported when no router is
	// configured.
	QuoteAmountOut(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error)
}
