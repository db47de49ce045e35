// Package stub provides a map-backed evm.PoolClient for testing.
package stub

import (
	"context"
	"math/big"
	"strconv"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"token-radar/internal/evm"
)

// PoolClient implements evm.PoolClient from in-memory maps.
type PoolClient struct {
	// Pools maps "tokenA|tokenB|stable" to a pool address. Pairs are
	// looked up in both orders.
	Pools map[string]common.Address

	// Reserves maps pool address to its reserves.
	Reserves map[common.Address]*evm.Reserves

	// Tokens maps pool address to its (token0, token1) pair.
	Tokens map[common.Address][2]common.Address

	// Quotes maps "amountIn|tokenIn|tokenOut" to a router quote.
	Quotes map[string]*big.Int

	// Err, when set, is returned by every method.
	Err error

	// Calls counts total method invocations.
	Calls atomic.Int64
}

// NewPoolClient creates an empty stub client.
func NewPoolClient() *PoolClient {
	return &PoolClient{
		Pools:    make(map[string]common.Address),
		Reserves: make(map[common.Address]*evm.Reserves),
		Tokens:   make(map[common.Address][2]common.Address),
		Quotes:   make(map[string]*big.Int),
	}
}

// PairKey builds the Pools map key for a token pair.
func PairKey(tokenA, tokenB common.Address, stable bool) string {
	return tokenA.Hex() + "|" + tokenB.Hex() + "|" + strconv.FormatBool(stable)
}

// QuoteKey builds the Quotes map key for a router quote.
func QuoteKey(amountIn *big.Int, tokenIn, tokenOut common.Address) string {
	return amountIn.String() + "|" + tokenIn.Hex() + "|" + tokenOut.Hex()
}

// AddPool registers a pool with its token ordering and reserves.
func (c *PoolClient) AddPool(pool, token0, token1 common.Address, stable bool, r *evm.Reserves) {
	c.Pools[PairKey(token0, token1, stable)] = pool
	c.Tokens[pool] = [2]common.Address{token0, token1}
	c.Reserves[pool] = r
}

func (c *PoolClient) GetPool(_ context.Context, tokenA, tokenB common.Address, stable bool) (common.Address, error) {
	c.Calls.Add(1)
	if c.Err != nil {
		return common.Address{}, c.Err
	}
	if pool, ok := c.Pools[PairKey(tokenA, tokenB, stable)]; ok {
		return pool, nil
	}
	if pool, ok := c.Pools[PairKey(tokenB, tokenA, stable)]; ok {
		return pool, nil
	}
	return common.Address{}, nil
}

func (c *PoolClient) GetReserves(_ context.Context, pool common.Address) (*evm.Reserves, error) {
	c.Calls.Add(1)
	if c.Err != nil {
		return nil, c.Err
	}
	r, ok := c.Reserves[pool]
	if !ok {
		return nil, evm.ErrEmptyResult
	}
	return r, nil
}

func (c *PoolClient) Token0(_ context.Context, pool common.Address) (common.Address, error) {
	c.Calls.Add(1)
	if c.Err != nil {
		return common.Address{}, c.Err
	}
	toks, ok := c.Tokens[pool]
	if !ok {
		return common.Address{}, evm.ErrEmptyResult
	}
	return toks[0], nil
}

func (c *PoolClient) Token1(_ context.Context, pool common.Address) (common.Address, error) {
	c.Calls.Add(1)
	if c.Err != nil {
		return common.Address{}, c.Err
	}
	toks, ok := c.Tokens[pool]
	if !ok {
		return common.Address{}, evm.ErrEmptyResult
	}
	return toks[1], nil
}

func (c *PoolClient) QuoteAmountOut(_ context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	c.Calls.Add(1)
	if c.Err != nil {
		return nil, c.Err
	}
	q, ok := c.Quotes[QuoteKey(amountIn, tokenIn, tokenOut)]
	if !ok {
		return nil, evm.ErrQuoteUnsupported
	}
	return new(big.Int).Set(q), nil
}

// Compile-time interface check.
var _ evm.PoolClient = (*PoolClient)(nil)
