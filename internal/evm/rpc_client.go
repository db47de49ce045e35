package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// RPCClient implements PoolClient over HTTP JSON-RPC 2.0. It rotates
// round-robin through a pool of interchangeable endpoints; a failed or
// timed-out attempt moves to the next endpoint.
type RPCClient struct {
	endpoints   []string
	factory     common.Address
	router      common.Address
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	nextEp      atomic.Uint64
	requestID   atomic.Uint64
}

// ClientOption configures RPCClient.
type ClientOption func(*RPCClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts per call.
func WithMaxRetries(n int) ClientOption {
	return func(c *RPCClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// WithRouter sets the router contract used for direct quotes. Without it
// QuoteAmountOut returns ErrQuoteUnsupported.
func WithRouter(router common.Address) ClientOption {
	return func(c *RPCClient) {
		c.router = router
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

// NewRPCClient creates a PoolClient backed by the given endpoints and
// factory contract.
func NewRPCClient(endpoints []string, factory common.Address, opts ...ClientOption) (*RPCClient, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("at least one RPC endpoint required")
	}

	c := &RPCClient{
		endpoints:   endpoints,
		factory:     factory,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries, exponential backoff and
// endpoint rotation. Each attempt goes to the next endpoint in the pool.
func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return wrapCtxErr(ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		endpoint := c.endpoints[c.nextEp.Add(1)%uint64(len(c.endpoints))]

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return wrapCtxErr(ctx.Err())
			}
			lastErr = fmt.Errorf("endpoint %s: %w", endpoint, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("endpoint %s rate limited (429)", endpoint)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("endpoint %s status %d: %s", endpoint, resp.StatusCode, respBody)
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// Contract-level errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("all endpoints exhausted: %w", lastErr)
}

func wrapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return err
}

// ethCall executes a read-only contract call against the latest block.
func (c *RPCClient) ethCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	params := []interface{}{
		map[string]interface{}{
			"to":   to.Hex(),
			"data": hexutil.Encode(data),
		},
		"latest",
	}

	var result string
	if err := c.call(ctx, "eth_call", params, &result); err != nil {
		return nil, err
	}

	out, err := hexutil.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}

// GetPool resolves the factory's pool for a token pair. The zero address
// means no pool exists for that pair/stability combination.
func (c *RPCClient) GetPool(ctx context.Context, tokenA, tokenB common.Address, stable bool) (common.Address, error) {
	data := packCall(selGetPool, packAddress(tokenA), packAddress(tokenB), packBool(stable))
	out, err := c.ethCall(ctx, c.factory, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("getPool: %w", err)
	}
	return wordToAddress(out, 0)
}

// GetReserves retrieves (reserve0, reserve1, blockTimestampLast) for a pool.
func (c *RPCClient) GetReserves(ctx context.Context, pool common.Address) (*Reserves, error) {
	out, err := c.ethCall(ctx, pool, packCall(selGetReserves))
	if err != nil {
		return nil, fmt.Errorf("getReserves: %w", err)
	}

	r0, err := wordToBig(out, 0)
	if err != nil {
		return nil, err
	}
	r1, err := wordToBig(out, 1)
	if err != nil {
		return nil, err
	}
	ts, err := wordToBig(out, 2)
	if err != nil {
		return nil, err
	}

	return &Reserves{Reserve0: r0, Reserve1: r1, UpdatedAt: ts.Int64()}, nil
}

// Token0 returns the pool's first token address.
func (c *RPCClient) Token0(ctx context.Context, pool common.Address) (common.Address, error) {
	out, err := c.ethCall(ctx, pool, packCall(selToken0))
	if err != nil {
		return common.Address{}, fmt.Errorf("token0: %w", err)
	}
	return wordToAddress(out, 0)
}

// Token1 returns the pool's second token address.
func (c *RPCClient) Token1(ctx context.Context, pool common.Address) (common.Address, error) {
	out, err := c.ethCall(ctx, pool, packCall(selToken1))
	if err != nil {
		return common.Address{}, fmt.Errorf("token1: %w", err)
	}
	return wordToAddress(out, 0)
}

// QuoteAmountOut asks the router for a direct quote. The router picks the
// better of the stable and volatile pools for the pair.
func (c *RPCClient) QuoteAmountOut(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	if c.router == (common.Address{}) {
		return nil, ErrQuoteUnsupported
	}

	data := packCall(selGetAmountOut, packUint(amountIn), packAddress(tokenIn), packAddress(tokenOut))
	out, err := c.ethCall(ctx, c.router, data)
	if err != nil {
		return nil, fmt.Errorf("getAmountOut: %w", err)
	}
	return wordToBig(out, 0)
}

// Compile-time interface check.
var _ PoolClient = (*RPCClient)(nil)
