package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"token-radar/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
)

const solanaAddressLen = 32

// Client implements Source against the HTTP feed API.
type Client struct {
	baseURL    string
	chain      domain.Chain
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *log.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the logger for dropped-row reporting.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a feed client for one chain.
func NewClient(baseURL string, chain domain.Chain, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		chain:      chain,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Source = (*Client)(nil)

// tokenWire is one row of the feed response.
type tokenWire struct {
	Address       string  `json:"address"`
	Symbol        string  `json:"symbol"`
	Decimals      int     `json:"decimals"`
	TwitterLink   string  `json:"twitter_link,omitempty"`
	TwitterHandle string  `json:"twitter_handle,omitempty"`
	MarketCapUSD  float64 `json:"market_cap_usd"`
	LiquidityUSD  float64 `json:"liquidity_usd"`
	VolumeUSD     float64 `json:"volume_usd"`
	HolderCount   int     `json:"holder_count"`
	OpenTimestamp int64   `json:"open_timestamp"`
}

// tokenListResponse is the feed API envelope.
type tokenListResponse struct {
	Tokens []tokenWire `json:"tokens"`
}

// Fetch returns the current ranking for a category. Invalid rows are
// logged and dropped so one bad address never poisons a cycle.
func (c *Client) Fetch(ctx context.Context, category Category) ([]domain.FeedToken, error) {
	u := fmt.Sprintf("%s/tokens?%s", c.baseURL, url.Values{
		"category": {string(category)},
		"chain":    {string(c.chain)},
	}.Encode())

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", category, err)
	}

	var resp tokenListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s feed: %w", category, err)
	}

	tokens := make([]domain.FeedToken, 0, len(resp.Tokens))
	for _, w := range resp.Tokens {
		if !validAddress(c.chain, w.Address) {
			c.logger.Printf("[feed] dropping row with invalid address %q (chain=%s)", w.Address, c.chain)
			continue
		}
		tokens = append(tokens, domain.FeedToken{
			Chain:         c.chain,
			Address:       w.Address,
			Symbol:        w.Symbol,
			Decimals:      w.Decimals,
			TwitterLink:   w.TwitterLink,
			TwitterHandle: w.TwitterHandle,
			MarketCapUSD:  w.MarketCapUSD,
			LiquidityUSD:  w.LiquidityUSD,
			VolumeUSD:     w.VolumeUSD,
			HolderCount:   w.HolderCount,
			OpenTimestamp: w.OpenTimestamp,
		})
	}

	return tokens, nil
}

// get performs an HTTP GET with retries and linear-doubling backoff.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
			// Client errors will not improve on retry.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, lastErr
			}
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

// validAddress checks the chain-specific address encoding: 20-byte hex
// for EVM chains, 32-byte base58 for Solana.
func validAddress(chain domain.Chain, address string) bool {
	if address == "" {
		return false
	}
	if chain.IsEVM() {
		return common.IsHexAddress(address)
	}
	raw, err := base58.Decode(address)
	return err == nil && len(raw) == solanaAddressLen
}
