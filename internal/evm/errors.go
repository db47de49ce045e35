package evm

import "errors"

var (
	// ErrUpstreamTimeout is returned when an RPC call exceeds its deadline.
	// Callers treat it as a signal to fall back to the next strategy.
	ErrUpstreamTimeout = errors.New("upstream call timed out")

	// ErrQuoteUnsupported is returned by QuoteAmountOut when no router
	// address is configured for the chain.
	ErrQuoteUnsupported = errors.New("router quote not supported")

	// ErrEmptyResult is returned when eth_call yields no data, typically a
	// call against a non-contract address.
	ErrEmptyResult = errors.New("empty call result")
)
