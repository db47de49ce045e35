package domain

import "strings"

// Chain identifies the network a token lives on.
type Chain string

const (
	ChainBase   Chain = "base"
	ChainSolana Chain = "sol"
)

// IsEVM reports whether addresses on this chain are hex-encoded EVM addresses.
func (c Chain) IsEVM() bool {
	return c != ChainSolana
}

// SourceState tracks which discovery feeds a token has been seen in.
// Transitions are monotonic: None -> NewCreation -> Completed, or None -> Completed.
type SourceState int

const (
	StateNone SourceState = iota
	StateNewCreation
	StateCompleted
)

// String returns the storage representation of the state.
func (s SourceState) String() string {
	switch s {
	case StateNewCreation:
		return "new_creation"
	case StateCompleted:
		return "completed"
	default:
		return "none"
	}
}

// ParseSourceState converts a storage representation back to a SourceState.
// Unknown values map to StateNone.
func ParseSourceState(s string) SourceState {
	switch s {
	case "new_creation":
		return StateNewCreation
	case "completed":
		return StateCompleted
	default:
		return StateNone
	}
}

// PoolRef is cached liquidity pool metadata for a token, saved after a
// successful price discovery so later lookups skip the discovery search.
type PoolRef struct {
	Address   string // pool contract address
	Protocol  string // e.g. "aerodrome", "uniswap"
	Version   string // e.g. "v2"
	Stable    bool   // stable-curve pool vs constant-product
	PairToken string // address of the quote-side token in the pool
}

// TokenRecord is the lifecycle record for a discovered token.
// Keyed by (Chain, Address); owned by the token store.
type TokenRecord struct {
	Chain      Chain
	Address    string
	Symbol     string
	Decimals   int
	CachedPool *PoolRef
	State      SourceState
	CreatedAt  int64 // Unix timestamp in milliseconds
}

// TokenKey builds the identity key for a token. Addresses are compared
// case-insensitively on EVM chains, so the key is lowercased there.
func TokenKey(chain Chain, address string) string {
	if chain.IsEVM() {
		address = strings.ToLower(address)
	}
	return string(chain) + ":" + address
}
