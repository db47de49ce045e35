package domain

// FeedToken is a token descriptor returned by one of the discovery feed
// categories. Feed rows are ephemeral; lifecycle lives in TokenRecord.
type FeedToken struct {
	Chain    Chain
	Address  string
	Symbol   string
	Decimals int

	// Social signal fields. TwitterLink is the raw status URL, e.g.
	// https://x.com/handle/status/1234567890. TwitterHandle may be empty
	// when the feed only supplies the link.
	TwitterLink   string
	TwitterHandle string

	// Market metrics used by the external completed-token filter.
	MarketCapUSD  float64
	LiquidityUSD  float64
	VolumeUSD     float64
	HolderCount   int
	OpenTimestamp int64 // Unix seconds, pool open time as reported by the feed
}

// Record builds the TokenRecord skeleton for this descriptor. State is left
// at StateNone; the token store owns transitions.
func (t *FeedToken) Record(nowMs int64) *TokenRecord {
	return &TokenRecord{
		Chain:     t.Chain,
		Address:   t.Address,
		Symbol:    t.Symbol,
		Decimals:  t.Decimals,
		CreatedAt: nowMs,
	}
}
