package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// pricePrecision is the number of fractional digits carried through price
// computation. Reserves hold up to 18 decimals on each leg, so anything
// below 18 loses information on deep pools.
const pricePrecision = 24

// reserveRatioPrice computes the constant-product spot price of the token
// in quote units: (reserveQuote / 10^quoteDecimals) / (reserveToken /
// 10^tokenDecimals). Arithmetic stays in decimal over the raw big.Int
// reserves; no float64 is involved.
func reserveRatioPrice(reserveToken, reserveQuote *big.Int, tokenDecimals, quoteDecimals int) (decimal.Decimal, error) {
	if reserveToken == nil || reserveToken.Sign() == 0 || reserveQuote == nil {
		return decimal.Decimal{}, errEmptyReserves
	}

	tokenAmt := decimal.NewFromBigInt(reserveToken, -int32(tokenDecimals))
	quoteAmt := decimal.NewFromBigInt(reserveQuote, -int32(quoteDecimals))
	return quoteAmt.DivRound(tokenAmt, pricePrecision), nil
}

// amountOutPrice converts a router quote for one whole token unit into a
// price in quote units.
func amountOutPrice(amountOut *big.Int, quoteDecimals int) (decimal.Decimal, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return decimal.Decimal{}, errEmptyReserves
	}
	return decimal.NewFromBigInt(amountOut, -int32(quoteDecimals)), nil
}

// unitAmount returns 10^decimals, one whole token in raw units.
func unitAmount(decimals int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
