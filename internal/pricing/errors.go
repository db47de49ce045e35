package pricing

import "errors"

var (
	// ErrPriceUnavailable is returned when every pricing strategy failed
	// and no cached value can be served. Callers skip the price update and
	// retry on the next poll cycle.
	ErrPriceUnavailable = errors.New("price unavailable")

	// errEmptyReserves guards division by a zero token reserve.
	errEmptyReserves = errors.New("pool has empty reserves")
)
