package signal

import "errors"

// ErrInvalidIdentifier is returned when a status identifier cannot be parsed
// as an unsigned 64-bit integer. Tokens carrying such identifiers are skipped,
// never fatal to a cycle.
var ErrInvalidIdentifier = errors.New("invalid status identifier")
