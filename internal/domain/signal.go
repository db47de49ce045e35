package domain

// Signal is the decoded social signal attached to a feed token.
// Computed per classification call; never persisted.
type Signal struct {
	Handle      string
	StatusID    string
	TimestampMs int64 // creation time decoded from the status identifier
	AgeSeconds  int64 // age at classification time, clamped at zero
}
