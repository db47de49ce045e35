package notify

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"token-radar/internal/domain"
)

// Notification is one outbound alert about a token transition.
type Notification struct {
	Kind     Kind
	Chain    domain.Chain
	Address  string
	Symbol   string
	Upgraded bool

	// PriceUSD is zero when pricing failed; pricing failures never block
	// a notification.
	PriceUSD decimal.Decimal

	// Signal is set for new_creation notifications that carried a
	// verified social link.
	Signal *domain.Signal

	SentAt int64 // Unix timestamp in milliseconds
}

// Sink delivers notifications. Implementations must be safe for
// concurrent use.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink writes notifications to a logger. It is the default sink when
// no external delivery channel is configured.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a LogSink. A nil logger falls back to the standard logger.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

var _ Sink = (*LogSink)(nil)

func (s *LogSink) Notify(_ context.Context, n Notification) error {
	if n.Upgraded {
		s.logger.Printf("[notify] %s %s/%s %s (upgraded) price=%s",
			n.Kind, n.Chain, n.Symbol, n.Address, n.PriceUSD.String())
		return nil
	}
	s.logger.Printf("[notify] %s %s/%s %s price=%s",
		n.Kind, n.Chain, n.Symbol, n.Address, n.PriceUSD.String())
	return nil
}
