package ethereum

import "context"

// WSClient defines Ethereum WebSocket subscription interface.
type WSClient interface {
	// SubscribeNewHeads subscribes to new chain heads (eth_subscribe "newHeads").
	SubscribeNewHeads(ctx context.Context) (*HeadSubscription, error)

	// Close closes the WebSocket connection.
	Close() error
}

// Head is a newHeads notification.
type Head struct {
	Number    uint64
	Hash      string
	Timestamp uint64
}

// HeadSubscription delivers chain heads until Unsubscribe or client Close.
// Heads are dropped when the reader lags behind; only the latest height matters.
type HeadSubscription struct {
	C <-chan Head

	unsubscribe func()
}

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *HeadSubscription) Unsubscribe() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
