// Package app contains the feed port and the supervisor for the market
// data context.
package app

import (
	"context"

	"github.com/fd1az/spreadget/business/marketdata/domain"
)

// UpdateChannelCapacity bounds the feed-to-engine channel so a slow engine
// backpressures the feeds instead of growing memory without limit.
const UpdateChannelCapacity = 16

// Feed is one exchange connection. Run dials the exchange, performs any
// subscription handshake, and pushes every decoded snapshot to out until
// the context is cancelled (clean shutdown, returns nil) or the connection
// fails (transport, handshake, decode, or clean EOF; returns the error).
// Feeds never reconnect; a terminal failure is the supervisor's problem.
type Feed interface {
	Name() string
	Run(ctx context.Context, symbol string, out chan<- domain.Update) error
}
