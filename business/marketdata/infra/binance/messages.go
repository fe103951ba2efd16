// Package binance implements the Feed interface for the Binance partial
// book depth stream.
package binance

import (
	"strings"

	"github.com/fd1az/spreadget/business/marketdata/domain"
)

// depthSnapshot is a partial book depth message.
// Stream: <symbol>@depth20@100ms — every message carries the complete top
// 20 levels and fully replaces its predecessor.
type depthSnapshot struct {
	LastUpdateID int64                   `json:"lastUpdateId"` // monotone book id; not needed for full snapshots
	Bids         []domain.AnonymousLevel `json:"bids"`
	Asks         []domain.AnonymousLevel `json:"asks"`
}

// Book converts the snapshot into the normalized representation.
func (m depthSnapshot) Book() domain.SimpleOrderBook {
	return domain.SimpleOrderBook{Bids: m.Bids, Asks: m.Asks}
}

// streamURL builds the raw-stream endpoint for symbol. The symbol is used
// verbatim; Binance expects lowercase (e.g. "ethbtc") and callers supply
// it that way.
func streamURL(baseURL, symbol string) string {
	return strings.TrimRight(baseURL, "/") + "/ws/" + symbol + "@depth20@100ms"
}
