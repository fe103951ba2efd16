// Package bitstamp implements the Feed interface for the Bitstamp live
// order book channel.
//
// Bitstamp uses a two-step protocol: connect to the general-purpose
// endpoint, then register for the order_book_{symbol} channel. The server
// acknowledges with a bts:subscription_succeeded event before the data
// frames start.
package bitstamp

import (
	"encoding/json"

	"github.com/fd1az/spreadget/business/marketdata/domain"
)

// subscriptionAck is the substring the confirmation frame must carry.
const subscriptionAck = "bts:subscription_succeeded"

// subscribeRequest is the channel registration frame.
type subscribeRequest struct {
	Event string        `json:"event"`
	Data  subscribeData `json:"data"`
}

type subscribeData struct {
	Channel string `json:"channel"`
}

// newSubscribeRequest builds the registration frame for symbol. The symbol
// is used verbatim; Bitstamp expects lowercase (e.g. "ethbtc").
func newSubscribeRequest(symbol string) ([]byte, error) {
	return json.Marshal(subscribeRequest{
		Event: "bts:subscribe",
		Data:  subscribeData{Channel: "order_book_" + symbol},
	})
}

// bookMessage is a live order book event.
type bookMessage struct {
	Event   string   `json:"event"`
	Channel string   `json:"channel"`
	Data    bookData `json:"data"`
}

type bookData struct {
	Timestamp      string                  `json:"timestamp"`
	Microtimestamp string                  `json:"microtimestamp"`
	Bids           []domain.AnonymousLevel `json:"bids"`
	Asks           []domain.AnonymousLevel `json:"asks"`
}

// Book converts the event into the normalized representation.
func (m bookMessage) Book() domain.SimpleOrderBook {
	return domain.SimpleOrderBook{Bids: m.Data.Bids, Asks: m.Data.Asks}
}
