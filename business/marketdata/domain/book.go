// Package domain contains the normalized wire types shared by all
// exchange feeds.
package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// AnonymousLevel is a single price level as emitted by an exchange, before
// it is attributed to that exchange. Immutable once decoded.
type AnonymousLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// UnmarshalJSON decodes the wire form of a level: a two-element array whose
// elements are numeric literals or strings containing decimal literals.
// Exchanges quote numbers inconsistently, so both forms are accepted.
// Any other shape is a decode error.
func (l *AnonymousLevel) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("level is not an array: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("level must be [price, amount], got %d elements", len(raw))
	}

	price, err := decodeWireDecimal(raw[0])
	if err != nil {
		return fmt.Errorf("level price: %w", err)
	}
	amount, err := decodeWireDecimal(raw[1])
	if err != nil {
		return fmt.Errorf("level amount: %w", err)
	}

	if price.IsNegative() {
		return fmt.Errorf("level price %s is negative", price)
	}
	if amount.IsNegative() {
		return fmt.Errorf("level amount %s is negative", amount)
	}

	l.Price = price
	l.Amount = amount
	return nil
}

// MarshalJSON re-encodes the level in the quoted form most exchanges use.
func (l AnonymousLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price.String(), l.Amount.String()})
}

// decodeWireDecimal parses one element of a wire level. Strings are
// unwrapped first; everything must parse as a finite decimal
// (decimal.NewFromString rejects NaN and infinities).
func decodeWireDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	return decimal.NewFromString(string(raw))
}

// SimpleOrderBook is one exchange's complete snapshot, sides in the order
// they arrived. The aggregation engine does not assume the feed pre-sorted
// them.
type SimpleOrderBook struct {
	Bids []AnonymousLevel `json:"bids"`
	Asks []AnonymousLevel `json:"asks"`
}

// Update is a snapshot tagged with the exchange that produced it, as sent
// on the feed-to-engine channel.
type Update struct {
	Exchange string
	Book     SimpleOrderBook
}
