// Package domain contains the merged-book types for the aggregator context.
package domain

import (
	"sort"

	"github.com/shopspring/decimal"

	marketdata "github.com/fd1az/spreadget/business/marketdata/domain"
)

// MaxDepth bounds each side of the merged summary regardless of how many
// exchanges contribute.
const MaxDepth = 10

// Level is a price level attributed to the exchange that quoted it.
// Produced only by the merge.
type Level struct {
	Exchange string          `json:"exchange"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
}

// Summary is the published merged state: the best bids and asks across all
// exchanges plus the spread between the top of each side.
type Summary struct {
	Spread decimal.Decimal `json:"spread"`
	Bids   []Level         `json:"bids"`
	Asks   []Level         `json:"asks"`
}

// Clone deep-copies the summary so readers can hold it while the engine
// keeps mutating its working state.
func (s Summary) Clone() Summary {
	out := Summary{Spread: s.Spread}
	if len(s.Bids) > 0 {
		out.Bids = append(make([]Level, 0, len(s.Bids)), s.Bids...)
	}
	if len(s.Asks) > 0 {
		out.Asks = append(make([]Level, 0, len(s.Asks)), s.Asks...)
	}
	return out
}

// Book is the engine's working state. A snapshot from exchange E replaces
// every level previously attributed to E; each side is then re-sorted and
// truncated to MaxDepth. Single-writer: only the engine touches a Book.
type Book struct {
	bids []Level
	asks []Level
}

// NewBook returns an empty merged book.
func NewBook() *Book {
	return &Book{}
}

// Apply merges one tagged snapshot and returns the resulting summary.
func (b *Book) Apply(u marketdata.Update) Summary {
	b.bids = replaceContribution(b.bids, u.Exchange, u.Book.Bids)
	b.asks = replaceContribution(b.asks, u.Exchange, u.Book.Asks)

	// Bids: highest price first. Asks: lowest price first. Ties on price go
	// to the larger quantity on both sides.
	sort.Slice(b.bids, func(i, j int) bool {
		if c := b.bids[i].Price.Cmp(b.bids[j].Price); c != 0 {
			return c > 0
		}
		return b.bids[i].Amount.Cmp(b.bids[j].Amount) > 0
	})
	sort.Slice(b.asks, func(i, j int) bool {
		if c := b.asks[i].Price.Cmp(b.asks[j].Price); c != 0 {
			return c < 0
		}
		return b.asks[i].Amount.Cmp(b.asks[j].Amount) > 0
	})

	// Spread before truncation; truncation never touches the top of either
	// side. Negative spreads (crossed books) are reported as-is.
	spread := decimal.Zero
	if len(b.bids) > 0 && len(b.asks) > 0 {
		spread = b.asks[0].Price.Sub(b.bids[0].Price)
	}

	if len(b.bids) > MaxDepth {
		b.bids = b.bids[:MaxDepth]
	}
	if len(b.asks) > MaxDepth {
		b.asks = b.asks[:MaxDepth]
	}

	return Summary{Spread: spread, Bids: b.bids, Asks: b.asks}.Clone()
}

// Summary returns the current merged state without applying anything.
func (b *Book) Summary() Summary {
	spread := decimal.Zero
	if len(b.bids) > 0 && len(b.asks) > 0 {
		spread = b.asks[0].Price.Sub(b.bids[0].Price)
	}
	return Summary{Spread: spread, Bids: b.bids, Asks: b.asks}.Clone()
}

// replaceContribution drops every level attributed to exchange and appends
// the fresh snapshot's levels tagged with it.
func replaceContribution(levels []Level, exchange string, fresh []marketdata.AnonymousLevel) []Level {
	kept := levels[:0]
	for _, lvl := range levels {
		if lvl.Exchange != exchange {
			kept = append(kept, lvl)
		}
	}
	for _, lvl := range fresh {
		kept = append(kept, Level{Exchange: exchange, Price: lvl.Price, Amount: lvl.Amount})
	}
	return kept
}
