package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAnonymousLevel_Decode_QuotedStrings(t *testing.T) {
	var l AnonymousLevel
	if err := json.Unmarshal([]byte(`["0.07036500","13.0131"]`), &l); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !l.Price.Equal(decimal.RequireFromString("0.070365")) {
		t.Errorf("price = %s, want 0.070365", l.Price)
	}
	if !l.Amount.Equal(decimal.RequireFromString("13.0131")) {
		t.Errorf("amount = %s, want 13.0131", l.Amount)
	}
}

func TestAnonymousLevel_Decode_BareNumbers(t *testing.T) {
	var l AnonymousLevel
	if err := json.Unmarshal([]byte(`[0.07015, 0.05]`), &l); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !l.Price.Equal(decimal.RequireFromString("0.07015")) {
		t.Errorf("price = %s, want 0.07015", l.Price)
	}
}

func TestAnonymousLevel_Decode_MixedForms(t *testing.T) {
	var l AnonymousLevel
	if err := json.Unmarshal([]byte(`["0.071", 1]`), &l); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !l.Amount.Equal(decimal.NewFromInt(1)) {
		t.Errorf("amount = %s, want 1", l.Amount)
	}
}

func TestAnonymousLevel_Decode_WrongLength(t *testing.T) {
	cases := []string{
		`["0.07"]`,
		`["0.07","1.0","extra"]`,
		`[]`,
	}
	for _, c := range cases {
		var l AnonymousLevel
		if err := json.Unmarshal([]byte(c), &l); err == nil {
			t.Errorf("expected decode error for %s", c)
		}
	}
}

func TestAnonymousLevel_Decode_Invalid(t *testing.T) {
	cases := []string{
		`["abc","1.0"]`,
		`["0.07","xyz"]`,
		`["NaN","1.0"]`,
		`["Infinity","1.0"]`,
		`["-0.07","1.0"]`,
		`["0.07","-1.0"]`,
		`[{"p":1},"1.0"]`,
		`"not an array"`,
	}
	for _, c := range cases {
		var l AnonymousLevel
		if err := json.Unmarshal([]byte(c), &l); err == nil {
			t.Errorf("expected decode error for %s", c)
		}
	}
}

func TestAnonymousLevel_RoundTrip(t *testing.T) {
	in := []byte(`["0.07036500","13.0131"]`)

	var l AnonymousLevel
	if err := json.Unmarshal(in, &l); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	out, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var back AnonymousLevel
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}

	if !back.Price.Equal(l.Price) || !back.Amount.Equal(l.Amount) {
		t.Errorf("round trip changed values: %s/%s -> %s/%s", l.Price, l.Amount, back.Price, back.Amount)
	}

	// The float projection used on the subscriber wire must also survive.
	if back.Price.InexactFloat64() != l.Price.InexactFloat64() {
		t.Errorf("float projection changed: %v -> %v", l.Price.InexactFloat64(), back.Price.InexactFloat64())
	}
}

func TestSimpleOrderBook_Decode(t *testing.T) {
	payload := []byte(`{"bids":[["0.07036500","13.0131"],["0.07036400","1.0"]],"asks":[["0.07036600","6.7725"]]}`)

	var book SimpleOrderBook
	if err := json.Unmarshal(payload, &book); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(book.Bids) != 2 || len(book.Asks) != 1 {
		t.Fatalf("unexpected sides: %d bids, %d asks", len(book.Bids), len(book.Asks))
	}
	if !book.Asks[0].Price.Equal(decimal.RequireFromString("0.070366")) {
		t.Errorf("ask price = %s", book.Asks[0].Price)
	}
}

func TestSimpleOrderBook_Decode_EmptySides(t *testing.T) {
	var book SimpleOrderBook
	if err := json.Unmarshal([]byte(`{"bids":[],"asks":[]}`), &book); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(book.Bids) != 0 || len(book.Asks) != 0 {
		t.Errorf("expected empty sides")
	}
}

func TestSimpleOrderBook_Decode_BadLevelFails(t *testing.T) {
	var book SimpleOrderBook
	if err := json.Unmarshal([]byte(`{"bids":[["0.07"]],"asks":[]}`), &book); err == nil {
		t.Error("expected decode error for short level")
	}
}
