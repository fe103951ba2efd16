package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spreadget/business/aggregator/domain"
	marketdata "github.com/fd1az/spreadget/business/marketdata/domain"
	"github.com/fd1az/spreadget/internal/logger"
	"github.com/fd1az/spreadget/internal/watch"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func update(t *testing.T, exchange, payload string) marketdata.Update {
	t.Helper()
	var book marketdata.SimpleOrderBook
	if err := json.Unmarshal([]byte(payload), &book); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return marketdata.Update{Exchange: exchange, Book: book}
}

func startEngine(t *testing.T) (chan marketdata.Update, *Service) {
	t.Helper()
	updates := make(chan marketdata.Update, 16)
	engine, err := NewEngine(updates, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	go engine.Run(context.Background())
	return updates, NewService(engine)
}

func TestEngine_PublishesMergedSummaries(t *testing.T) {
	updates, svc := startEngine(t)

	rx := svc.BookSummary()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// First observation is the empty seed summary.
	first, err := rx.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(first.Bids) != 0 || len(first.Asks) != 0 || !first.Spread.IsZero() {
		t.Errorf("seed summary not empty: %+v", first)
	}

	updates <- update(t, "binance", `{"bids":[["0.07036500","13.0131"]],"asks":[["0.07036600","6.7725"]]}`)

	sum, err := rx.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !sum.Spread.Equal(decimal.RequireFromString("0.000001")) {
		t.Errorf("spread = %s", sum.Spread)
	}
	if len(sum.Bids) != 1 || sum.Bids[0].Exchange != "binance" {
		t.Errorf("bids = %+v", sum.Bids)
	}

	// Ordering within one exchange: the next update supersedes the first.
	updates <- update(t, "binance", `{"bids":[["0.07100","1.0"]],"asks":[["0.07200","1.0"]]}`)

	sum, err = rx.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(sum.Bids) != 1 || !sum.Bids[0].Price.Equal(decimal.RequireFromString("0.071")) {
		t.Errorf("supersession failed: %+v", sum.Bids)
	}

	close(updates)
}

func TestEngine_ShutdownDrainsThenClosesStream(t *testing.T) {
	updates := make(chan marketdata.Update, 16)
	engine, err := NewEngine(updates, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	svc := NewService(engine)

	// Buffer updates before the engine starts, then close: everything must
	// still be processed before end-of-stream.
	updates <- update(t, "binance", `{"bids":[["0.07","1.0"]],"asks":[["0.08","1.0"]]}`)
	updates <- update(t, "bitstamp", `{"bids":[["0.06","2.0"]],"asks":[["0.09","2.0"]]}`)
	close(updates)

	go engine.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rx := svc.BookSummary()

	var last domain.Summary
	for {
		sum, err := rx.Recv(ctx)
		if errors.Is(err, watch.ErrClosed) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		last = sum
	}

	// The final observation reflects both drained updates.
	if len(last.Bids) != 2 || len(last.Asks) != 2 {
		t.Fatalf("drained summary incomplete: %+v", last)
	}
}

func TestEngine_LateSubscriberSeesCurrentState(t *testing.T) {
	updates, svc := startEngine(t)

	updates <- update(t, "binance", `{"bids":[["0.07","1.0"]],"asks":[["0.08","1.0"]]}`)

	// Wait for the engine to absorb the update.
	waitFor(t, func() bool { return len(svc.Snapshot().Bids) == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rx := svc.BookSummary()
	sum, err := rx.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if len(sum.Bids) != 1 {
		t.Errorf("late subscriber got %+v", sum)
	}

	close(updates)
}

func TestEngine_SlowSubscriberCoalesces(t *testing.T) {
	updates, svc := startEngine(t)

	rx := svc.BookSummary()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const published = 100
	go func() {
		price := decimal.RequireFromString("0.07")
		step := decimal.New(1, -6)
		for i := 0; i < published; i++ {
			book := marketdata.SimpleOrderBook{
				Bids: []marketdata.AnonymousLevel{{Price: price, Amount: decimal.NewFromInt(1)}},
				Asks: []marketdata.AnonymousLevel{{Price: price.Add(step), Amount: decimal.NewFromInt(1)}},
			}
			updates <- marketdata.Update{Exchange: "binance", Book: book}
			price = price.Add(step)
		}
		close(updates)
	}()

	observed := 0
	var last domain.Summary
	for {
		sum, err := rx.Recv(ctx)
		if errors.Is(err, watch.ErrClosed) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		observed++
		last = sum
		time.Sleep(10 * time.Millisecond) // deliberately slow consumer
	}

	// Includes the seed summary, so at most published+1 observations.
	if observed < 1 || observed > published+1 {
		t.Fatalf("observed %d summaries, want between 1 and %d", observed, published+1)
	}

	// Final observation must equal the engine's final state.
	finalBid := decimal.RequireFromString("0.07").Add(decimal.New(published-1, -6))
	if len(last.Bids) != 1 || !last.Bids[0].Price.Equal(finalBid) {
		t.Fatalf("final observation %+v, want bid at %s", last.Bids, finalBid)
	}
}

func TestEngine_SummaryInvariantsUnderLoad(t *testing.T) {
	updates, svc := startEngine(t)

	rx := svc.BookSummary()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		payloads := []struct{ exchange, body string }{
			{"binance", `{"bids":[["0.07","1"],["0.069","2"],["0.068","3"],["0.067","4"],["0.066","5"],["0.065","6"],["0.064","7"],["0.063","8"],["0.062","9"],["0.061","10"],["0.060","11"],["0.059","12"]],"asks":[["0.071","1"],["0.072","2"],["0.073","3"],["0.074","4"],["0.075","5"],["0.076","6"],["0.077","7"],["0.078","8"],["0.079","9"],["0.080","10"],["0.081","11"],["0.082","12"]]}`},
			{"bitstamp", `{"bids":[["0.0705","1"],["0.0695","2"],["0.0685","3"]],"asks":[["0.0715","1"],["0.0725","2"]]}`},
			{"binance", `{"bids":[["0.068","5"]],"asks":[["0.0716","5"]]}`},
			{"bitstamp", `{"bids":[],"asks":[]}`},
		}
		for _, p := range payloads {
			updates <- update(t, p.exchange, p.body)
		}
		close(updates)
	}()

	for {
		sum, err := rx.Recv(ctx)
		if errors.Is(err, watch.ErrClosed) {
			return
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}

		if len(sum.Bids) > domain.MaxDepth || len(sum.Asks) > domain.MaxDepth {
			t.Fatalf("depth bound violated: %d/%d", len(sum.Bids), len(sum.Asks))
		}
		for i := 1; i < len(sum.Bids); i++ {
			if sum.Bids[i].Price.GreaterThan(sum.Bids[i-1].Price) {
				t.Fatalf("bids not non-increasing: %+v", sum.Bids)
			}
		}
		for i := 1; i < len(sum.Asks); i++ {
			if sum.Asks[i].Price.LessThan(sum.Asks[i-1].Price) {
				t.Fatalf("asks not non-decreasing: %+v", sum.Asks)
			}
		}
		if len(sum.Bids) > 0 && len(sum.Asks) > 0 {
			want := sum.Asks[0].Price.Sub(sum.Bids[0].Price)
			if !sum.Spread.Equal(want) {
				t.Fatalf("spread %s != asks[0]-bids[0] %s", sum.Spread, want)
			}
		} else if !sum.Spread.IsZero() {
			t.Fatalf("spread must be zero with an empty side, got %s", sum.Spread)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
