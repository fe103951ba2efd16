package wsapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"

	aggregatorApp "github.com/fd1az/spreadget/business/aggregator/app"
	marketdata "github.com/fd1az/spreadget/business/marketdata/domain"
	"github.com/fd1az/spreadget/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

// startStack wires updates -> engine -> service -> server on a random port.
func startStack(t *testing.T) (chan marketdata.Update, *Server) {
	t.Helper()

	updates := make(chan marketdata.Update, 16)
	engine, err := aggregatorApp.NewEngine(updates, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	go engine.Run(context.Background())

	server, err := NewServer(Config{
		Address:              "127.0.0.1:0",
		MaxSubscribersPerSec: 100,
	}, aggregatorApp.NewService(engine), testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()
		server.Stop(shutdownCtx)
	})

	return updates, server
}

func bookUpdate(t *testing.T, exchange, payload string) marketdata.Update {
	t.Helper()
	var book marketdata.SimpleOrderBook
	if err := json.Unmarshal([]byte(payload), &book); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return marketdata.Update{Exchange: exchange, Book: book}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) WireSummary {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var sum WireSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		t.Fatalf("frame is not a summary: %v", err)
	}
	return sum
}

func TestServer_StreamsSummaries(t *testing.T) {
	updates, server := startStack(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+BookSummaryPath, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The first frame is the seed summary.
	seed := readFrame(t, ctx, conn)
	if len(seed.Bids) != 0 || len(seed.Asks) != 0 || seed.Spread != 0 {
		t.Errorf("seed frame not empty: %+v", seed)
	}

	updates <- bookUpdate(t, "binance", `{"bids":[["0.07036500","13.0131"]],"asks":[["0.07036600","6.7725"]]}`)

	sum := readFrame(t, ctx, conn)
	if len(sum.Bids) != 1 || sum.Bids[0].Exchange != "binance" {
		t.Fatalf("unexpected frame: %+v", sum)
	}
	if sum.Bids[0].Price != 0.070365 {
		t.Errorf("price = %v", sum.Bids[0].Price)
	}

	close(updates)
}

func TestServer_EndOfStreamOnEngineShutdown(t *testing.T) {
	updates, server := startStack(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+BookSummaryPath, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	readFrame(t, ctx, conn) // seed

	close(updates) // feeds gone -> engine drains -> broadcast closes

	// The subscriber observes a clean end-of-stream, not an error status.
	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("expected normal closure, got %v", err)
			}
			return
		}
	}
}

func TestServer_SnapshotEndpoint(t *testing.T) {
	updates, server := startStack(t)

	updates <- bookUpdate(t, "bitstamp", `{"bids":[["0.07010000","6.0"]],"asks":[["0.07015000","0.05"]]}`)

	// Wait for the engine to merge before asking for the snapshot.
	deadline := time.Now().Add(2 * time.Second)
	var sum WireSummary
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + server.Addr() + SnapshotPath)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&sum)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(sum.Bids) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(sum.Bids) != 1 || sum.Bids[0].Exchange != "bitstamp" {
		t.Fatalf("snapshot = %+v", sum)
	}

	close(updates)
}

func TestServer_RateLimitsSubscribers(t *testing.T) {
	updates := make(chan marketdata.Update)
	engine, err := aggregatorApp.NewEngine(updates, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	go engine.Run(context.Background())
	defer close(updates)

	server, err := NewServer(Config{
		Address:              "127.0.0.1:0",
		MaxSubscribersPerSec: 1,
	}, aggregatorApp.NewService(engine), testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer server.Stop(ctx)

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+BookSummaryPath, nil)
	if err != nil {
		t.Fatalf("first subscriber rejected: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, resp, err := websocket.Dial(ctx, "ws://"+server.Addr()+BookSummaryPath, nil)
	if err == nil {
		t.Fatal("second immediate subscriber should have been rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 response, got %+v", resp)
	}
}

func TestToWire_ProjectsDecimals(t *testing.T) {
	updates := make(chan marketdata.Update, 1)
	engine, err := aggregatorApp.NewEngine(updates, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	svc := aggregatorApp.NewService(engine)

	updates <- bookUpdate(t, "binance", `{"bids":[["0.07036500","13.0131"]],"asks":[["0.07036600","6.7725"]]}`)
	close(updates)
	engine.Run(context.Background())

	wire := ToWire(svc.Snapshot())
	if wire.Spread != decimal.RequireFromString("0.000001").InexactFloat64() {
		t.Errorf("spread = %v", wire.Spread)
	}
	if wire.Bids[0].Amount != 13.0131 {
		t.Errorf("amount = %v", wire.Bids[0].Amount)
	}
}
