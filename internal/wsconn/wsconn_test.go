package wsconn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// mockWSServer creates a test WebSocket server driven by handler.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(conn)
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDial_Success(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, DefaultConfig(wsURL(server), "test"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sess.Close()
}

func TestDial_Failure(t *testing.T) {
	cfg := DefaultConfig("ws://localhost:59999", "test") // Nothing listens on this port
	cfg.ConnectTimeout = 2 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Dial(ctx, cfg); err == nil {
		t.Fatal("expected Dial to fail when nothing is listening")
	}
}

func TestSession_SendAndRead(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for {
			msgType, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, msgType, data); err != nil {
				return
			}
		}
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, DefaultConfig(wsURL(server), "test"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sess.Close()

	payload := []byte(`{"event":"bts:subscribe"}`)
	if err := sess.Send(ctx, payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	data, err := sess.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("expected %s, got %s", payload, data)
	}
}

func TestSession_Read_BinaryFrame(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		conn.Write(ctx, websocket.MessageBinary, []byte(`{"bids":[]}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, DefaultConfig(wsURL(server), "test"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sess.Close()

	data, err := sess.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != `{"bids":[]}` {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestSession_Read_PingIgnored(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Ping only returns once the pong is read, so keep a reader running.
		ctx := conn.CloseRead(context.Background())
		if err := conn.Ping(ctx); err != nil {
			return
		}
		conn.Write(ctx, websocket.MessageText, []byte(`{"after":"ping"}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, DefaultConfig(wsURL(server), "test"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sess.Close()

	// The ping never surfaces; the next Read returns the data frame.
	data, err := sess.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != `{"after":"ping"}` {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestSession_Read_CleanClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.Close(websocket.StatusNormalClosure, "bye")
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, DefaultConfig(wsURL(server), "test"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sess.Close()

	_, err = sess.Read(ctx)
	if !errors.Is(err, ErrConnectionDropped) {
		t.Fatalf("expected ErrConnectionDropped, got %v", err)
	}
}

func TestSession_Read_ContextCancelled(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Never send anything; hold the connection open.
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, DefaultConfig(wsURL(server), "test"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sess.Close()

	readCtx, readCancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(50 * time.Millisecond)
		readCancel()
	}()

	_, err = sess.Read(readCtx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
