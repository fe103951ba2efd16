package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/spreadget/business/stream/infra/wsapi"
)

const (
	// The dashboard talks to its own process over loopback, so connect
	// attempts are short and bounded.
	clientConnectTimeout = 1 * time.Second
	clientMaxAttempts    = 5
	clientRetryDelay     = 1 * time.Second
)

// Client subscribes to the local summary stream and forwards every frame
// into the UI as messages.
type Client struct {
	address string
}

// NewClient creates a stream client for the given listen address. A
// wildcard host is rewritten to loopback since the dashboard always runs
// next to the server.
func NewClient(address string) *Client {
	if host, port, err := net.SplitHostPort(address); err == nil {
		if host == "" || host == "0.0.0.0" || host == "::" {
			address = net.JoinHostPort("127.0.0.1", port)
		}
	}
	return &Client{address: address}
}

// Run dials the stream with a handful of retries, then pumps summaries
// into the UI until the stream ends or ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	conn, err := c.dial(ctx)
	if err != nil {
		Send(ErrorMsg{Error: err})
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "dashboard closing")

	Send(ConnectedMsg{})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				Send(StreamEndedMsg{})
			} else if ctx.Err() == nil {
				Send(ErrorMsg{Error: err})
			}
			return
		}

		var summary wsapi.WireSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			Send(ErrorMsg{Error: fmt.Errorf("bad summary frame: %w", err)})
			return
		}

		Send(SummaryMsg{Summary: summary})
	}
}

// dial attempts the websocket connection up to clientMaxAttempts times at
// clientRetryDelay intervals, giving the in-process server time to bind.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	url := "ws://" + c.address + wsapi.BookSummaryPath

	var lastErr error
	for attempt := 1; attempt <= clientMaxAttempts; attempt++ {
		Send(ConnectingMsg{Attempt: attempt})

		dialCtx, cancel := context.WithTimeout(ctx, clientConnectTimeout)
		conn, _, err := websocket.Dial(dialCtx, url, nil)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if attempt < clientMaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(clientRetryDelay):
			}
		}
	}

	if lastErr == nil {
		lastErr = errors.New("stream endpoint unreachable")
	}
	return nil, fmt.Errorf("connecting to %s: %w", url, lastErr)
}
