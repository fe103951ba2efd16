// Package wsconn provides a single-shot WebSocket session used by the
// exchange feeds. A session connects once and reads until it fails or the
// peer closes; there is no reconnection machinery because terminal feed
// failure is a whole-process failure handled by the supervisor.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/fd1az/spreadget/internal/wsconn"
	meterName  = "github.com/fd1az/spreadget/internal/wsconn"
)

// ErrConnectionDropped is returned by Read when the peer closes the
// websocket cleanly. A clean close is still a feed failure: the stream has
// ended and only a process restart brings it back.
var ErrConnectionDropped = errors.New("connection dropped by host")

// Config holds WebSocket session configuration.
type Config struct {
	URL            string
	Name           string // Identifier for metrics/tracing
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64 // Max message size in bytes (0 = keep the library's default limit)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url string, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 10 * 1024 * 1024, // 10MB
	}
}

// sessionMetrics holds OTEL metric instruments.
type sessionMetrics struct {
	framesReceived metric.Int64Counter
	framesSent     metric.Int64Counter
	bytesReceived  metric.Int64Counter
	readErrors     metric.Int64Counter
}

// Session is a connected websocket.
type Session struct {
	config  Config
	conn    *websocket.Conn
	tracer  trace.Tracer
	metrics *sessionMetrics
	attrs   metric.MeasurementOption
}

// Dial opens a websocket to cfg.URL. The connect attempt is bounded by
// cfg.ConnectTimeout and also ends if the caller's context is cancelled.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{
		config: cfg,
		tracer: otel.Tracer(tracerName),
		attrs:  metric.WithAttributes(attribute.String("ws.name", cfg.Name)),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "ws.dial",
		trace.WithAttributes(
			attribute.String("ws.url", cfg.URL),
			attribute.String("ws.name", cfg.Name),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	dialCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, cfg.URL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connection failed")
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	// Bound message size to prevent OOM from malicious/large frames
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	s.conn = conn
	span.SetStatus(codes.Ok, "connected")
	return s, nil
}

func (s *Session) initMetrics() error {
	meter := otel.Meter(meterName)

	var err error

	s.metrics = &sessionMetrics{}

	s.metrics.framesReceived, err = meter.Int64Counter(
		"ws_frames_received_total",
		metric.WithDescription("Total number of WebSocket data frames received"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	s.metrics.framesSent, err = meter.Int64Counter(
		"ws_frames_sent_total",
		metric.WithDescription("Total number of WebSocket frames sent"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	s.metrics.bytesReceived, err = meter.Int64Counter(
		"ws_bytes_received_total",
		metric.WithDescription("Total bytes received over WebSocket"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	s.metrics.readErrors, err = meter.Int64Counter(
		"ws_read_errors_total",
		metric.WithDescription("Total WebSocket read failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Read returns the payload of the next data frame. Ping/pong control
// traffic never surfaces here; the websocket library replies to pings
// internally. Binary frames are returned as-is and decoded by the caller
// as UTF-8 JSON. A clean close by the peer returns ErrConnectionDropped.
func (s *Session) Read(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.metrics.readErrors.Add(ctx, 1, s.attrs)
		if isCleanClose(err) {
			return nil, ErrConnectionDropped
		}
		return nil, fmt.Errorf("websocket read failed: %w", err)
	}

	s.metrics.framesReceived.Add(ctx, 1, s.attrs)
	s.metrics.bytesReceived.Add(ctx, int64(len(data)), s.attrs)
	return data, nil
}

// Send writes a text frame.
func (s *Session) Send(ctx context.Context, msg []byte) error {
	ctx, span := s.tracer.Start(ctx, "ws.message.send",
		trace.WithAttributes(
			attribute.String("ws.name", s.config.Name),
			attribute.Int("ws.message.size", len(msg)),
		),
	)
	defer span.End()

	writeCtx := ctx
	if s.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, s.config.WriteTimeout)
		defer cancel()
	}

	if err := s.conn.Write(writeCtx, websocket.MessageText, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return fmt.Errorf("websocket write failed: %w", err)
	}

	s.metrics.framesSent.Add(ctx, 1, s.attrs)
	span.SetStatus(codes.Ok, "sent")
	return nil
}

// Close closes the websocket with a normal closure status.
func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "session closing")
}

// isCleanClose reports whether err represents the peer ending the stream
// rather than a transport fault.
func isCleanClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, io.EOF)
}
