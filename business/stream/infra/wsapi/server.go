// Package wsapi serves the merged summary stream to subscribers over
// websocket JSON frames, plus a point-in-time snapshot endpoint. The core
// only knows the subscribe facade; this package is the wire transport
// bolted onto that seam.
package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spreadget/business/aggregator/app"
	"github.com/fd1az/spreadget/business/aggregator/domain"
	"github.com/fd1az/spreadget/internal/apperror"
	"github.com/fd1az/spreadget/internal/logger"
	"github.com/fd1az/spreadget/internal/ratelimit"
	"github.com/fd1az/spreadget/internal/watch"
)

const (
	tracerName = "github.com/fd1az/spreadget/business/stream/infra/wsapi"
	meterName  = "github.com/fd1az/spreadget/business/stream/infra/wsapi"

	// BookSummaryPath streams summaries; SnapshotPath returns the current one.
	BookSummaryPath = "/v1/book-summary"
	SnapshotPath    = "/v1/summary"

	writeTimeout = 10 * time.Second
)

// Config holds the server configuration.
type Config struct {
	Address              string
	MaxSubscribersPerSec int
}

// WireLevel is the subscriber wire shape of a level. Prices travel as
// doubles on this edge, matching what dashboard clients consume.
type WireLevel struct {
	Exchange string  `json:"exchange"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
}

// WireSummary is the subscriber wire shape of a summary.
type WireSummary struct {
	Spread float64     `json:"spread"`
	Bids   []WireLevel `json:"bids"`
	Asks   []WireLevel `json:"asks"`
}

// ToWire projects a summary onto the wire shape.
func ToWire(s domain.Summary) WireSummary {
	out := WireSummary{
		Spread: s.Spread.InexactFloat64(),
		Bids:   make([]WireLevel, 0, len(s.Bids)),
		Asks:   make([]WireLevel, 0, len(s.Asks)),
	}
	for _, lvl := range s.Bids {
		out.Bids = append(out.Bids, WireLevel{Exchange: lvl.Exchange, Price: lvl.Price.InexactFloat64(), Amount: lvl.Amount.InexactFloat64()})
	}
	for _, lvl := range s.Asks {
		out.Asks = append(out.Asks, WireLevel{Exchange: lvl.Exchange, Price: lvl.Price.InexactFloat64(), Amount: lvl.Amount.InexactFloat64()})
	}
	return out
}

// serverMetrics holds OTEL metric instruments.
type serverMetrics struct {
	subscribers     metric.Int64UpDownCounter
	summariesSent   metric.Int64Counter
	acceptsRejected metric.Int64Counter
}

// Server streams summaries to any number of concurrent subscribers.
type Server struct {
	config  Config
	service *app.Service
	logger  logger.LoggerInterface
	limiter *ratelimit.Limiter

	httpServer *http.Server
	listener   net.Listener

	tracer  trace.Tracer
	metrics *serverMetrics
}

// NewServer creates a stream server over the subscribe facade.
func NewServer(cfg Config, svc *app.Service, log logger.LoggerInterface) (*Server, error) {
	s := &Server{
		config:  cfg,
		service: svc,
		logger:  log,
		limiter: ratelimit.New(cfg.MaxSubscribersPerSec),
		tracer:  otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

func (s *Server) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serverMetrics{}

	s.metrics.subscribers, err = meter.Int64UpDownCounter(
		"stream_subscribers",
		metric.WithDescription("Active summary subscribers"),
	)
	if err != nil {
		return err
	}

	s.metrics.summariesSent, err = meter.Int64Counter(
		"stream_summaries_sent_total",
		metric.WithDescription("Summary frames written to subscribers"),
	)
	if err != nil {
		return err
	}

	s.metrics.acceptsRejected, err = meter.Int64Counter(
		"stream_accepts_rejected_total",
		metric.WithDescription("Subscriber connections rejected by rate limiting"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return apperror.New(apperror.CodeStreamListenFailed,
			apperror.WithCause(err),
			apperror.WithContext(s.config.Address))
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(BookSummaryPath, s.handleBookSummary)
	mux.HandleFunc(SnapshotPath, s.handleSnapshot)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "stream server stopped", "error", err)
		}
	}()

	s.logger.Info(ctx, "stream server listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the bound address, useful when the configured port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Address
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down. Upgraded subscriber connections are
// hijacked and are not closed by it; each ends when the summary stream
// closes or its subscriber leaves.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleBookSummary upgrades the connection and streams summaries until
// the engine shuts down or the subscriber leaves. Subscriber errors stay
// local: they are logged at debug and never reach the engine.
func (s *Server) handleBookSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.limiter.Allow() {
		s.metrics.acceptsRejected.Add(ctx, 1)
		http.Error(w, "too many subscription attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug(ctx, "subscriber accept failed", "error", err)
		return
	}

	// The server only writes; CloseRead keeps control frames serviced and
	// cancels the context when the subscriber hangs up.
	ctx = conn.CloseRead(ctx)

	ctx, span := s.tracer.Start(ctx, "stream.book_summary",
		trace.WithAttributes(attribute.String("remote", r.RemoteAddr)),
	)
	defer span.End()

	s.metrics.subscribers.Add(ctx, 1)
	defer s.metrics.subscribers.Add(ctx, -1)

	s.logger.Debug(ctx, "subscriber attached", "remote", r.RemoteAddr)

	rx := s.service.BookSummary()
	for {
		summary, err := rx.Recv(ctx)
		if errors.Is(err, watch.ErrClosed) {
			// Engine shutdown: subscribers observe end-of-stream, not an error.
			conn.Close(websocket.StatusNormalClosure, "stream complete")
			return
		}
		if err != nil {
			// Subscriber went away; purely local.
			s.logger.Debug(ctx, "subscriber detached", "remote", r.RemoteAddr, "error", err)
			conn.Close(websocket.StatusGoingAway, "subscriber gone")
			return
		}

		if err := s.writeSummary(ctx, conn, summary); err != nil {
			s.logger.Debug(ctx, "subscriber write failed", "remote", r.RemoteAddr, "error", err)
			conn.Close(websocket.StatusGoingAway, "write failed")
			return
		}
		s.metrics.summariesSent.Add(ctx, 1)
	}
}

func (s *Server) writeSummary(ctx context.Context, conn *websocket.Conn, summary domain.Summary) error {
	payload, err := json.Marshal(ToWire(summary))
	if err != nil {
		return apperror.New(apperror.CodeStreamSendError, apperror.WithCause(err))
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}

// handleSnapshot returns the current summary as plain JSON.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToWire(s.service.Snapshot()))
}
