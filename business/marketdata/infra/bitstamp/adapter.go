package bitstamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spreadget/business/marketdata/app"
	"github.com/fd1az/spreadget/business/marketdata/domain"
	"github.com/fd1az/spreadget/internal/apperror"
	"github.com/fd1az/spreadget/internal/logger"
	"github.com/fd1az/spreadget/internal/wsconn"
)

// Ensure Feed implements the port.
var _ app.Feed = (*Feed)(nil)

const (
	tracerName = "bitstamp"
	meterName  = "bitstamp"

	// ExchangeName tags every level this feed contributes.
	ExchangeName = "bitstamp"

	// BaseWSURL is the production websocket endpoint. Unlike Binance the URL
	// is fixed; the market is chosen by the subscribe frame.
	BaseWSURL = "wss://ws.bitstamp.net"
)

// Config holds configuration for the Bitstamp feed.
type Config struct {
	URL            string // WebSocket URL (empty = production)
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:            BaseWSURL,
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// feedMetrics holds OTEL metric instruments.
type feedMetrics struct {
	booksDecoded metric.Int64Counter
	decodeErrors metric.Int64Counter
}

// Feed streams order book events from Bitstamp.
type Feed struct {
	config Config
	logger logger.LoggerInterface

	tracer  trace.Tracer
	metrics *feedMetrics
}

// New creates a Bitstamp feed.
func New(cfg Config, log logger.LoggerInterface) (*Feed, error) {
	if cfg.URL == "" {
		cfg.URL = BaseWSURL
	}

	f := &Feed{
		config: cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}

	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return f, nil
}

func (f *Feed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &feedMetrics{}

	f.metrics.booksDecoded, err = meter.Int64Counter(
		"bitstamp_books_decoded_total",
		metric.WithDescription("Order book events decoded"),
	)
	if err != nil {
		return err
	}

	f.metrics.decodeErrors, err = meter.Int64Counter(
		"bitstamp_decode_errors_total",
		metric.WithDescription("Messages that failed to decode"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Name implements app.Feed.
func (f *Feed) Name() string { return ExchangeName }

// Run implements app.Feed.
func (f *Feed) Run(ctx context.Context, symbol string, out chan<- domain.Update) error {
	ctx, span := f.tracer.Start(ctx, "bitstamp.run",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("url", f.config.URL),
		),
	)
	defer span.End()

	wsCfg := wsconn.DefaultConfig(f.config.URL, ExchangeName)
	wsCfg.ConnectTimeout = f.config.ConnectTimeout
	wsCfg.WriteTimeout = f.config.WriteTimeout

	sess, err := wsconn.Dial(ctx, wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeFeedConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("bitstamp: "+f.config.URL))
	}
	defer sess.Close()

	if err := f.subscribe(ctx, sess, symbol); err != nil {
		return err
	}

	f.logger.Info(ctx, "bitstamp feed subscribed", "symbol", symbol)

	for {
		data, err := sess.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Supervisor shutdown, not a feed fault.
				return nil
			}
			if errors.Is(err, wsconn.ErrConnectionDropped) {
				return apperror.New(apperror.CodeFeedConnectionDropped,
					apperror.WithCause(err),
					apperror.WithContext("bitstamp"))
			}
			return apperror.New(apperror.CodeFeedConnectionFailed,
				apperror.WithCause(err),
				apperror.WithContext("bitstamp"))
		}

		var msg bookMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.metrics.decodeErrors.Add(ctx, 1)
			return apperror.New(apperror.CodeFeedDecodeFailed,
				apperror.WithCause(err),
				apperror.WithContext("bitstamp order book event"))
		}

		f.metrics.booksDecoded.Add(ctx, 1)

		select {
		case out <- domain.Update{Exchange: ExchangeName, Book: msg.Book()}:
		case <-ctx.Done():
			return nil
		}
	}
}

// subscribe performs the two-step channel registration. Anything other
// than a textual subscription_succeeded confirmation is terminal.
func (f *Feed) subscribe(ctx context.Context, sess *wsconn.Session, symbol string) error {
	req, err := newSubscribeRequest(symbol)
	if err != nil {
		return apperror.New(apperror.CodeInternalError, apperror.WithCause(err))
	}

	if err := sess.Send(ctx, req); err != nil {
		return apperror.New(apperror.CodeFeedConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("bitstamp subscribe"))
	}

	confirmation, err := sess.Read(ctx)
	if err != nil {
		return apperror.New(apperror.CodeFeedSubscribeRejected,
			apperror.WithCause(err),
			apperror.WithContext("bitstamp: no confirmation frame"))
	}

	if !strings.Contains(string(confirmation), subscriptionAck) {
		return apperror.New(apperror.CodeFeedSubscribeRejected,
			apperror.WithContext("bitstamp: "+string(confirmation)))
	}

	return nil
}
