package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	tracerName = "binance"
	meterName  = "binance"

	// ExchangeName tags every level this feed contributes.
	ExchangeName = "binance"

	// BaseWSURL is the production websocket endpoint.
	BaseWSURL = "wss://stream.binance.com:9443"
)

// Config holds configuration for the Binance feed.
type Config struct {
	BaseURL        string // WebSocket base URL (empty = production)
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        BaseWSURL,
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// feedMetrics holds OTEL metric instruments.
type feedMetrics struct {
	booksDecoded metric.Int64Counter
	decodeErrors metric.Int64Counter
}

// Feed streams depth snapshots from Binance. The raw /ws endpoint
// auto-subscribes from the URL, so there is no handshake.
type Feed struct {
	config Config
	logger logger.LoggerInterface

	tracer  trace.Tracer
	metrics *feedMetrics
}

// New creates a Binance feed.
func New(cfg Config, log logger.LoggerInterface) (*Feed, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseWSURL
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
		"binance_books_decoded_total",
		metric.WithDescription("Depth snapshots decoded"),
	)
	if err != nil {
		return err
	}

	f.metrics.decodeErrors, err = meter.Int64Counter(
		"binance_decode_errors_total",
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
	url := streamURL(f.config.BaseURL, symbol)

	ctx, span := f.tracer.Start(ctx, "binance.run",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("url", url),
		),
	)
	defer span.End()

	wsCfg := wsconn.DefaultConfig(url, ExchangeName)
	wsCfg.ConnectTimeout = f.config.ConnectTimeout
	wsCfg.WriteTimeout = f.config.WriteTimeout

	sess, err := wsconn.Dial(ctx, wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeFeedConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("binance: "+url))
	}
	defer sess.Close()

	f.logger.Info(ctx, "binance feed connected", "url", url, "symbol", symbol)

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
					apperror.WithContext("binance"))
			}
			return apperror.New(apperror.CodeFeedConnectionFailed,
				apperror.WithCause(err),
				apperror.WithContext("binance"))
		}

		var msg depthSnapshot
		if err := json.Unmarshal(data, &msg); err != nil {
			// The stream has desynced; reconnecting is an external decision.
			f.metrics.decodeErrors.Add(ctx, 1)
			return apperror.New(apperror.CodeFeedDecodeFailed,
				apperror.WithCause(err),
				apperror.WithContext("binance depth snapshot"))
		}

		f.metrics.booksDecoded.Add(ctx, 1)

		select {
		case out <- domain.Update{Exchange: ExchangeName, Book: msg.Book()}:
		case <-ctx.Done():
			return nil
		}
	}
}
