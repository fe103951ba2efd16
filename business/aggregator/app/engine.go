// Package app contains the aggregation engine and the subscribe facade for
// the aggregator context.
package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spreadget/business/aggregator/domain"
	marketdata "github.com/fd1az/spreadget/business/marketdata/domain"
	"github.com/fd1az/spreadget/internal/logger"
	"github.com/fd1az/spreadget/internal/watch"
)

const (
	tracerName = "github.com/fd1az/spreadget/business/aggregator/app"
	meterName  = "github.com/fd1az/spreadget/business/aggregator/app"
)

// engineMetrics holds OTEL metric instruments for the engine.
type engineMetrics struct {
	updatesMerged  metric.Int64Counter
	summariesSent  metric.Int64Counter
	mergeLatency   metric.Float64Histogram
	mergedBidDepth metric.Int64Gauge
	mergedAskDepth metric.Int64Gauge
}

// Engine is the single consumer of the feed update channel. It exclusively
// owns the merged book and publishes an immutable summary snapshot to the
// broadcast after every merge. It stops when the update channel closes,
// after draining whatever is still buffered.
type Engine struct {
	updates <-chan marketdata.Update
	book    *domain.Book
	source  *watch.Source[domain.Summary]
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *engineMetrics
}

// NewEngine creates an engine reading from updates. The broadcast is seeded
// with an empty summary so subscribers always have something to observe.
func NewEngine(updates <-chan marketdata.Update, log logger.LoggerInterface) (*Engine, error) {
	book := domain.NewBook()

	e := &Engine{
		updates: updates,
		book:    book,
		source:  watch.New(book.Summary()),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &engineMetrics{}

	e.metrics.updatesMerged, err = meter.Int64Counter(
		"aggregator_updates_merged_total",
		metric.WithDescription("Exchange snapshots merged into the summary"),
	)
	if err != nil {
		return err
	}

	e.metrics.summariesSent, err = meter.Int64Counter(
		"aggregator_summaries_published_total",
		metric.WithDescription("Summaries published to the broadcast"),
	)
	if err != nil {
		return err
	}

	e.metrics.mergeLatency, err = meter.Float64Histogram(
		"aggregator_merge_latency_ms",
		metric.WithDescription("Time to merge one snapshot and publish"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	e.metrics.mergedBidDepth, err = meter.Int64Gauge(
		"aggregator_merged_bid_depth",
		metric.WithDescription("Bid levels in the published summary"),
	)
	if err != nil {
		return err
	}

	e.metrics.mergedAskDepth, err = meter.Int64Gauge(
		"aggregator_merged_ask_depth",
		metric.WithDescription("Ask levels in the published summary"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Run consumes updates until the channel closes, then closes the broadcast
// so every subscriber observes end-of-stream. Call it from its own
// goroutine; ctx is used for instrumentation only, the shutdown signal is
// the channel closing.
func (e *Engine) Run(ctx context.Context) {
	defer e.source.Close()

	for upd := range e.updates {
		start := time.Now()

		summary := e.book.Apply(upd)
		e.source.Publish(summary)

		attrs := metric.WithAttributes(attribute.String("exchange", upd.Exchange))
		e.metrics.updatesMerged.Add(ctx, 1, attrs)
		e.metrics.summariesSent.Add(ctx, 1)
		e.metrics.mergeLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000.0)
		e.metrics.mergedBidDepth.Record(ctx, int64(len(summary.Bids)))
		e.metrics.mergedAskDepth.Record(ctx, int64(len(summary.Asks)))

		e.logger.Debug(ctx, "merged update",
			"exchange", upd.Exchange,
			"bids", len(summary.Bids),
			"asks", len(summary.Asks),
			"spread", summary.Spread.String(),
		)
	}

	e.logger.Info(ctx, "update channel closed, engine shutting down")
}

// Source exposes the broadcast for the facade.
func (e *Engine) Source() *watch.Source[domain.Summary] {
	return e.source
}
