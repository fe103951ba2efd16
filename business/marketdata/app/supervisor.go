package app

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/spreadget/business/marketdata/domain"
	"github.com/fd1az/spreadget/internal/apperror"
	"github.com/fd1az/spreadget/internal/logger"
)

const meterName = "github.com/fd1az/spreadget/business/marketdata/app"

// supervisorMetrics holds OTEL metric instruments.
type supervisorMetrics struct {
	feedsRunning  metric.Int64UpDownCounter
	feedFailures  metric.Int64Counter
	feedsCanceled metric.Int64Counter
}

// completion is one feed's terminal result.
type completion struct {
	name string
	err  error
}

// Supervisor runs a set of feeds and enforces the fail-fast guarantee: the
// first terminal feed failure cancels every sibling, and once all feeds
// have stopped the update channel is closed so the engine drains and
// shuts down. Reconnection is deliberately left to an external process
// supervisor.
type Supervisor struct {
	feeds   []Feed
	updates chan domain.Update
	logger  logger.LoggerInterface

	metrics *supervisorMetrics

	mu       sync.Mutex
	started  bool
	firstErr error
	done     chan struct{}
}

// NewSupervisor creates a supervisor over feeds, owning the update channel
// it will hand to the engine.
func NewSupervisor(feeds []Feed, log logger.LoggerInterface) (*Supervisor, error) {
	s := &Supervisor{
		feeds:   feeds,
		updates: make(chan domain.Update, UpdateChannelCapacity),
		logger:  log,
		done:    make(chan struct{}),
	}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Supervisor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &supervisorMetrics{}

	s.metrics.feedsRunning, err = meter.Int64UpDownCounter(
		"feeds_running",
		metric.WithDescription("Feeds currently running"),
	)
	if err != nil {
		return err
	}

	s.metrics.feedFailures, err = meter.Int64Counter(
		"feed_failures_total",
		metric.WithDescription("Terminal feed failures"),
	)
	if err != nil {
		return err
	}

	s.metrics.feedsCanceled, err = meter.Int64Counter(
		"feeds_canceled_total",
		metric.WithDescription("Feeds cancelled after a sibling failed"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Updates returns the channel feeds publish into. Closed once every feed
// has stopped.
func (s *Supervisor) Updates() <-chan domain.Update {
	return s.updates
}

// Start launches every feed. It returns immediately; use Wait for the
// outcome.
func (s *Supervisor) Start(ctx context.Context, symbol string) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	feedCtx, cancel := context.WithCancel(ctx)
	completions := make(chan completion, len(s.feeds))

	for _, feed := range s.feeds {
		s.metrics.feedsRunning.Add(ctx, 1, metric.WithAttributes(attribute.String("feed", feed.Name())))
		go func(f Feed) {
			s.logger.Info(feedCtx, "starting feed", "feed", f.Name(), "symbol", symbol)
			err := f.Run(feedCtx, symbol, s.updates)
			completions <- completion{name: f.Name(), err: err}
		}(feed)
	}

	go s.collect(ctx, cancel, completions)
}

// collect waits for every feed to complete, cancelling siblings on the
// first error.
func (s *Supervisor) collect(ctx context.Context, cancel context.CancelFunc, completions chan completion) {
	defer cancel()

	remaining := len(s.feeds)
	cancelled := false

	for remaining > 0 {
		c := <-completions
		remaining--
		s.metrics.feedsRunning.Add(ctx, -1, metric.WithAttributes(attribute.String("feed", c.name)))

		switch {
		case c.err == nil:
			// Clean completion: the feed saw shutdown; siblings continue.
			s.logger.Info(ctx, "feed completed", "feed", c.name)

		case cancelled:
			// Failure after the supervisor already pulled the plug.
			s.metrics.feedsCanceled.Add(ctx, 1, metric.WithAttributes(attribute.String("feed", c.name)))
			s.logger.Debug(ctx, "feed stopped by supervisor", "feed", c.name, "error", c.err)

		default:
			s.metrics.feedFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("feed", c.name)))
			s.logger.Error(ctx, "feed failed, cancelling siblings",
				"feed", c.name,
				"error", c.err,
				"cause_chain", causeChain(c.err),
			)
			s.mu.Lock()
			if s.firstErr == nil {
				s.firstErr = c.err
			}
			s.mu.Unlock()
			cancelled = true
			cancel()
		}
	}

	// All feeds stopped: close the channel so the engine drains and exits.
	close(s.updates)
	close(s.done)
}

// Wait blocks until every feed has stopped and returns the first terminal
// error, or nil if all feeds completed cleanly. Cancelling ctx does not
// make it return early; it still waits for the feeds to settle.
func (s *Supervisor) Wait(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
		// Shutdown requested from outside: the feeds share this context's
		// lineage, so they are already stopping; wait for them to settle.
		<-s.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// Healthy reports whether the feeds have been started, none has failed,
// and not all of them have stopped.
func (s *Supervisor) Healthy() bool {
	select {
	case <-s.done:
		return false
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && s.firstErr == nil
}

// causeChain renders an error's full cause chain for logging.
func causeChain(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.CauseChain()
	}
	return err.Error()
}
