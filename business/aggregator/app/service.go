package app

import (
	"github.com/fd1az/spreadget/business/aggregator/domain"
	"github.com/fd1az/spreadget/internal/watch"
)

// Service is the subscribe facade handed to the transport layer. It hides
// the engine behind the two operations subscribers need.
type Service struct {
	source *watch.Source[domain.Summary]
}

// NewService wraps the engine's broadcast.
func NewService(engine *Engine) *Service {
	return &Service{source: engine.Source()}
}

// BookSummary returns a fresh receiver over the summary stream. Each call
// is an independent subscriber: it observes the current summary on its
// first receive, then the latest value after each publish, coalescing
// anything it was too slow to see. Recv returns watch.ErrClosed once the
// engine has shut down. Dropping the receiver at any point is safe and
// free.
func (s *Service) BookSummary() *watch.Receiver[domain.Summary] {
	return s.source.Subscribe()
}

// Snapshot returns the most recently published summary.
func (s *Service) Snapshot() domain.Summary {
	summary, _ := s.source.Latest()
	return summary
}

// Closed reports whether the stream has ended.
func (s *Service) Closed() bool {
	return s.source.Closed()
}
