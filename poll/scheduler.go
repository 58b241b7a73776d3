package poll

import (
	"context"
	"log/slog"
	"sync"
)

// Scheduler runs one Poller per target, concurrently and independently,
// and blocks until all of them return — under normal operation that is
// when the context is cancelled.
type Scheduler struct {
	pollers []*Poller
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler over the given pollers.
func NewScheduler(logger *slog.Logger, pollers ...*Poller) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{pollers: pollers, logger: logger}
}

// Run starts every poller in its own goroutine and waits for all of them.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler: starting", "targets", len(s.pollers))

	var wg sync.WaitGroup
	for _, p := range s.pollers {
		wg.Add(1)
		go func(p *Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}
	wg.Wait()

	s.logger.Info("scheduler: all pollers stopped")
}

// Stats returns a point-in-time snapshot of every poller's counters.
func (s *Scheduler) Stats() []Stats {
	out := make([]Stats, 0, len(s.pollers))
	for _, p := range s.pollers {
		out = append(out, p.Stats())
	}
	return out
}
