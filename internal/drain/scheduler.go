package drain

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/offpos/internal/trigger"
)

// Scheduler owns drain triggering. Triggers are edge events (start-up, a
// connectivity transition to online), never a timer.
//
// Thread-safety: Trigger may be called from any goroutine; Run must be
// called once.
type Scheduler struct {
	drainer *Drainer
	signal  *trigger.Signal
	logger  *slog.Logger

	mu   sync.Mutex
	last Report
	runs int
}

// NewScheduler creates a scheduler for d.
func NewScheduler(d *Drainer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{drainer: d, signal: trigger.New(), logger: logger}
}

// Trigger requests a drain. It never blocks; triggers that arrive while one
// is pending are absorbed. Returns false once the scheduler is stopped.
func (s *Scheduler) Trigger() bool {
	return s.signal.Notify()
}

// Stop makes Run return and disables Trigger.
func (s *Scheduler) Stop() {
	s.signal.Close()
}

// Run drains once per pending trigger until ctx is done or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-s.signal.C():
			if !ok {
				return nil
			}
			r, err := s.drainer.Drain(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("scheduled drain failed", "error", err)
			}
			s.mu.Lock()
			s.runs++
			if !r.Coalesced {
				s.last = r
			}
			s.mu.Unlock()
		}
	}
}

// Last returns the report of the most recent scheduled drain and how many
// scheduled drains have run.
func (s *Scheduler) Last() (Report, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.runs
}
