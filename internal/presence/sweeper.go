package presence

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drives the periodic decay pass. The host owns its lifecycle via
// the context passed to Run; cancelling the context stops the loop.
type Sweeper struct {
	tracker  *Tracker
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(tracker *Tracker, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{tracker: tracker, interval: interval, log: log}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.tracker.Sweep(now); n > 0 {
				s.log.Debug("presence sweep", "transitions", n)
			}
		}
	}
}
