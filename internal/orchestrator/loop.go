package orchestrator

import (
	"context"
	"time"
)

// Run ticks immediately and then once per interval until ctx is cancelled. Cancellation is only
// observed between ticks; a tick in flight finishes on a detached context.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("presence loop already running")
		return
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("presence loop started", "interval", interval)

	tickCtx := context.WithoutCancel(ctx)
	s.Tick(tickCtx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("presence loop stopped", "ticks", s.tickCount.Load())
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			s.Tick(tickCtx)
		}
	}
}
