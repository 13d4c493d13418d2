package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs Manager.Sweep on a fixed interval until stopped. The
// cadence should be substantially shorter than the idle timeout so that
// eviction staleness is bounded by one interval. Tests that need a
// deterministic single sweep call Manager.Sweep directly instead.
type Sweeper struct {
	mgr      *Manager
	interval time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper for the given manager.
func NewSweeper(mgr *Manager, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{mgr: mgr, interval: interval, log: log}
}

// Start launches the background loop. It must be called at most once.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
	s.log.Info("session sweeper started", zap.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("session sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.mgr.Sweep(ctx); n > 0 {
				s.log.Info("sweep cycle finished", zap.Int("evicted", n))
			}
		}
	}
}
