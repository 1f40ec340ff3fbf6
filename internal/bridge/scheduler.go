package bridge

import (
	"time"

	"go.uber.org/zap"

	"stovebridge/internal/clock"
)

// Scheduler drives the bridge's poll loop on a fixed interval. Polls run in
// a single goroutine, so devices are refreshed one at a time.
type Scheduler struct {
	bridge   *Bridge
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler for the bridge. Start begins polling.
func NewScheduler(b *Bridge, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		bridge:   b,
		clock:    clk,
		interval: interval,
		logger:   logger.Named("scheduler"),
	}
}

// Start launches the poll loop in a background goroutine.
func (s *Scheduler) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	s.logger.Info("Starting poll loop", zap.Duration("interval", s.interval))
	go s.run()
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.bridge.RefreshAll()
		case <-s.stop:
			return
		}
	}
}

// Stop halts the poll loop and waits for an in-flight refresh to finish.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.logger.Info("Poll loop stopped")
}
