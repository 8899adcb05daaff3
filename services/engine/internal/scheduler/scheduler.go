// Package scheduler runs the periodic weight tuning loop.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/tuner"
)

// tuneTimeout bounds a single tune pass.
const tuneTimeout = 60 * time.Second

// Scheduler drives the tuner on a fixed interval.
type Scheduler struct {
	tuner    *tuner.Tuner
	log      *logger.Logger
	interval time.Duration

	// Shutdown management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler that tunes every interval.
func New(t *tuner.Tuner, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tuner:    t,
		log:      log.WithComponent("scheduler"),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the tuning loop.
func (s *Scheduler) Start() {
	s.log.Info("starting tuning scheduler", "interval", s.interval.String())
	s.wg.Add(1)
	go s.loop()
}

// Stop shuts the loop down, interrupting any wait promptly. A tune pass
// already in flight is allowed to finish.
func (s *Scheduler) Stop() {
	s.log.Info("stopping scheduler")
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runTune()
		}
	}
}

// runTune executes one pass. Failures are logged and the loop keeps
// going; the next tick retries.
func (s *Scheduler) runTune() {
	ctx, cancel := context.WithTimeout(context.Background(), tuneTimeout)
	defer cancel()

	result, err := s.tuner.Tune(ctx)
	if err != nil {
		s.log.Error("tune pass failed", "error", err)
		return
	}
	s.log.Debug("tune pass finished",
		"samples", result.SamplesUsed,
		"changed", result.Changed,
	)
}
