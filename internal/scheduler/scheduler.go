// Package scheduler drives refresh cycles on a fixed period with a
// single-flight guarantee: at most one cycle runs at a time, and a tick
// arriving while a cycle is still executing is dropped, not queued.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Cycle is one refresh invocation.
type Cycle func(context.Context) error

// Scheduler ticks for the process lifetime; cycle failures are caught,
// logged, and never stop the ticker.
type Scheduler struct {
	cycle    Cycle
	interval time.Duration
	timeout  time.Duration
	running  atomic.Bool
}

// New creates a scheduler running cycle every interval, each cycle bounded
// by timeout.
func New(cycle Cycle, interval, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		timeout:  timeout,
	}
}

// Run fires one cycle immediately, then ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts a cycle unless one is still in flight.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Warn().Msg("Previous cycle still running, tick dropped")
		return
	}

	go func() {
		defer s.running.Store(false)
		s.runCycle(ctx)
	}()
}

// runCycle executes one cycle under its deadline, containing both errors and
// panics at this boundary.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Refresh cycle panicked")
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.cycle(cctx); err != nil {
		log.Error().Err(err).Msg("Refresh cycle failed")
		return
	}

	log.Debug().Dur("duration", time.Since(start)).Msg("Refresh cycle complete")
}
