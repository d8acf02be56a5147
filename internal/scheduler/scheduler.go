// Package scheduler drives the periodic leaderboard and benchmark
// rebuilds (C10). No cron library is wired in; a single two-cadence
// ticker loop is simple enough that reaching for one would add a
// dependency to learn an API for, not to solve a problem.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agusmdev/burntop/internal/benchmark"
	"github.com/agusmdev/burntop/internal/leaderboard"
)

var periods = []leaderboard.Period{leaderboard.PeriodAll, leaderboard.PeriodMonth, leaderboard.PeriodWeek}

// Scheduler runs the leaderboard builder every tick and the benchmark
// builder once per hour, each guarded against overlapping runs so a
// slow pass coalesces into the next tick instead of stacking up.
type Scheduler struct {
	leaderboards *leaderboard.Builder
	benchmarks   *benchmark.Builder
	logger       *slog.Logger

	leaderboardInterval time.Duration
	benchmarkInterval   time.Duration

	mu      sync.Mutex
	running bool

	stop chan struct{}
	done chan struct{}
}

func New(leaderboards *leaderboard.Builder, benchmarks *benchmark.Builder, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		leaderboards:        leaderboards,
		benchmarks:          benchmarks,
		logger:              logger,
		leaderboardInterval: time.Minute,
		benchmarkInterval:   time.Hour,
		stop:                make(chan struct{}),
		done:                make(chan struct{}),
	}
}

// Start runs the scheduler loop until Stop is called or ctx is
// cancelled. It blocks, so callers run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	leaderboardTicker := time.NewTicker(s.leaderboardInterval)
	defer leaderboardTicker.Stop()
	benchmarkTicker := time.NewTicker(s.benchmarkInterval)
	defer benchmarkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-leaderboardTicker.C:
			s.runLeaderboards(ctx)
		case <-benchmarkTicker.C:
			s.runBenchmarks(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for it to return.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) runLeaderboards(ctx context.Context) {
	if !s.tryLock() {
		s.logger.Warn("skipping leaderboard run, previous run still in progress")
		return
	}
	defer s.unlock()

	for _, period := range periods {
		if _, err := s.leaderboards.Run(ctx, period); err != nil {
			s.logger.Error("leaderboard run failed", "period", period, "error", err)
		}
	}
}

func (s *Scheduler) runBenchmarks(ctx context.Context) {
	if !s.tryLock() {
		s.logger.Warn("skipping benchmark run, previous run still in progress")
		return
	}
	defer s.unlock()

	for _, period := range periods {
		if _, err := s.benchmarks.Run(ctx, period); err != nil {
			s.logger.Error("benchmark run failed", "period", period, "error", err)
		}
	}
}

func (s *Scheduler) tryLock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) unlock() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
