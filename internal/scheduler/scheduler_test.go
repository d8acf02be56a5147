package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agusmdev/burntop/internal/benchmark"
	"github.com/agusmdev/burntop/internal/leaderboard"
)

func TestTryLock_PreventsOverlappingRuns(t *testing.T) {
	s := New(leaderboard.NewBuilder(nil), benchmark.NewBuilder(nil), slog.New(slog.NewTextHandler(io.Discard, nil)))

	if !s.tryLock() {
		t.Fatal("first tryLock() should succeed")
	}
	if s.tryLock() {
		t.Fatal("second tryLock() should fail while the first run is in progress")
	}
	s.unlock()
	if !s.tryLock() {
		t.Fatal("tryLock() should succeed again after unlock")
	}
	s.unlock()
}

func TestStartStop_ReturnsPromptly(t *testing.T) {
	s := New(leaderboard.NewBuilder(nil), benchmark.NewBuilder(nil), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.leaderboardInterval = time.Hour
	s.benchmarkInterval = time.Hour

	ctx := context.Background()
	go s.Start(ctx)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not return promptly")
	}
}
