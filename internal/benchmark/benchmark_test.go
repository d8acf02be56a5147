package benchmark

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agusmdev/burntop/internal/leaderboard"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("BURNTOP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BURNTOP_TEST_DATABASE_URL not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestPeriodCutoff_All(t *testing.T) {
	if c := periodCutoff(leaderboard.PeriodAll, time.Now()); c != nil {
		t.Errorf("periodCutoff(all) = %v, want nil", c)
	}
}

func TestPeriodCutoff_WeekAndMonth(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	week := periodCutoff(leaderboard.PeriodWeek, now)
	if week == nil || !week.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("periodCutoff(week) = %v, want 7 days before now", week)
	}
	month := periodCutoff(leaderboard.PeriodMonth, now)
	if month == nil || !month.Equal(now.AddDate(0, 0, -30)) {
		t.Errorf("periodCutoff(month) = %v, want 30 days before now", month)
	}
}

func TestRun_NoActiveUsersPersistsNullRow(t *testing.T) {
	pool := testPool(t)
	b := NewBuilder(pool)

	stats, err := b.Run(context.Background(), leaderboard.PeriodAll)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.TotalUsers != 0 {
		return
	}
	if stats.AvgTokens != nil {
		t.Errorf("AvgTokens = %v, want nil for an empty period", stats.AvgTokens)
	}
}
