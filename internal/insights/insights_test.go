package insights

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
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

func TestAssemble_MissingBenchmarkIsNotFound(t *testing.T) {
	pool := testPool(t)
	a := NewAssembler(pool)

	_, err := a.Assemble(context.Background(), uuid.New(), leaderboard.Period("nonexistent-period"))
	if err == nil {
		t.Fatal("expected a not-found error for a period with no benchmark row")
	}
}
