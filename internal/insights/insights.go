// Package insights implements the insights assembler (C9): a per-user
// view joining their own usage totals and streak state against the
// community benchmark row for the same period.
package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agusmdev/burntop/internal/api"
	"github.com/agusmdev/burntop/internal/benchmark"
	"github.com/agusmdev/burntop/internal/leaderboard"
)

// View is the assembled per-user insight for one period.
type View struct {
	Period             leaderboard.Period
	TotalTokens        int64
	TotalCost          decimal.Decimal
	CurrentStreak      int
	CacheEfficiency    decimal.Decimal
	StreakPercentile   decimal.Decimal
	TokensPercentile   decimal.Decimal
	CostPercentile     decimal.Decimal
	IsAboveAverageTokens bool
	IsAboveAverageCost   bool
	IsAboveAverageStreak bool
	Benchmark          benchmark.Stats
}

// defaultPercentile is used for ranking dimensions not yet computed
// from a precomputed distribution (§4.9 step 3 reserves these).
const defaultPercentile = 50

type Assembler struct {
	pool *pgxpool.Pool
}

func NewAssembler(pool *pgxpool.Pool) *Assembler {
	return &Assembler{pool: pool}
}

// Assemble builds the insights view for one user/period pair. It
// returns a NotFound error when no benchmark row exists yet for the
// period (the scheduler hasn't run C8 for it).
func (a *Assembler) Assemble(ctx context.Context, userID uuid.UUID, period leaderboard.Period) (View, error) {
	bench, err := a.loadBenchmark(ctx, period)
	if err != nil {
		return View{}, err
	}

	totals, err := a.loadUserTotals(ctx, userID, period)
	if err != nil {
		return View{}, err
	}

	current, err := a.loadCurrentStreak(ctx, userID)
	if err != nil {
		return View{}, err
	}

	streakPercentile, err := a.streakPercentile(ctx, current)
	if err != nil {
		return View{}, err
	}

	view := View{
		Period:           period,
		TotalTokens:      totals.tokens,
		TotalCost:        totals.cost,
		CurrentStreak:    current,
		CacheEfficiency:  totals.cacheEfficiency,
		StreakPercentile: streakPercentile,
		TokensPercentile: decimal.NewFromInt(defaultPercentile),
		CostPercentile:   decimal.NewFromInt(defaultPercentile),
		Benchmark:        bench,
	}

	if bench.AvgTokens != nil {
		view.IsAboveAverageTokens = totals.tokens > *bench.AvgTokens
	}
	if bench.AvgCost != nil {
		view.IsAboveAverageCost = totals.cost.GreaterThan(*bench.AvgCost)
	}
	if bench.AvgStreak != nil {
		view.IsAboveAverageStreak = int64(current) > *bench.AvgStreak
	}

	return view, nil
}

func (a *Assembler) loadBenchmark(ctx context.Context, period leaderboard.Period) (benchmark.Stats, error) {
	var s benchmark.Stats
	s.Period = period
	err := a.pool.QueryRow(ctx,
		`SELECT total_users, avg_tokens, median_tokens, total_community_tokens, avg_cost, avg_unique_tools, avg_streak, avg_cache_efficiency
		 FROM community_benchmarks WHERE period = $1`,
		string(period),
	).Scan(&s.TotalUsers, &s.AvgTokens, &s.MedianTokens, &s.TotalCommunityTokens, &s.AvgCost, &s.AvgUniqueTools, &s.AvgStreak, &s.AvgCacheEfficiency)
	if errors.Is(err, pgx.ErrNoRows) {
		return benchmark.Stats{}, api.NewNotFoundError("benchmark", string(period))
	}
	if err != nil {
		return benchmark.Stats{}, api.NewDatabaseError("loading benchmark", err)
	}
	return s, nil
}

type userTotals struct {
	tokens          int64
	cost            decimal.Decimal
	cacheEfficiency decimal.Decimal
}

func (a *Assembler) loadUserTotals(ctx context.Context, userID uuid.UUID, period leaderboard.Period) (userTotals, error) {
	cut := periodCutoff(period, time.Now().UTC())

	var (
		tokens    int64
		cost      decimal.Decimal
		cacheRead int64
	)
	query := `
		SELECT
			coalesce(sum(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0)), 0),
			coalesce(sum(cost), 0),
			coalesce(sum(cache_read_tokens), 0)
		FROM usage_records WHERE user_id = $1`
	args := []any{userID}
	if cut != nil {
		query += " AND date >= $2"
		args = append(args, *cut)
	}

	if err := a.pool.QueryRow(ctx, query, args...).Scan(&tokens, &cost, &cacheRead); err != nil {
		return userTotals{}, fmt.Errorf("loading user totals: %w", err)
	}

	efficiency := decimal.Zero
	if tokens > 0 {
		efficiency = decimal.NewFromInt(cacheRead).Div(decimal.NewFromInt(tokens)).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return userTotals{tokens: tokens, cost: cost, cacheEfficiency: efficiency}, nil
}

func (a *Assembler) loadCurrentStreak(ctx context.Context, userID uuid.UUID) (int, error) {
	var current int
	err := a.pool.QueryRow(ctx, `SELECT current_streak FROM streaks WHERE user_id = $1`, userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading current streak: %w", err)
	}
	return current, nil
}

// streakPercentile computes the share of streaks strictly below the
// user's current streak, per §4.9 step 3.
func (a *Assembler) streakPercentile(ctx context.Context, current int) (decimal.Decimal, error) {
	var below, total int64
	err := a.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE current_streak < $1), count(*) FROM streaks`,
		current,
	).Scan(&below, &total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("computing streak percentile: %w", err)
	}
	if total == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromInt(below).Div(decimal.NewFromInt(total)).Mul(decimal.NewFromInt(100)).Round(2), nil
}

func periodCutoff(period leaderboard.Period, now time.Time) *time.Time {
	switch period {
	case leaderboard.PeriodWeek:
		t := now.AddDate(0, 0, -7)
		return &t
	case leaderboard.PeriodMonth:
		t := now.AddDate(0, 0, -30)
		return &t
	default:
		return nil
	}
}
