// Package benchmark implements the benchmark builder (C8): per-period
// community aggregate statistics computed over usage_records and
// streaks, cached into a single row per period for C9 to read.
package benchmark

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agusmdev/burntop/internal/leaderboard"
)

// Stats is one period's community aggregate row. Every statistic field
// is a pointer so an empty period (zero active users) can persist a row
// with all statistics null and TotalUsers 0 instead of misleading zeros.
type Stats struct {
	Period               leaderboard.Period
	TotalUsers           int64
	AvgTokens            *int64
	MedianTokens         *int64
	TotalCommunityTokens *int64
	AvgCost              *decimal.Decimal
	AvgUniqueTools       *int64
	AvgStreak            *int64
	AvgCacheEfficiency   *decimal.Decimal
}

type Builder struct {
	pool *pgxpool.Pool
}

func NewBuilder(pool *pgxpool.Pool) *Builder {
	return &Builder{pool: pool}
}

type userTotal struct {
	userID      uuid.UUID
	tokens      int64
	cost        decimal.Decimal
	uniqueTools int64
}

// Run recomputes the benchmark row for one period.
func (b *Builder) Run(ctx context.Context, period leaderboard.Period) (Stats, error) {
	now := time.Now().UTC()
	cut := periodCutoff(period, now)

	totals, err := b.loadUserTotals(ctx, cut)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Period: period, TotalUsers: int64(len(totals))}
	if len(totals) == 0 {
		if err := b.upsert(ctx, stats); err != nil {
			return Stats{}, err
		}
		return stats, nil
	}

	tokens := make([]int64, len(totals))
	var sumTokens, sumTools int64
	sumCost := decimal.Zero
	for i, u := range totals {
		tokens[i] = u.tokens
		sumTokens += u.tokens
		sumTools += u.uniqueTools
		sumCost = sumCost.Add(u.cost)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })

	n := int64(len(totals))
	avgTokens := sumTokens / n
	median := tokens[len(tokens)/2]
	avgCost := sumCost.Div(decimal.NewFromInt(n)).Round(4)
	avgTools := sumTools / n

	avgStreak, err := b.loadAvgStreak(ctx)
	if err != nil {
		return Stats{}, err
	}
	avgCacheEfficiency, err := b.loadAvgCacheEfficiency(ctx, cut)
	if err != nil {
		return Stats{}, err
	}

	stats.AvgTokens = &avgTokens
	stats.MedianTokens = &median
	stats.TotalCommunityTokens = &sumTokens
	stats.AvgCost = &avgCost
	stats.AvgUniqueTools = &avgTools
	stats.AvgStreak = avgStreak
	stats.AvgCacheEfficiency = avgCacheEfficiency

	if err := b.upsert(ctx, stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
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

func (b *Builder) loadUserTotals(ctx context.Context, cut *time.Time) ([]userTotal, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if cut != nil {
		rows, err = b.pool.Query(ctx,
			`SELECT user_id,
			        sum(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0)) AS tokens,
			        sum(cost) AS cost,
			        count(distinct source) AS unique_tools
			 FROM usage_records
			 WHERE date >= $1
			 GROUP BY user_id`,
			*cut,
		)
	} else {
		rows, err = b.pool.Query(ctx,
			`SELECT user_id,
			        sum(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0)) AS tokens,
			        sum(cost) AS cost,
			        count(distinct source) AS unique_tools
			 FROM usage_records
			 GROUP BY user_id`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("aggregating user totals: %w", err)
	}
	defer rows.Close()

	var totals []userTotal
	for rows.Next() {
		var u userTotal
		if err := rows.Scan(&u.userID, &u.tokens, &u.cost, &u.uniqueTools); err != nil {
			return nil, fmt.Errorf("scanning user total: %w", err)
		}
		totals = append(totals, u)
	}
	return totals, rows.Err()
}

// loadAvgStreak averages current_streak over users with a live streak
// only; returns nil when nobody has one.
func (b *Builder) loadAvgStreak(ctx context.Context) (*int64, error) {
	var avg *float64
	err := b.pool.QueryRow(ctx,
		`SELECT avg(current_streak) FROM streaks WHERE current_streak > 0`,
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("averaging streaks: %w", err)
	}
	if avg == nil {
		return nil, nil
	}
	v := int64(*avg)
	return &v, nil
}

// loadAvgCacheEfficiency averages cache_read/total across usage_records,
// excluding zero-total rows, over the same window as the token totals.
func (b *Builder) loadAvgCacheEfficiency(ctx context.Context, cut *time.Time) (*decimal.Decimal, error) {
	query := `
		SELECT avg(
			100.0 * coalesce(cache_read_tokens,0) /
			NULLIF(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0), 0)
		)
		FROM usage_records`
	args := []any{}
	if cut != nil {
		query += " WHERE date >= $1"
		args = append(args, *cut)
	}

	var avg *float64
	if err := b.pool.QueryRow(ctx, query, args...).Scan(&avg); err != nil {
		return nil, fmt.Errorf("averaging cache efficiency: %w", err)
	}
	if avg == nil {
		return nil, nil
	}
	d := decimal.NewFromFloat(*avg).Round(2)
	return &d, nil
}

func (b *Builder) upsert(ctx context.Context, s Stats) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO community_benchmarks (period, total_users, avg_tokens, median_tokens, total_community_tokens, avg_cost, avg_unique_tools, avg_streak, avg_cache_efficiency, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (period) DO UPDATE SET
		   total_users = excluded.total_users,
		   avg_tokens = excluded.avg_tokens,
		   median_tokens = excluded.median_tokens,
		   total_community_tokens = excluded.total_community_tokens,
		   avg_cost = excluded.avg_cost,
		   avg_unique_tools = excluded.avg_unique_tools,
		   avg_streak = excluded.avg_streak,
		   avg_cache_efficiency = excluded.avg_cache_efficiency,
		   updated_at = now()`,
		string(s.Period), s.TotalUsers, s.AvgTokens, s.MedianTokens, s.TotalCommunityTokens, s.AvgCost, s.AvgUniqueTools, s.AvgStreak, s.AvgCacheEfficiency,
	)
	if err != nil {
		return fmt.Errorf("upserting benchmark row: %w", err)
	}
	return nil
}
