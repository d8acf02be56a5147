// Package leaderboard implements the leaderboard builder (C7): a
// period-scoped ranking pass over usage_records, cached into
// leaderboard_cache with rank-change deltas against the previous run.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Period is one of the three ranking windows.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodMonth Period = "month"
	PeriodWeek  Period = "week"
)

// Entry is one ranked row, the public shape read back by handlers.
type Entry struct {
	UserID      uuid.UUID
	Rank        int
	TotalTokens int64
	TotalCost   decimal.Decimal
	StreakDays  int
	RankChange  *int
}

type Builder struct {
	pool *pgxpool.Pool
}

func NewBuilder(pool *pgxpool.Pool) *Builder {
	return &Builder{pool: pool}
}

// cutoff returns the date cutoff for a period, or nil for "all" (no
// filter).
func cutoff(period Period, now time.Time) *time.Time {
	switch period {
	case PeriodWeek:
		t := now.AddDate(0, 0, -7)
		return &t
	case PeriodMonth:
		t := now.AddDate(0, 0, -30)
		return &t
	default:
		return nil
	}
}

type aggregateRow struct {
	userID      uuid.UUID
	totalTokens int64
	totalCost   decimal.Decimal
}

// Run recomputes the leaderboard cache for one period. The job runs
// single-instance per process: callers (the scheduler) are responsible
// for ensuring no two Run calls for the same period overlap.
func (b *Builder) Run(ctx context.Context, period Period) ([]Entry, error) {
	now := time.Now().UTC()
	cut := cutoff(period, now)

	var rows pgx.Rows
	var err error
	if cut != nil {
		rows, err = b.pool.Query(ctx,
			`SELECT user_id,
			        sum(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0)) AS total_tokens,
			        sum(cost) AS total_cost
			 FROM usage_records
			 WHERE date >= $1
			 GROUP BY user_id
			 ORDER BY sum(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0)) DESC
			 LIMIT 1000`,
			*cut,
		)
	} else {
		rows, err = b.pool.Query(ctx,
			`SELECT user_id,
			        sum(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0)) AS total_tokens,
			        sum(cost) AS total_cost
			 FROM usage_records
			 GROUP BY user_id
			 ORDER BY sum(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0)) DESC
			 LIMIT 1000`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("aggregating usage records: %w", err)
	}
	defer rows.Close()

	var aggregates []aggregateRow
	for rows.Next() {
		var a aggregateRow
		if err := rows.Scan(&a.userID, &a.totalTokens, &a.totalCost); err != nil {
			return nil, fmt.Errorf("scanning aggregate row: %w", err)
		}
		aggregates = append(aggregates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	streaks, err := b.loadStreaks(ctx, aggregates)
	if err != nil {
		return nil, err
	}
	previousRanks, err := b.loadPreviousRanks(ctx, period)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(aggregates))
	for i, a := range aggregates {
		rank := i + 1
		var rankChange *int
		if prev, ok := previousRanks[a.userID]; ok {
			delta := prev - rank
			rankChange = &delta
		}
		entries = append(entries, Entry{
			UserID:      a.userID,
			Rank:        rank,
			TotalTokens: a.totalTokens,
			TotalCost:   a.totalCost,
			StreakDays:  streaks[a.userID],
			RankChange:  rankChange,
		})
	}

	if err := b.upsert(ctx, period, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Builder) loadStreaks(ctx context.Context, aggregates []aggregateRow) (map[uuid.UUID]int, error) {
	streaks := make(map[uuid.UUID]int, len(aggregates))
	if len(aggregates) == 0 {
		return streaks, nil
	}
	userIDs := make([]uuid.UUID, len(aggregates))
	for i, a := range aggregates {
		userIDs[i] = a.userID
	}

	rows, err := b.pool.Query(ctx, `SELECT user_id, current_streak FROM streaks WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("loading streaks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var current int
		if err := rows.Scan(&id, &current); err != nil {
			return nil, err
		}
		streaks[id] = current
	}
	return streaks, rows.Err()
}

func (b *Builder) loadPreviousRanks(ctx context.Context, period Period) (map[uuid.UUID]int, error) {
	previous := make(map[uuid.UUID]int)
	rows, err := b.pool.Query(ctx, `SELECT user_id, rank FROM leaderboard_cache WHERE period = $1`, string(period))
	if err != nil {
		return nil, fmt.Errorf("loading previous ranks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var rank int
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		previous[id] = rank
	}
	return previous, rows.Err()
}

// upsert wholly replaces the period's cache: a delete first clears rows
// for any user no longer present in entries (inactive within the window,
// or pushed below the top-1000 cutoff), then the batch below
// inserts/updates the rest, so ranks never collide with a stale row left
// over from a previous run and the dense-rank permutation holds. Both
// run inside one transaction.
func (b *Builder) upsert(ctx context.Context, period Period, entries []Entry) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning leaderboard transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userIDs := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		userIDs[i] = e.UserID
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM leaderboard_cache WHERE period = $1 AND NOT (user_id = ANY($2))`,
		string(period), userIDs,
	); err != nil {
		return fmt.Errorf("deleting stale leaderboard rows: %w", err)
	}

	if len(entries) > 0 {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(
				`INSERT INTO leaderboard_cache (id, user_id, period, rank, total_tokens, total_cost, streak_days, rank_change, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
				 ON CONFLICT (user_id, period) DO UPDATE SET
				   rank = excluded.rank,
				   total_tokens = excluded.total_tokens,
				   total_cost = excluded.total_cost,
				   streak_days = excluded.streak_days,
				   rank_change = excluded.rank_change,
				   updated_at = now()`,
				uuid.New(), e.UserID, string(period), e.Rank, e.TotalTokens, e.TotalCost, e.StreakDays, e.RankChange,
			)
		}
		results := tx.SendBatch(ctx, batch)
		for range entries {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("upserting leaderboard row: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("closing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing leaderboard transaction: %w", err)
	}
	return nil
}
