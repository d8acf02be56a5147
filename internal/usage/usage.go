// Package usage implements the daily-record upsert engine (C4): the
// accumulating upsert into usage_records keyed by
// (user_id, date, source, model, machine_id).
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agusmdev/burntop/internal/pgxstore"
)

// Bucket is one (K, counters) contribution to accumulate into
// usage_records. Two messages sharing a key within the same call must
// already be merged by the caller before Upsert is invoked.
type Bucket struct {
	UserID           uuid.UUID
	Date             time.Time // calendar date, time-of-day ignored
	Source           string
	Model            string
	MachineID        string
	InputTokens      int64
	OutputTokens     int64
	CacheReadTokens  int64
	CacheWriteTokens int64
	ReasoningTokens  int64
	Cost             decimal.Decimal
	UsageTimestamp   time.Time
	SyncedAt         time.Time
}

// Result reports the §4.4 counting contract for one Upsert call.
type Result struct {
	NewRecords     int
	UpdatedRecords int
	TotalTokens    int64
	TotalCost      decimal.Decimal
}

type Engine struct {
	pool *pgxpool.Pool
}

func NewEngine(pool *pgxpool.Pool) *Engine {
	return &Engine{pool: pool}
}

// Upsert accumulates the given buckets into usage_records, opening and
// committing its own transaction. Callers that need this write to commit
// atomically alongside another store's write should use UpsertTx instead.
func (e *Engine) Upsert(ctx context.Context, buckets []Bucket) (Result, error) {
	if len(buckets) == 0 {
		return Result{}, nil
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := e.upsertTx(ctx, tx, buckets)
	if err != nil {
		return result, err
	}
	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("committing transaction: %w", err)
	}
	return result, nil
}

// UpsertTx runs the same accumulation against a transaction the caller
// already opened and is responsible for committing or rolling back. The
// sync orchestrator uses this to span the usage upsert and the dedup
// insert in one transaction, so both commit together or neither does.
func (e *Engine) UpsertTx(ctx context.Context, tx pgxstore.Tx, buckets []Bucket) (Result, error) {
	return e.upsertTx(ctx, tx, buckets)
}

// upsertTx does the accumulating write itself: a pre-check SELECT
// classifies each K as new or existing, then every row is written
// through a single ON CONFLICT DO UPDATE statement that adds the
// incoming counters to the stored ones. It never begins, commits, or
// rolls back tx.
func (e *Engine) upsertTx(ctx context.Context, tx pgxstore.Tx, buckets []Bucket) (Result, error) {
	var result Result
	if len(buckets) == 0 {
		return result, nil
	}

	existing := make(map[int]bool, len(buckets))
	for i, b := range buckets {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM usage_records
				WHERE user_id = $1 AND date = $2 AND source = $3 AND model = $4 AND machine_id = $5
			)`,
			b.UserID, b.Date, b.Source, b.Model, b.MachineID,
		).Scan(&exists)
		if err != nil {
			return result, fmt.Errorf("checking existing bucket: %w", err)
		}
		existing[i] = exists
	}

	batch := &pgx.Batch{}
	for _, b := range buckets {
		batch.Queue(
			`INSERT INTO usage_records (
				id, user_id, date, source, model, machine_id,
				input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, reasoning_tokens,
				cost, usage_timestamp, synced_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
			ON CONFLICT (user_id, date, source, model, machine_id) DO UPDATE SET
				input_tokens = usage_records.input_tokens + excluded.input_tokens,
				output_tokens = usage_records.output_tokens + excluded.output_tokens,
				cache_read_tokens = usage_records.cache_read_tokens + excluded.cache_read_tokens,
				cache_write_tokens = usage_records.cache_write_tokens + excluded.cache_write_tokens,
				reasoning_tokens = usage_records.reasoning_tokens + excluded.reasoning_tokens,
				cost = usage_records.cost + excluded.cost,
				usage_timestamp = excluded.usage_timestamp,
				synced_at = excluded.synced_at,
				updated_at = now()`,
			uuid.New(), b.UserID, b.Date, b.Source, b.Model, b.MachineID,
			b.InputTokens, b.OutputTokens, b.CacheReadTokens, b.CacheWriteTokens, b.ReasoningTokens,
			b.Cost, b.UsageTimestamp, b.SyncedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range buckets {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return result, fmt.Errorf("upserting usage record: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return result, fmt.Errorf("closing batch: %w", err)
	}

	result.TotalCost = decimal.Zero
	for i, b := range buckets {
		if existing[i] {
			result.UpdatedRecords++
		} else {
			result.NewRecords++
		}
		result.TotalTokens += b.InputTokens + b.OutputTokens + b.CacheReadTokens + b.CacheWriteTokens + b.ReasoningTokens
		result.TotalCost = result.TotalCost.Add(b.Cost)
	}
	return result, nil
}

// MergeByKey sums counters for buckets sharing the same K, so a single
// sync batch contributes each bucket at most once to the upsert.
func MergeByKey(buckets []Bucket) []Bucket {
	type key struct {
		userID    uuid.UUID
		date      string
		source    string
		model     string
		machineID string
	}
	order := make([]key, 0, len(buckets))
	merged := make(map[key]Bucket, len(buckets))

	for _, b := range buckets {
		k := key{b.UserID, b.Date.Format("2006-01-02"), b.Source, b.Model, b.MachineID}
		existing, ok := merged[k]
		if !ok {
			merged[k] = b
			order = append(order, k)
			continue
		}
		existing.InputTokens += b.InputTokens
		existing.OutputTokens += b.OutputTokens
		existing.CacheReadTokens += b.CacheReadTokens
		existing.CacheWriteTokens += b.CacheWriteTokens
		existing.ReasoningTokens += b.ReasoningTokens
		existing.Cost = existing.Cost.Add(b.Cost)
		if b.UsageTimestamp.After(existing.UsageTimestamp) {
			existing.UsageTimestamp = b.UsageTimestamp
		}
		if b.SyncedAt.After(existing.SyncedAt) {
			existing.SyncedAt = b.SyncedAt
		}
		merged[k] = existing
	}

	out := make([]Bucket, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return out
}
