// Package sync implements the sync orchestrator (C5): the single
// process_sync entry point that drives the dedup store, pricing catalog,
// daily-record upsert engine, and streak engine for one client sync
// request. It holds each collaborator behind a narrow interface rather
// than a global container, per the dependency-graph design note.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agusmdev/burntop/internal/api"
	"github.com/agusmdev/burntop/internal/pgxstore"
	"github.com/agusmdev/burntop/internal/pricing"
	"github.com/agusmdev/burntop/internal/source"
	"github.com/agusmdev/burntop/internal/streak"
	"github.com/agusmdev/burntop/internal/usage"
)

// DedupStore is the narrow interface C5 needs from C3.
type DedupStore interface {
	FilterNew(ctx context.Context, userID uuid.UUID, source string, messageIDs []string) ([]string, error)
	InsertNew(ctx context.Context, userID uuid.UUID, source string, messageIDs []string) (int, error)
	InsertNewTx(ctx context.Context, tx pgxstore.Tx, userID uuid.UUID, source string, messageIDs []string) (int, error)
}

// PricingResolver is the narrow interface C5 needs from C1.
type PricingResolver interface {
	Resolve(shortName string) (pricing.Entry, bool)
}

// UpsertEngine is the narrow interface C5 needs from C4.
type UpsertEngine interface {
	Upsert(ctx context.Context, buckets []usage.Bucket) (usage.Result, error)
	UpsertTx(ctx context.Context, tx pgxstore.Tx, buckets []usage.Bucket) (usage.Result, error)
}

// Beginner opens the transaction that spans the usage upsert and the
// dedup insert, so a failure between the two can never leave counters
// incremented without the message ids recorded as synced (a client
// retry after that kind of partial failure would double-count tokens).
// *pgxstore.Pool implements this directly.
type Beginner interface {
	Begin(ctx context.Context) (pgxstore.Tx, error)
}

// StreakUpdater is the narrow interface C5 needs from C6.
type StreakUpdater interface {
	UpdateStreak(ctx context.Context, userID uuid.UUID, activityDate time.Time, tz string) (streak.State, error)
	Snapshot(ctx context.Context, userID uuid.UUID) (streak.State, error)
}

// TimezoneLookup resolves a user's stored streak timezone, defaulting to
// UTC when the user has no streak row yet.
type TimezoneLookup interface {
	UserTimezone(ctx context.Context, userID uuid.UUID) (string, error)
}

// Orchestrator is C5: it holds references to its collaborators directly,
// with no service-locator indirection.
type Orchestrator struct {
	Dedup    DedupStore
	Pricing  PricingResolver
	Upsert   UpsertEngine
	Streak   StreakUpdater
	Timezone TimezoneLookup
	Pool     Beginner
}

func NewOrchestrator(dedup DedupStore, catalog PricingResolver, upsert UpsertEngine, streakEngine StreakUpdater, tz TimezoneLookup, pool Beginner) *Orchestrator {
	return &Orchestrator{Dedup: dedup, Pricing: catalog, Upsert: upsert, Streak: streakEngine, Timezone: tz, Pool: pool}
}

// Message is one client-reported usage event.
type Message struct {
	ID                  string
	Timestamp           time.Time
	Model               string
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheWriteTokens    int64
	ReasoningTokens     int64
}

// Request is the process_sync input.
type Request struct {
	UserID    uuid.UUID
	Source    string
	MachineID string
	Messages  []Message
}

// Result is the process_sync output, §4.5 step 10.
type Result struct {
	MessagesReceived int
	MessagesSynced   int
	RecordsProcessed int
	NewRecords       int
	UpdatedRecords   int
	TotalTokens      int64
	TotalCost        decimal.Decimal
	CurrentStreak    int
	LongestStreak    int
}

// Process runs the full process_sync algorithm of §4.5.
func (o *Orchestrator) Process(ctx context.Context, req Request) (Result, error) {
	result := Result{MessagesReceived: len(req.Messages), TotalCost: decimal.Zero}

	if len(req.Messages) == 0 {
		return result, api.NewValidationError("messages", "must be non-empty")
	}

	normSource := source.Normalize(req.Source)
	if err := source.Validate(normSource); err != nil {
		return result, api.NewValidationError("source", err.Error())
	}
	if req.MachineID == "" {
		req.MachineID = "default"
	}

	ids := make([]string, 0, len(req.Messages))
	byID := make(map[string]Message, len(req.Messages))
	for _, m := range req.Messages {
		if m.ID == "" {
			return result, api.NewValidationError("messages[].id", "must not be empty")
		}
		if m.Timestamp.IsZero() {
			return result, api.NewValidationError("messages[].timestamp", "must be a valid RFC3339 timestamp")
		}
		model := source.NormalizeModel(m.Model)
		if err := source.ValidateModel(model); err != nil {
			return result, api.NewValidationError("messages[].model", err.Error())
		}
		if m.InputTokens < 0 || m.OutputTokens < 0 || m.CacheReadTokens < 0 || m.CacheWriteTokens < 0 || m.ReasoningTokens < 0 {
			return result, api.NewValidationError("messages[].tokens", "token counts must be non-negative")
		}
		m.Model = model
		ids = append(ids, m.ID)
		byID[m.ID] = m
	}

	newIDs, err := o.Dedup.FilterNew(ctx, req.UserID, normSource, ids)
	if err != nil {
		return result, api.NewDatabaseError("filtering new message ids", err)
	}
	result.MessagesSynced = len(newIDs)

	if len(newIDs) == 0 {
		streakState, err := o.currentStreakSnapshot(ctx, req.UserID)
		if err != nil {
			return result, err
		}
		result.CurrentStreak = streakState.CurrentStreak
		result.LongestStreak = streakState.LongestStreak
		return result, nil
	}

	buckets := make([]usage.Bucket, 0, len(newIDs))
	for _, id := range newIDs {
		m := byID[id]
		entry, ok := o.Pricing.Resolve(m.Model)
		if !ok {
			entry, ok = pricing.Fallback(m.Model)
		}
		var cost decimal.Decimal
		if ok {
			cost = pricing.Cost(pricing.Usage{
				InputTokens:      m.InputTokens,
				OutputTokens:     m.OutputTokens,
				CacheReadTokens:  m.CacheReadTokens,
				CacheWriteTokens: m.CacheWriteTokens,
				ReasoningTokens:  m.ReasoningTokens,
			}, entry)
		}

		buckets = append(buckets, usage.Bucket{
			UserID:           req.UserID,
			Date:             dateOnly(m.Timestamp),
			Source:           normSource,
			Model:            m.Model,
			MachineID:        req.MachineID,
			InputTokens:      m.InputTokens,
			OutputTokens:     m.OutputTokens,
			CacheReadTokens:  m.CacheReadTokens,
			CacheWriteTokens: m.CacheWriteTokens,
			ReasoningTokens:  m.ReasoningTokens,
			Cost:             cost,
			UsageTimestamp:   m.Timestamp,
			SyncedAt:         time.Now().UTC(),
		})
	}

	merged := usage.MergeByKey(buckets)
	result.RecordsProcessed = len(merged)

	tx, err := o.Pool.Begin(ctx)
	if err != nil {
		return result, api.NewDatabaseError("beginning sync transaction", err)
	}
	defer tx.Rollback(ctx)

	upsertResult, err := o.Upsert.UpsertTx(ctx, tx, merged)
	if err != nil {
		return result, fmt.Errorf("upserting usage records: %w", err)
	}
	result.NewRecords = upsertResult.NewRecords
	result.UpdatedRecords = upsertResult.UpdatedRecords
	result.TotalTokens = upsertResult.TotalTokens
	result.TotalCost = upsertResult.TotalCost

	if _, err := o.Dedup.InsertNewTx(ctx, tx, req.UserID, normSource, newIDs); err != nil {
		return result, api.NewDatabaseError("recording synced message ids", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return result, api.NewDatabaseError("committing sync transaction", err)
	}

	latestDate := merged[0].Date
	for _, b := range merged[1:] {
		if b.Date.After(latestDate) {
			latestDate = b.Date
		}
	}

	tz, err := o.Timezone.UserTimezone(ctx, req.UserID)
	if err != nil {
		tz = "UTC"
	}
	streakState, err := o.Streak.UpdateStreak(ctx, req.UserID, latestDate, tz)
	if err != nil {
		return result, fmt.Errorf("updating streak: %w", err)
	}
	result.CurrentStreak = streakState.CurrentStreak
	result.LongestStreak = streakState.LongestStreak

	return result, nil
}

// currentStreakSnapshot reads the streak row back unchanged: re-applying
// the transition function against "today" with no new activity would
// corrupt the streak, so a sync where every message was a duplicate must
// not call UpdateStreak again.
func (o *Orchestrator) currentStreakSnapshot(ctx context.Context, userID uuid.UUID) (streak.State, error) {
	return o.Streak.Snapshot(ctx, userID)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
