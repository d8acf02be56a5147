package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/agusmdev/burntop/internal/pgxstore"
	"github.com/agusmdev/burntop/internal/pricing"
	"github.com/agusmdev/burntop/internal/streak"
	"github.com/agusmdev/burntop/internal/usage"
)

// fakeTx satisfies pgxstore.Tx without touching a real database; the
// fakes below never call its methods since they don't do real SQL, it
// only needs to exist so fakeBeginner has something to hand back.
type fakeTx struct{}

func (fakeTx) QueryRow(context.Context, string, ...any) pgx.Row           { return nil }
func (fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults     { return nil }
func (fakeTx) Commit(context.Context) error                               { return nil }
func (fakeTx) Rollback(context.Context) error                             { return nil }

type fakeBeginner struct{}

func (fakeBeginner) Begin(context.Context) (pgxstore.Tx, error) { return fakeTx{}, nil }

type fakeDedup struct {
	seen map[string]bool
}

func newFakeDedup() *fakeDedup { return &fakeDedup{seen: map[string]bool{}} }

func (f *fakeDedup) FilterNew(_ context.Context, _ uuid.UUID, _ string, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if !f.seen[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeDedup) InsertNew(_ context.Context, _ uuid.UUID, _ string, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if !f.seen[id] {
			f.seen[id] = true
			n++
		}
	}
	return n, nil
}

func (f *fakeDedup) InsertNewTx(ctx context.Context, _ pgxstore.Tx, userID uuid.UUID, source string, ids []string) (int, error) {
	return f.InsertNew(ctx, userID, source, ids)
}

type fakePricing struct{}

func (fakePricing) Resolve(shortName string) (pricing.Entry, bool) {
	return pricing.Entry{}, false
}

type fakeUpsert struct {
	rows map[string]usage.Bucket
}

func newFakeUpsert() *fakeUpsert { return &fakeUpsert{rows: map[string]usage.Bucket{}} }

func (f *fakeUpsert) Upsert(_ context.Context, buckets []usage.Bucket) (usage.Result, error) {
	result := usage.Result{TotalCost: decimal.Zero}
	for _, b := range buckets {
		key := b.UserID.String() + b.Date.Format("2006-01-02") + b.Source + b.Model + b.MachineID
		if existing, ok := f.rows[key]; ok {
			existing.InputTokens += b.InputTokens
			existing.OutputTokens += b.OutputTokens
			existing.Cost = existing.Cost.Add(b.Cost)
			f.rows[key] = existing
			result.UpdatedRecords++
		} else {
			f.rows[key] = b
			result.NewRecords++
		}
		result.TotalTokens += b.InputTokens + b.OutputTokens + b.CacheReadTokens + b.CacheWriteTokens + b.ReasoningTokens
		result.TotalCost = result.TotalCost.Add(b.Cost)
	}
	return result, nil
}

func (f *fakeUpsert) UpsertTx(ctx context.Context, _ pgxstore.Tx, buckets []usage.Bucket) (usage.Result, error) {
	return f.Upsert(ctx, buckets)
}

type fakeStreak struct {
	state streak.State
}

func (f *fakeStreak) UpdateStreak(_ context.Context, userID uuid.UUID, _ time.Time, _ string) (streak.State, error) {
	f.state.CurrentStreak++
	f.state.LongestStreak++
	return f.state, nil
}

func (f *fakeStreak) Snapshot(_ context.Context, _ uuid.UUID) (streak.State, error) {
	return f.state, nil
}

type fakeTimezone struct{}

func (fakeTimezone) UserTimezone(_ context.Context, _ uuid.UUID) (string, error) {
	return "UTC", nil
}

func newTestOrchestrator() (*Orchestrator, *fakeDedup, *fakeUpsert) {
	dedup := newFakeDedup()
	upsertEngine := newFakeUpsert()
	o := NewOrchestrator(dedup, fakePricing{}, upsertEngine, &fakeStreak{}, fakeTimezone{}, fakeBeginner{})
	return o, dedup, upsertEngine
}

func TestProcess_RejectsEmptyMessages(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	_, err := o.Process(context.Background(), Request{UserID: uuid.New(), Source: "cursor"})
	if err == nil {
		t.Fatal("expected a validation error for empty messages")
	}
}

func TestProcess_DoubleSyncIdempotence(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	req := Request{
		UserID: uuid.New(),
		Source: "cursor",
		Messages: []Message{
			{ID: "m1", Timestamp: time.Now(), Model: "claude-3-5-sonnet-20241022", InputTokens: 1000, OutputTokens: 500},
		},
	}

	first, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	if first.MessagesSynced != 1 {
		t.Errorf("first sync MessagesSynced = %d, want 1", first.MessagesSynced)
	}
	if first.TotalTokens != 1500 {
		t.Errorf("first sync TotalTokens = %d, want 1500", first.TotalTokens)
	}

	second, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if second.MessagesSynced != 0 {
		t.Errorf("second sync MessagesSynced = %d, want 0 (idempotent)", second.MessagesSynced)
	}
	if second.NewRecords != 0 || second.UpdatedRecords != 0 {
		t.Errorf("second sync should mutate nothing, got new=%d updated=%d", second.NewRecords, second.UpdatedRecords)
	}
}

func TestProcess_SameDayAggregation(t *testing.T) {
	o, _, upsertEngine := newTestOrchestrator()
	userID := uuid.New()
	now := time.Now()

	req := Request{
		UserID: userID,
		Source: "cursor",
		Messages: []Message{
			{ID: "a", Timestamp: now, Model: "claude-3-5-sonnet-20241022", InputTokens: 1000, OutputTokens: 500},
			{ID: "b", Timestamp: now, Model: "claude-3-5-sonnet-20241022", InputTokens: 500, OutputTokens: 250},
			{ID: "c", Timestamp: now, Model: "claude-3-5-haiku-20241022", InputTokens: 200, OutputTokens: 100},
		},
	}

	result, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.MessagesSynced != 3 {
		t.Errorf("MessagesSynced = %d, want 3", result.MessagesSynced)
	}
	if result.RecordsProcessed != 2 {
		t.Errorf("RecordsProcessed = %d, want 2 (two distinct models)", result.RecordsProcessed)
	}

	var sonnet usage.Bucket
	for _, b := range upsertEngine.rows {
		if b.Model == "claude-3-5-sonnet-20241022" {
			sonnet = b
		}
	}
	if sonnet.InputTokens != 1500 || sonnet.OutputTokens != 750 {
		t.Errorf("sonnet bucket = %+v, want input=1500 output=750", sonnet)
	}
}

func TestProcess_MultiMachineIndependence(t *testing.T) {
	userID := uuid.New()
	now := time.Now()

	o1, _, upsertEngine := newTestOrchestrator()
	_, err := o1.Process(context.Background(), Request{
		UserID: userID, Source: "cursor", MachineID: "m1",
		Messages: []Message{{ID: "x1", Timestamp: now, Model: "gpt-4o", InputTokens: 1_000_000, OutputTokens: 500_000}},
	})
	if err != nil {
		t.Fatalf("Process() m1 error = %v", err)
	}
	_, err = o1.Process(context.Background(), Request{
		UserID: userID, Source: "cursor", MachineID: "m2",
		Messages: []Message{{ID: "x2", Timestamp: now, Model: "gpt-4o", InputTokens: 2_000_000, OutputTokens: 1_000_000}},
	})
	if err != nil {
		t.Fatalf("Process() m2 error = %v", err)
	}

	if len(upsertEngine.rows) != 2 {
		t.Errorf("expected 2 independent rows for distinct machines, got %d", len(upsertEngine.rows))
	}
}

func TestProcess_RejectsNegativeTokens(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	_, err := o.Process(context.Background(), Request{
		UserID: uuid.New(), Source: "cursor",
		Messages: []Message{{ID: "m1", Timestamp: time.Now(), Model: "gpt-4o", InputTokens: -1}},
	})
	if err == nil {
		t.Fatal("expected a validation error for negative tokens")
	}
}

func TestProcess_UnpricedModelStillCountsTokens(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	result, err := o.Process(context.Background(), Request{
		UserID: uuid.New(), Source: "cursor",
		Messages: []Message{{ID: "m1", Timestamp: time.Now(), Model: "totally-unknown-model", InputTokens: 100, OutputTokens: 50}},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150 even with cost=0", result.TotalTokens)
	}
	if !result.TotalCost.Equal(decimal.Zero) {
		t.Errorf("TotalCost = %s, want 0 for an unpriceable model", result.TotalCost)
	}
}
