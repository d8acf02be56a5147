package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agusmdev/burntop/internal/pgxstore"
	"github.com/agusmdev/burntop/internal/pricing"
	"github.com/agusmdev/burntop/internal/streak"
	"github.com/agusmdev/burntop/internal/sync"
	"github.com/agusmdev/burntop/internal/usage"
)

type fakeTx struct{}

func (fakeTx) QueryRow(context.Context, string, ...any) pgx.Row       { return nil }
func (fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (fakeTx) Commit(context.Context) error                           { return nil }
func (fakeTx) Rollback(context.Context) error                         { return nil }

type fakeBeginner struct{}

func (fakeBeginner) Begin(context.Context) (pgxstore.Tx, error) { return fakeTx{}, nil }

type fakeDedup struct{ seen map[string]bool }

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

func (fakePricing) Resolve(string) (pricing.Entry, bool) { return pricing.Entry{}, false }

type fakeUpsert struct{}

func (fakeUpsert) Upsert(_ context.Context, buckets []usage.Bucket) (usage.Result, error) {
	var result usage.Result
	for _, b := range buckets {
		result.NewRecords++
		result.TotalTokens += b.InputTokens + b.OutputTokens
	}
	return result, nil
}

func (f fakeUpsert) UpsertTx(ctx context.Context, _ pgxstore.Tx, buckets []usage.Bucket) (usage.Result, error) {
	return f.Upsert(ctx, buckets)
}

type fakeStreak struct{}

func (fakeStreak) UpdateStreak(context.Context, uuid.UUID, time.Time, string) (streak.State, error) {
	return streak.State{CurrentStreak: 1, LongestStreak: 1}, nil
}

func (fakeStreak) Snapshot(context.Context, uuid.UUID) (streak.State, error) {
	return streak.State{}, nil
}

type fakeTimezone struct{}

func (fakeTimezone) UserTimezone(context.Context, uuid.UUID) (string, error) { return "UTC", nil }

func TestSyncHandler_RejectsUnauthenticated(t *testing.T) {
	orchestrator := sync.NewOrchestrator(newFakeDedup(), fakePricing{}, fakeUpsert{}, fakeStreak{}, fakeTimezone{}, fakeBeginner{})
	h := NewSyncHandler(orchestrator)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a request with no user in context", rec.Code)
	}
}

func TestSyncHandler_AcceptsSnakeCaseMachineID(t *testing.T) {
	orchestrator := sync.NewOrchestrator(newFakeDedup(), fakePricing{}, fakeUpsert{}, fakeStreak{}, fakeTimezone{}, fakeBeginner{})
	h := NewSyncHandler(orchestrator)

	body := `{"source":"cursor","machine_id":"laptop-1","messages":[{"id":"m1","timestamp":"2024-01-01T00:00:00Z","model":"gpt-4o","inputTokens":10,"outputTokens":5}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", bytes.NewBufferString(body))
	req = WithUserID(req, uuid.New())
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp syncResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || resp.MessagesSynced != 1 {
		t.Errorf("resp = %+v, want success with 1 message synced", resp)
	}
}
