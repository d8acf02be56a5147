// Package dedup implements the message dedup store (C3): recording
// (user, source, message_id) triples and answering "which of these are
// new?" so the sync orchestrator counts each client message at most once.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agusmdev/burntop/internal/pgxstore"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FilterNew returns the subset of messageIDs not yet recorded for
// (userID, source). Implemented as a single SELECT with IN; ordering of
// the result is not guaranteed to match the input.
func (s *Store) FilterNew(ctx context.Context, userID uuid.UUID, source string, messageIDs []string) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT message_id FROM synced_message_ids
		 WHERE user_id = $1 AND source = $2 AND message_id = ANY($3)`,
		userID, source, messageIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying existing message ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{}, len(messageIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning message id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	newIDs := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		if _, ok := existing[id]; !ok {
			newIDs = append(newIDs, id)
		}
	}
	return newIDs, nil
}

// InsertNew bulk-inserts messageIDs, doing nothing on a unique-constraint
// conflict so concurrent overlapping calls stay idempotent. Returns the
// count of rows actually inserted. Opens and commits its own transaction;
// callers that need this write to commit atomically alongside another
// store's write should use InsertNewTx instead.
func (s *Store) InsertNew(ctx context.Context, userID uuid.UUID, source string, messageIDs []string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := s.insertNewTx(ctx, tx, userID, source, messageIDs)
	if err != nil {
		return n, err
	}
	if err := tx.Commit(ctx); err != nil {
		return n, fmt.Errorf("committing transaction: %w", err)
	}
	return n, nil
}

// InsertNewTx runs the same insert against a transaction the caller
// already opened and is responsible for committing or rolling back. The
// sync orchestrator uses this to span the dedup insert and the usage
// upsert in one transaction (see usage.Engine.UpsertTx), so a client
// retry after a partial failure can never double-count tokens.
func (s *Store) InsertNewTx(ctx context.Context, tx pgxstore.Tx, userID uuid.UUID, source string, messageIDs []string) (int, error) {
	return s.insertNewTx(ctx, tx, userID, source, messageIDs)
}

func (s *Store) insertNewTx(ctx context.Context, tx pgxstore.Tx, userID uuid.UUID, source string, messageIDs []string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, id := range messageIDs {
		batch.Queue(
			`INSERT INTO synced_message_ids (id, user_id, source, message_id, synced_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (user_id, source, message_id) DO NOTHING`,
			uuid.New(), userID, source, id, now,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range messageIDs {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting message id: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
