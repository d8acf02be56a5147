// Package pgxstore owns the shared Postgres connection pool and schema
// bootstrap. Individual domain stores (dedup, usage, streak, leaderboard,
// benchmark, user) each hold a *pgxpool.Pool handed to them by Server.New
// rather than opening their own connections.
package pgxstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps a pgxpool.Pool with the bounded sizing spec.md §5 calls for
// ("pool ≈5, overflow ≈10").
type Pool struct {
	*pgxpool.Pool
}

// Tx is the narrow slice of pgx.Tx that a caller needs to run writes
// against a transaction it owns and commits itself. usage.Engine and
// dedup.Store accept one of these instead of opening their own
// transaction, so the sync orchestrator can span both stores' writes
// with a single Begin/Commit.
type Tx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Begin starts a transaction, declared explicitly rather than relying on
// the promoted method from the embedded *pgxpool.Pool, so *Pool satisfies
// interfaces expressed in terms of Tx instead of pgx.Tx.
func (p *Pool) Begin(ctx context.Context) (Tx, error) {
	return p.Pool.Begin(ctx)
}

// Open creates the pool, applies the configured bounds, and verifies
// connectivity before returning.
func Open(ctx context.Context, databaseURL string, minConns, maxConns int32) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	poolCfg.MinConns = minConns
	poolCfg.MaxConns = maxConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close releases the pool's connections.
func (p *Pool) Close() {
	p.Pool.Close()
}
