package pgxstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email VARCHAR(255) NOT NULL,
	username VARCHAR(30) NOT NULL,
	display_name VARCHAR(255),
	bio TEXT,
	location VARCHAR(255),
	region VARCHAR(255),
	website VARCHAR(500),
	image VARCHAR(500),
	is_public BOOLEAN NOT NULL DEFAULT true,
	password_hash VARCHAR(255),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at TIMESTAMPTZ,
	CONSTRAINT uq_users_email UNIQUE (email),
	CONSTRAINT uq_users_username UNIQUE (username)
)`

const schemaSyncedMessageIds = `
CREATE TABLE IF NOT EXISTS synced_message_ids (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	source VARCHAR(50) NOT NULL,
	message_id VARCHAR(100) NOT NULL,
	synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_synced_message_ids_user_source_message UNIQUE (user_id, source, message_id)
)`

const schemaUsageRecords = `
CREATE TABLE IF NOT EXISTS usage_records (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	date DATE NOT NULL,
	source VARCHAR(50) NOT NULL,
	model VARCHAR(100) NOT NULL,
	machine_id VARCHAR(50) NOT NULL DEFAULT 'default',
	input_tokens BIGINT NOT NULL DEFAULT 0,
	output_tokens BIGINT NOT NULL DEFAULT 0,
	cache_read_tokens BIGINT NOT NULL DEFAULT 0,
	cache_write_tokens BIGINT NOT NULL DEFAULT 0,
	reasoning_tokens BIGINT NOT NULL DEFAULT 0,
	cost NUMERIC(14,4) NOT NULL DEFAULT 0,
	usage_timestamp TIMESTAMPTZ NOT NULL,
	synced_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_usage_records_bucket UNIQUE (user_id, date, source, model, machine_id)
)`

const schemaStreaks = `
CREATE TABLE IF NOT EXISTS streaks (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	current_streak INTEGER NOT NULL DEFAULT 0,
	longest_streak INTEGER NOT NULL DEFAULT 0,
	last_active_date DATE,
	timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const schemaLeaderboardCache = `
CREATE TABLE IF NOT EXISTS leaderboard_cache (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	period VARCHAR(10) NOT NULL,
	rank INTEGER NOT NULL,
	total_tokens BIGINT NOT NULL DEFAULT 0,
	total_cost NUMERIC(14,4) NOT NULL DEFAULT 0,
	streak_days INTEGER NOT NULL DEFAULT 0,
	rank_change INTEGER,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_leaderboard_cache_user_period UNIQUE (user_id, period)
)`

const schemaCommunityBenchmarks = `
CREATE TABLE IF NOT EXISTS community_benchmarks (
	period VARCHAR(10) PRIMARY KEY,
	total_users INTEGER NOT NULL DEFAULT 0,
	avg_tokens BIGINT,
	median_tokens BIGINT,
	total_community_tokens BIGINT,
	avg_cost NUMERIC(14,4),
	avg_streak INTEGER,
	avg_unique_tools INTEGER,
	avg_cache_efficiency NUMERIC(5,2),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_synced_message_ids_synced_at ON synced_message_ids (synced_at)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_records_user_date ON usage_records (user_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_records_date ON usage_records (date)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_cache_period_rank ON leaderboard_cache (period, rank)`,
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		schemaUsers,
		schemaSyncedMessageIds,
		schemaUsageRecords,
		schemaStreaks,
		schemaLeaderboardCache,
		schemaCommunityBenchmarks,
	}
	statements = append(statements, indexStatements...)

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
