// Package db provides PostgreSQL persistence for the release run ledger.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the ledger tables if they don't exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS release_runs (
	id            UUID PRIMARY KEY,
	reference     TEXT NOT NULL,
	tag           TEXT NOT NULL,
	repository    TEXT NOT NULL DEFAULT '',
	commit_sha    TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL,
	failure_stage TEXT,
	error_message TEXT,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS release_jobs (
	run_id               UUID NOT NULL REFERENCES release_runs(id) ON DELETE CASCADE,
	platform_id          TEXT NOT NULL,
	target               TEXT NOT NULL DEFAULT '',
	raw_artifact_name    TEXT NOT NULL DEFAULT '',
	published_asset_name TEXT NOT NULL,
	status               TEXT NOT NULL,
	artifact_path        TEXT,
	error_message        TEXT,
	started_at           TIMESTAMPTZ,
	finished_at          TIMESTAMPTZ,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, platform_id)
);

CREATE TABLE IF NOT EXISTS release_records (
	run_id             UUID PRIMARY KEY REFERENCES release_runs(id) ON DELETE CASCADE,
	release_id         BIGINT NOT NULL,
	tag                TEXT NOT NULL,
	title              TEXT NOT NULL,
	url                TEXT NOT NULL DEFAULT '',
	draft              BOOLEAN NOT NULL DEFAULT FALSE,
	prerelease         BOOLEAN NOT NULL DEFAULT FALSE,
	attached_artifacts TEXT[] NOT NULL DEFAULT '{}',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE release_jobs ADD COLUMN IF NOT EXISTS raw_artifact_name TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS idx_release_runs_tag ON release_runs(tag);
`
