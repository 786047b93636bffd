package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// Schema creates the tables used by ScenarioStore. Snapshots are stored as
// JSONB blobs keyed by UUID.
const Schema = `
CREATE TABLE IF NOT EXISTS termsheet_scenarios (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS termsheet_runs (
	id          UUID PRIMARY KEY,
	scenario_id UUID REFERENCES termsheet_scenarios(id) ON DELETE CASCADE,
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// InitDB initializes the shared connection pool and makes sure the schema
// exists. Later calls return the result of the first one.
func InitDB(ctx context.Context, databaseURL string) error {
	var err error
	once.Do(func() {
		if databaseURL == "" {
			err = fmt.Errorf("database url not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(databaseURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return
		}
		if _, execErr := pool.Exec(ctx, Schema); execErr != nil {
			pool.Close()
			pool = nil
			err = fmt.Errorf("failed to create schema: %w", execErr)
		}
	})
	return err
}

// GetPool returns the database connection pool, nil before InitDB succeeds.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}
