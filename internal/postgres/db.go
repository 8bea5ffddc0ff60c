package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS stock_records (
	id              TEXT PRIMARY KEY,
	reference       TEXT NOT NULL,
	name            TEXT NOT NULL,
	current_stock   INTEGER NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
	pending_arrival INTEGER NOT NULL DEFAULT 0 CHECK (pending_arrival >= 0),
	threshold       INTEGER NOT NULL DEFAULT 0 CHECK (threshold >= 0),
	unit            TEXT NOT NULL DEFAULT 'units',
	location        TEXT NOT NULL DEFAULT '',
	supplier        TEXT NOT NULL DEFAULT '',
	last_updated    TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_seq     BIGSERIAL
);
CREATE INDEX IF NOT EXISTS stock_records_reference_idx ON stock_records (lower(reference));
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}
