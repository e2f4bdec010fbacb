package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// schema is applied at startup; idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS sniper_signals (
	id          UUID PRIMARY KEY,
	instrument  TEXT NOT NULL,
	status      TEXT NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	rationale   TEXT NOT NULL DEFAULT '',
	breakdown   JSONB,
	created_at  TIMESTAMPTZ NOT NULL,
	expired_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sniper_signals_status ON sniper_signals (status, created_at DESC);

CREATE TABLE IF NOT EXISTS equity_snapshots (
	ts     TIMESTAMPTZ PRIMARY KEY,
	equity DOUBLE PRECISION NOT NULL,
	cash   DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS closed_trades (
	id          BIGSERIAL PRIMARY KEY,
	instrument  TEXT NOT NULL,
	units       DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price  DOUBLE PRECISION NOT NULL,
	pnl         DOUBLE PRECISION NOT NULL,
	opened_at   TIMESTAMPTZ NOT NULL,
	closed_at   TIMESTAMPTZ NOT NULL
);
`

// Connect opens a pooled connection, verifies it, and ensures the schema.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}
