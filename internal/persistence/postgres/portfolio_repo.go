package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/atirdror123/sniperbot/internal/persistence"
	"github.com/atirdror123/sniperbot/internal/portfolio"
)

// portfolioRepo implements PortfolioStore for PostgreSQL.
type portfolioRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPortfolioRepo creates a PostgreSQL portfolio repository.
func NewPortfolioRepo(db *sqlx.DB, timeout time.Duration) persistence.PortfolioStore {
	return &portfolioRepo{
		db:      db,
		timeout: timeout,
	}
}

// SaveSnapshot appends one equity-curve point.
func (r *portfolioRepo) SaveSnapshot(ctx context.Context, snap portfolio.EquitySnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO equity_snapshots (ts, equity, cash)
		VALUES ($1, $2, $3)`

	_, err := r.db.ExecContext(ctx, query, snap.At, snap.Equity, snap.Cash)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate snapshot at %s: %w", snap.At, err)
		}
		return fmt.Errorf("failed to insert equity snapshot: %w", err)
	}

	return nil
}

// SaveTrade records one realized round trip.
func (r *portfolioRepo) SaveTrade(ctx context.Context, trade portfolio.ClosedTrade) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO closed_trades (instrument, units, entry_price, exit_price, pnl, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		trade.Instrument, trade.Units, trade.EntryPrice, trade.ExitPrice,
		trade.PnL, trade.OpenedAt, trade.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to insert closed trade: %w", err)
	}

	return nil
}

// EquityCurve retrieves the most recent snapshots in chronological order.
func (r *portfolioRepo) EquityCurve(ctx context.Context, limit int) ([]portfolio.EquitySnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ts, equity, cash
		FROM (
			SELECT ts, equity, cash
			FROM equity_snapshots
			ORDER BY ts DESC
			LIMIT $1
		) recent
		ORDER BY ts ASC`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity curve: %w", err)
	}
	defer rows.Close()

	var curve []portfolio.EquitySnapshot
	for rows.Next() {
		var snap portfolio.EquitySnapshot
		if err := rows.Scan(&snap.At, &snap.Equity, &snap.Cash); err != nil {
			return nil, fmt.Errorf("failed to scan equity snapshot: %w", err)
		}
		curve = append(curve, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return curve, nil
}
