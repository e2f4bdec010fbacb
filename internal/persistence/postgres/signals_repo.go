package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/atirdror123/sniperbot/internal/persistence"
	"github.com/atirdror123/sniperbot/internal/scan"
)

// signalsRepo implements SignalStore for PostgreSQL.
type signalsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalsRepo creates a PostgreSQL signal repository.
func NewSignalsRepo(db *sqlx.DB, timeout time.Duration) persistence.SignalStore {
	return &signalsRepo{
		db:      db,
		timeout: timeout,
	}
}

// SaveSignal inserts one gated signal with its score breakdown as JSONB.
func (r *signalsRepo) SaveSignal(ctx context.Context, sig scan.Signal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	breakdownJSON, err := json.Marshal(sig.Score.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal score breakdown: %w", err)
	}

	query := `
		INSERT INTO sniper_signals (id, instrument, status, score, entry_price, rationale, breakdown, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		sig.ID, sig.Instrument, string(sig.Status), sig.Score.Score,
		sig.EntryPrice, sig.Rationale, breakdownJSON, sig.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate signal %s: %w", sig.ID, err)
		}
		return fmt.Errorf("failed to insert signal: %w", err)
	}

	return nil
}

// MarkExpired flips a stored signal to expired and stamps the expiry time.
func (r *signalsRepo) MarkExpired(ctx context.Context, sig scan.Signal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE sniper_signals
		SET status = $1, expired_at = $2
		WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, string(scan.StatusExpired), sig.ExpiredAt, sig.ID)
	if err != nil {
		return fmt.Errorf("failed to expire signal: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("signal %s not found", sig.ID)
	}

	return nil
}

// ListByStatus retrieves signals in a lifecycle state, newest first.
func (r *signalsRepo) ListByStatus(ctx context.Context, status scan.SignalStatus, limit int) ([]scan.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, instrument, status, score, entry_price, rationale, breakdown, created_at, expired_at
		FROM sniper_signals
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals by status: %w", err)
	}
	defer rows.Close()

	var signals []scan.Signal
	for rows.Next() {
		var (
			sig           scan.Signal
			status        string
			breakdownJSON []byte
		)
		err := rows.Scan(
			&sig.ID, &sig.Instrument, &status, &sig.Score.Score,
			&sig.EntryPrice, &sig.Rationale, &breakdownJSON,
			&sig.CreatedAt, &sig.ExpiredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sig.Status = scan.SignalStatus(status)
		sig.Score.Instrument = sig.Instrument
		sig.Score.GeneratedAt = sig.CreatedAt
		if len(breakdownJSON) > 0 {
			if err := json.Unmarshal(breakdownJSON, &sig.Score.Breakdown); err != nil {
				return nil, fmt.Errorf("failed to unmarshal score breakdown: %w", err)
			}
		}
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return signals, nil
}
