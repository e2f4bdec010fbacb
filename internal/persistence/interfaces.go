// Package persistence defines the storage boundary for signals and
// portfolio history. Implementations live in subpackages; the engine only
// depends on these interfaces so storage stays an optional collaborator.
package persistence

import (
	"context"

	"github.com/atirdror123/sniperbot/internal/portfolio"
	"github.com/atirdror123/sniperbot/internal/scan"
)

// SignalStore records gated signals and their lifecycle transitions.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig scan.Signal) error
	MarkExpired(ctx context.Context, sig scan.Signal) error
	ListByStatus(ctx context.Context, status scan.SignalStatus, limit int) ([]scan.Signal, error)
}

// PortfolioStore records equity snapshots and realized round trips.
type PortfolioStore interface {
	SaveSnapshot(ctx context.Context, snap portfolio.EquitySnapshot) error
	SaveTrade(ctx context.Context, trade portfolio.ClosedTrade) error
	EquityCurve(ctx context.Context, limit int) ([]portfolio.EquitySnapshot, error)
}
