package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultStartingEquity is the paper-trading challenge bankroll.
const DefaultStartingEquity = 100000.00

// reconcileTolerance is the allowed float drift in the accounting identities.
const reconcileTolerance = 1e-6

// ErrPositionExists guards the one-open-position-per-instrument rule.
var ErrPositionExists = errors.New("position already open")

// Position is one open simulated holding.
type Position struct {
	Instrument string    `json:"instrument"`
	Units      float64   `json:"units"`
	EntryPrice float64   `json:"entry_price"`
	CostBasis  float64   `json:"cost_basis"` // units * entry price
	LastPrice  float64   `json:"last_price"` // entry price until first mark
	Unrealized float64   `json:"unrealized"`
	OpenedAt   time.Time `json:"opened_at"`
}

// MarketValue is the position's worth at its last marked price.
func (p Position) MarketValue() float64 {
	return p.Units * p.LastPrice
}

// ClosedTrade records a realized round trip for win-rate accounting.
type ClosedTrade struct {
	Instrument string    `json:"instrument"`
	Units      float64   `json:"units"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// EquitySnapshot is one point on the equity curve.
type EquitySnapshot struct {
	At     time.Time `json:"at"`
	Equity float64   `json:"equity"`
	Cash   float64   `json:"cash"`
}

// PortfolioState is a point-in-time copy of the books, safe to read without
// holding the accountant's lock.
type PortfolioState struct {
	StartingEquity float64             `json:"starting_equity"`
	Cash           float64             `json:"cash"`
	Realized       float64             `json:"realized"`
	Unrealized     float64             `json:"unrealized"`
	Equity         float64             `json:"equity"`
	Positions      map[string]Position `json:"positions"`
	Closed         []ClosedTrade       `json:"closed"`
	EquityCurve    []EquitySnapshot    `json:"equity_curve"`
}

// TotalPnL is realized plus unrealized gain since inception.
func (s PortfolioState) TotalPnL() float64 {
	return s.Realized + s.Unrealized
}

// WinRate is the fraction of closed trades with positive P&L.
// Zero when nothing has been closed yet.
func (s PortfolioState) WinRate() float64 {
	if len(s.Closed) == 0 {
		return 0
	}
	wins := 0
	for _, t := range s.Closed {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(s.Closed))
}

// Accountant is the single writer for the simulated portfolio. All mutations
// go through its mutex; readers take snapshots.
type Accountant struct {
	mu        sync.Mutex
	starting  float64
	cash      float64
	realized  float64
	positions map[string]*Position
	closed    []ClosedTrade
	curve     []EquitySnapshot
}

// NewAccountant opens the books with the given bankroll.
func NewAccountant(startingEquity float64) (*Accountant, error) {
	if startingEquity <= 0 {
		return nil, &RangeError{Op: "open books", Value: startingEquity, Domain: "starting equity > 0"}
	}
	return &Accountant{
		starting:  startingEquity,
		cash:      startingEquity,
		positions: make(map[string]*Position),
	}, nil
}

// OpenPosition converts an allocation into a simulated holding at the entry
// price. The full allocation is spent: units may be fractional. Fails with
// ErrInsufficientFunds when the allocation exceeds available cash and with
// ErrPositionExists when the instrument already has an open position.
func (a *Accountant) OpenPosition(decision AllocationDecision, entryPrice float64, ts time.Time) (Position, error) {
	if entryPrice <= 0 {
		return Position{}, &RangeError{Op: "open position", Value: entryPrice, Domain: "entry price > 0"}
	}
	if decision.Dollars <= 0 {
		return Position{}, &RangeError{Op: "open position", Value: decision.Dollars, Domain: "allocation > 0"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.positions[decision.Instrument]; ok {
		return Position{}, fmt.Errorf("%s: %w", decision.Instrument, ErrPositionExists)
	}
	if decision.Dollars > a.cash {
		return Position{}, fmt.Errorf("%s: need %.2f, have %.2f: %w",
			decision.Instrument, decision.Dollars, a.cash, ErrInsufficientFunds)
	}

	pos := &Position{
		Instrument: decision.Instrument,
		Units:      decision.Dollars / entryPrice,
		EntryPrice: entryPrice,
		CostBasis:  decision.Dollars,
		LastPrice:  entryPrice,
		OpenedAt:   ts,
	}
	a.cash -= decision.Dollars
	a.positions[decision.Instrument] = pos
	return *pos, nil
}

// ClosePosition realizes the position at the exit price: proceeds credit
// cash, the gain or loss moves to realized P&L, and the round trip is
// recorded. ErrPositionNotFound when no open position exists.
func (a *Accountant) ClosePosition(instrument string, exitPrice float64, ts time.Time) (ClosedTrade, error) {
	if exitPrice <= 0 {
		return ClosedTrade{}, &RangeError{Op: "close position", Value: exitPrice, Domain: "exit price > 0"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pos, ok := a.positions[instrument]
	if !ok {
		return ClosedTrade{}, fmt.Errorf("%s: %w", instrument, ErrPositionNotFound)
	}

	proceeds := pos.Units * exitPrice
	trade := ClosedTrade{
		Instrument: instrument,
		Units:      pos.Units,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        proceeds - pos.CostBasis,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   ts,
	}
	a.cash += proceeds
	a.realized += trade.PnL
	delete(a.positions, instrument)
	a.closed = append(a.closed, trade)
	return trade, nil
}

// MarkToMarket revalues open positions against the price map and appends an
// equity snapshot. Positions without a price this cycle are carried at their
// entry price: cash and realized P&L are never touched by a mark.
func (a *Accountant) MarkToMarket(prices map[string]float64, ts time.Time) EquitySnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, pos := range a.positions {
		price, ok := prices[pos.Instrument]
		if !ok || price <= 0 {
			price = pos.EntryPrice
		}
		pos.LastPrice = price
		pos.Unrealized = (price - pos.EntryPrice) * pos.Units
	}

	snap := EquitySnapshot{At: ts, Equity: a.equityLocked(), Cash: a.cash}
	a.curve = append(a.curve, snap)
	return snap
}

// Equity is cash plus the market value of every open position.
func (a *Accountant) Equity() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.equityLocked()
}

// Snapshot returns a deep copy of the books for lock-free reads.
func (a *Accountant) Snapshot() PortfolioState {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := PortfolioState{
		StartingEquity: a.starting,
		Cash:           a.cash,
		Realized:       a.realized,
		Equity:         a.equityLocked(),
		Positions:      make(map[string]Position, len(a.positions)),
		Closed:         make([]ClosedTrade, len(a.closed)),
		EquityCurve:    make([]EquitySnapshot, len(a.curve)),
	}
	for instrument, pos := range a.positions {
		state.Positions[instrument] = *pos
		state.Unrealized += pos.Unrealized
	}
	copy(state.Closed, a.closed)
	copy(state.EquityCurve, a.curve)
	return state
}

// Reconcile verifies the two accounting identities within tolerance:
//
//	equity == starting equity + realized P&L + Σ unrealized P&L
//	equity == cash + Σ position market value
//
// A violation means corrupted books and is returned as a RangeError.
func (a *Accountant) Reconcile() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	equity := a.equityLocked()
	unrealized := 0.0
	marked := 0.0
	for _, pos := range a.positions {
		unrealized += pos.Unrealized
		marked += pos.MarketValue()
	}

	if diff := equity - (a.starting + a.realized + unrealized); math.Abs(diff) > reconcileTolerance {
		return &RangeError{Op: "reconcile pnl identity", Value: diff, Domain: fmt.Sprintf("|drift| <= %.0e", reconcileTolerance)}
	}
	if diff := equity - (a.cash + marked); math.Abs(diff) > reconcileTolerance {
		return &RangeError{Op: "reconcile cash identity", Value: diff, Domain: fmt.Sprintf("|drift| <= %.0e", reconcileTolerance)}
	}
	return nil
}

func (a *Accountant) equityLocked() float64 {
	equity := a.cash
	for _, pos := range a.positions {
		equity += pos.MarketValue()
	}
	return equity
}
