package portfolio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAccountant(t *testing.T) *Accountant {
	t.Helper()
	acct, err := NewAccountant(DefaultStartingEquity)
	require.NoError(t, err)
	return acct
}

func decision(instrument string, dollars float64) AllocationDecision {
	return AllocationDecision{Instrument: instrument, Score: 92, Pct: 0.05, Dollars: dollars}
}

func TestAccountant_OpenPosition(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	pos, err := acct.OpenPosition(decision("NVAX", 5000), 50, now)
	require.NoError(t, err)

	assert.Equal(t, 100.0, pos.Units, "5,000 at 50 buys 100 units")
	assert.Equal(t, 5000.0, pos.CostBasis)
	assert.Equal(t, 50.0, pos.LastPrice)

	state := acct.Snapshot()
	assert.Equal(t, 95000.0, state.Cash)
	assert.InDelta(t, 100000.0, state.Equity, 1e-9, "opening a position moves value, not equity")
	require.NoError(t, acct.Reconcile())
}

func TestAccountant_InsufficientFunds(t *testing.T) {
	acct := mustAccountant(t)

	_, err := acct.OpenPosition(decision("NVAX", 100001), 50, time.Now().UTC())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 100000.0, acct.Snapshot().Cash, "failed open must not touch cash")
}

func TestAccountant_DuplicatePositionRejected(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	_, err := acct.OpenPosition(decision("NVAX", 5000), 50, now)
	require.NoError(t, err)

	_, err = acct.OpenPosition(decision("NVAX", 5000), 55, now)
	assert.ErrorIs(t, err, ErrPositionExists)
}

func TestAccountant_CloseRealizesGain(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	_, err := acct.OpenPosition(decision("NVAX", 5000), 50, now)
	require.NoError(t, err)

	trade, err := acct.ClosePosition("NVAX", 60, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, trade.PnL)

	state := acct.Snapshot()
	assert.Equal(t, 101000.0, state.Cash, "95,000 plus 6,000 proceeds")
	assert.Equal(t, 1000.0, state.Realized)
	assert.InDelta(t, 101000.0, state.Equity, 1e-9)
	assert.Empty(t, state.Positions)
	require.NoError(t, acct.Reconcile())
}

func TestAccountant_CloseUnknownPosition(t *testing.T) {
	acct := mustAccountant(t)

	_, err := acct.ClosePosition("GHOST", 10, time.Now().UTC())
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestAccountant_MarkToMarket(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	_, err := acct.OpenPosition(decision("NVAX", 5000), 50, now)
	require.NoError(t, err)

	snap := acct.MarkToMarket(map[string]float64{"NVAX": 55}, now.Add(time.Minute))
	assert.InDelta(t, 100500.0, snap.Equity, 1e-9)
	assert.Equal(t, 95000.0, snap.Cash, "marks never touch cash")

	state := acct.Snapshot()
	assert.InDelta(t, 500.0, state.Unrealized, 1e-9)
	assert.Equal(t, 0.0, state.Realized)
	require.NoError(t, acct.Reconcile())
}

func TestAccountant_MarkToMarketMissingPriceCarriesEntry(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	_, err := acct.OpenPosition(decision("NVAX", 5000), 50, now)
	require.NoError(t, err)

	acct.MarkToMarket(map[string]float64{"NVAX": 55}, now.Add(time.Minute))
	snap := acct.MarkToMarket(map[string]float64{}, now.Add(2*time.Minute))

	assert.InDelta(t, 100000.0, snap.Equity, 1e-9, "no price means carried at entry")
	state := acct.Snapshot()
	assert.Equal(t, 50.0, state.Positions["NVAX"].LastPrice)
	assert.Equal(t, 0.0, state.Positions["NVAX"].Unrealized)
	require.NoError(t, acct.Reconcile())
}

func TestAccountant_EquityCurveAppends(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		acct.MarkToMarket(nil, now.Add(time.Duration(i)*time.Minute))
	}

	curve := acct.Snapshot().EquityCurve
	require.Len(t, curve, 3)
	assert.True(t, curve[0].At.Before(curve[2].At))
}

func TestAccountant_WinRate(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	_, err := acct.OpenPosition(decision("WIN", 5000), 50, now)
	require.NoError(t, err)
	_, err = acct.ClosePosition("WIN", 60, now)
	require.NoError(t, err)

	_, err = acct.OpenPosition(decision("LOSS", 5000), 50, now)
	require.NoError(t, err)
	_, err = acct.ClosePosition("LOSS", 40, now)
	require.NoError(t, err)

	state := acct.Snapshot()
	assert.Equal(t, 0.5, state.WinRate())
	assert.InDelta(t, 0.0, state.TotalPnL(), 1e-9, "+1,000 and -1,000 cancel")
	require.NoError(t, acct.Reconcile())
}

func TestAccountant_RejectsBadInputs(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	var rerr *RangeError
	_, err := acct.OpenPosition(decision("NVAX", 5000), 0, now)
	assert.ErrorAs(t, err, &rerr)

	_, err = acct.OpenPosition(decision("NVAX", -10), 50, now)
	assert.ErrorAs(t, err, &rerr)

	_, err = acct.ClosePosition("NVAX", -1, now)
	assert.ErrorAs(t, err, &rerr)

	_, err = NewAccountant(0)
	assert.ErrorAs(t, err, &rerr)
}

func TestAccountant_ConcurrentMutationsStayConsistent(t *testing.T) {
	acct := mustAccountant(t)
	now := time.Now().UTC()

	instruments := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	var wg sync.WaitGroup
	for _, instrument := range instruments {
		wg.Add(1)
		go func(instrument string) {
			defer wg.Done()
			if _, err := acct.OpenPosition(decision(instrument, 1000), 10, now); err != nil {
				return
			}
			acct.MarkToMarket(map[string]float64{instrument: 12}, now)
			_, _ = acct.ClosePosition(instrument, 11, now)
		}(instrument)
	}
	wg.Wait()

	require.NoError(t, acct.Reconcile())
	state := acct.Snapshot()
	assert.InDelta(t, state.StartingEquity+state.Realized+state.Unrealized, state.Equity, 1e-6)
}
