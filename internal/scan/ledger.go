package scan

import (
	"sort"
	"sync"
	"time"
)

// historyLimit bounds the retained expired-signal history.
const historyLimit = 1024

// Ledger tracks live signals across evaluation cycles. A candidate becomes
// Active on emission; an Active signal not reconfirmed within the configured
// number of cycles expires, leaves the live set, and is retained in history.
type Ledger struct {
	mu           sync.Mutex
	expiryCycles int
	cycle        uint64
	live         map[string]*ledgerEntry
	history      []Signal
}

type ledgerEntry struct {
	signal        Signal
	lastConfirmed uint64
}

// LedgerUpdate summarizes one cycle's lifecycle transitions.
type LedgerUpdate struct {
	Activated []Signal // newly entered the live set this cycle
	Refreshed []Signal // already live, reconfirmed with fresh score
	Expired   []Signal // dropped out of the live set this cycle
	Active    []Signal // full live set after the update, ordered
}

// NewLedger creates a ledger with the given reconfirmation window.
// expiryCycles < 1 is coerced to 1 (reconfirm-or-expire).
func NewLedger(expiryCycles int) *Ledger {
	if expiryCycles < 1 {
		expiryCycles = 1
	}
	return &Ledger{
		expiryCycles: expiryCycles,
		live:         make(map[string]*ledgerEntry),
	}
}

// Advance applies one cycle's candidates to the live set. Candidates for
// instruments already live refresh the existing signal in place, keeping its
// identity and creation time; new instruments activate. Live signals absent
// for more than the expiry window are marked Expired at asOf.
func (l *Ledger) Advance(candidates []Signal, asOf time.Time) LedgerUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cycle++
	var update LedgerUpdate

	for _, cand := range candidates {
		if cand.Status != StatusCandidate {
			continue
		}
		if entry, ok := l.live[cand.Instrument]; ok {
			entry.signal.Score = cand.Score
			entry.signal.EntryPrice = cand.EntryPrice
			entry.signal.Filters = cand.Filters
			entry.signal.Rationale = cand.Rationale
			entry.lastConfirmed = l.cycle
			update.Refreshed = append(update.Refreshed, entry.signal)
			continue
		}
		cand.Status = StatusActive
		l.live[cand.Instrument] = &ledgerEntry{signal: cand, lastConfirmed: l.cycle}
		update.Activated = append(update.Activated, cand)
	}

	for instrument, entry := range l.live {
		if l.cycle-entry.lastConfirmed < uint64(l.expiryCycles) {
			continue
		}
		expired := entry.signal
		expired.Status = StatusExpired
		expiredAt := asOf
		expired.ExpiredAt = &expiredAt
		delete(l.live, instrument)
		l.appendHistory(expired)
		update.Expired = append(update.Expired, expired)
	}

	update.Active = l.activeLocked()
	sortSignals(update.Expired)
	return update
}

// Active returns the live set ordered by score descending, instrument
// ascending on ties.
func (l *Ledger) Active() []Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeLocked()
}

// History returns the retained expired signals, oldest first.
func (l *Ledger) History() []Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Signal, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Ledger) activeLocked() []Signal {
	out := make([]Signal, 0, len(l.live))
	for _, entry := range l.live {
		out = append(out, entry.signal)
	}
	sortSignals(out)
	return out
}

func (l *Ledger) appendHistory(s Signal) {
	l.history = append(l.history, s)
	if len(l.history) > historyLimit {
		l.history = l.history[len(l.history)-historyLimit:]
	}
}

func sortSignals(signals []Signal) {
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Score.Score != signals[j].Score.Score {
			return signals[i].Score.Score > signals[j].Score.Score
		}
		return signals[i].Instrument < signals[j].Instrument
	})
}
