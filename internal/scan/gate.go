package scan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SignalStatus is the lifecycle state of an instrument evaluation.
type SignalStatus string

const (
	StatusRejectedFilter SignalStatus = "rejected_filter" // failed a hard filter
	StatusRejectedScore  SignalStatus = "rejected_score"  // filters passed, score at or below threshold
	StatusCandidate      SignalStatus = "candidate"       // passed gate, not yet emitted
	StatusActive         SignalStatus = "active"          // emitted, in the live set
	StatusExpired        SignalStatus = "expired"         // not reconfirmed within the expiry window
)

// GateConfig holds the hard filters and the confidence threshold. Zero-value
// fields are filled by the config loader defaults; Validate enforces sanity.
type GateConfig struct {
	MinPrice        float64 `yaml:"min_price"`         // price must exceed this (penny-stock exclusion)
	MinMarketCap    float64 `yaml:"min_market_cap"`    // market cap must exceed this
	MinDollarVolume float64 `yaml:"min_dollar_volume"` // daily dollar volume must exceed this
	ScoreThreshold  float64 `yaml:"score_threshold"`   // score must strictly exceed this
}

// DefaultGateConfig returns the production gate thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinPrice:        2.00,
		MinMarketCap:    1e8,
		MinDollarVolume: 5e6,
		ScoreThreshold:  85.0,
	}
}

// Validate rejects nonsensical gate configuration.
func (c GateConfig) Validate() error {
	if c.MinPrice < 0 || c.MinMarketCap < 0 || c.MinDollarVolume < 0 {
		return fmt.Errorf("gate filters must be non-negative")
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 100 {
		return fmt.Errorf("score_threshold %.2f outside [0,100]", c.ScoreThreshold)
	}
	return nil
}

// FilterCheck records the outcome of one hard filter for audit logs.
type FilterCheck struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// Signal is a gated evaluation outcome for one instrument in one cycle.
// Rejected instruments still carry their computed score and filter results
// so every decision is reconstructable.
type Signal struct {
	ID         string          `json:"id"`
	Instrument string          `json:"instrument"`
	Status     SignalStatus    `json:"status"`
	Score      ConfidenceScore `json:"score"`
	EntryPrice float64         `json:"entry_price"` // last price at evaluation time
	Filters    []FilterCheck   `json:"filters"`
	Rationale  string          `json:"rationale"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiredAt  *time.Time      `json:"expired_at,omitempty"`
}

// Gate applies hard tradability filters and the confidence threshold.
// Stateless; the pipeline owns signal lifecycle across cycles.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate from a validated configuration.
func NewGate(config GateConfig) (*Gate, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Gate{config: config}, nil
}

// Evaluate classifies one scored record. Filters run first; a filter failure
// rejects regardless of score. Score must strictly exceed the threshold —
// an exact-threshold score is rejected.
func (g *Gate) Evaluate(rec FeatureRecord, score ConfidenceScore) Signal {
	filters := []FilterCheck{
		{Name: "price", Value: rec.Price, Threshold: g.config.MinPrice, Passed: rec.Price > g.config.MinPrice},
		{Name: "market_cap", Value: rec.MarketCap, Threshold: g.config.MinMarketCap, Passed: rec.MarketCap > g.config.MinMarketCap},
		{Name: "dollar_volume", Value: rec.DollarVolume, Threshold: g.config.MinDollarVolume, Passed: rec.DollarVolume > g.config.MinDollarVolume},
	}

	status := StatusCandidate
	for _, f := range filters {
		if !f.Passed {
			status = StatusRejectedFilter
			break
		}
	}
	if status == StatusCandidate && score.Score <= g.config.ScoreThreshold {
		status = StatusRejectedScore
	}

	return Signal{
		ID:         uuid.NewString(),
		Instrument: rec.Instrument,
		Status:     status,
		Score:      score,
		EntryPrice: rec.Price,
		Filters:    filters,
		Rationale:  score.Rationale(),
		CreatedAt:  score.GeneratedAt,
	}
}

// FailedFilters lists the names of filters the signal did not pass.
func (s Signal) FailedFilters() []string {
	var failed []string
	for _, f := range s.Filters {
		if !f.Passed {
			failed = append(failed, f.Name)
		}
	}
	return failed
}
