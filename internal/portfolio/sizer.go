package portfolio

import "fmt"

// Band is one confidence interval mapped to an equity percentage.
// Lower bound inclusive, upper bound exclusive except the final band,
// which includes its upper bound so a perfect 100 is allocatable.
type Band struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
	Pct  float64 `yaml:"pct"` // fraction of total equity, e.g. 0.05
}

// SizerConfig is the ordered band table. Bands must be contiguous,
// ascending, and start at the gate threshold.
type SizerConfig struct {
	Bands []Band `yaml:"bands"`
}

// DefaultSizerConfig returns the production conviction ladder.
func DefaultSizerConfig() SizerConfig {
	return SizerConfig{Bands: []Band{
		{Low: 85, High: 90, Pct: 0.02},
		{Low: 90, High: 95, Pct: 0.05},
		{Low: 95, High: 100, Pct: 0.08},
	}}
}

// Validate enforces the band table invariants.
func (c SizerConfig) Validate() error {
	if len(c.Bands) == 0 {
		return fmt.Errorf("no sizing bands configured")
	}
	for i, b := range c.Bands {
		if b.Low >= b.High {
			return fmt.Errorf("band %d: low %.2f >= high %.2f", i, b.Low, b.High)
		}
		if b.Pct <= 0 || b.Pct > 1 {
			return fmt.Errorf("band %d: pct %.4f outside (0,1]", i, b.Pct)
		}
		if i > 0 && b.Low != c.Bands[i-1].High {
			return fmt.Errorf("band %d: gap between %.2f and %.2f", i, c.Bands[i-1].High, b.Low)
		}
	}
	return nil
}

// AllocationDecision is the sizing output for one instrument at one moment.
// Dollars is computed against equity at decision time and not revised.
type AllocationDecision struct {
	Instrument string  `json:"instrument"`
	Score      float64 `json:"score"`
	Band       Band    `json:"band"`
	Pct        float64 `json:"pct"`
	Dollars    float64 `json:"dollars"`
}

// Sizer maps confidence scores to equity allocations via the band table.
// Stateless and safe for concurrent use.
type Sizer struct {
	config SizerConfig
}

// NewSizer creates a sizer from a validated band table.
func NewSizer(config SizerConfig) (*Sizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{config: config}, nil
}

// Size returns the allocation for a score against current total equity.
// Scores below the first band's lower bound, or at exactly the gate
// threshold, are a caller contract violation: only gated signals may be
// sized. Returns *RangeError in that case.
func (s *Sizer) Size(instrument string, score, equity float64) (AllocationDecision, error) {
	if equity <= 0 {
		return AllocationDecision{}, &RangeError{Op: "size", Value: equity, Domain: "equity > 0"}
	}
	for i, b := range s.config.Bands {
		inBand := score >= b.Low && score < b.High
		if i == len(s.config.Bands)-1 {
			inBand = score >= b.Low && score <= b.High
		}
		if !inBand {
			continue
		}
		// First band's lower bound is the gate threshold; the gate passes
		// only strictly greater scores, so equality here is a caller bug.
		if i == 0 && score == b.Low {
			break
		}
		return AllocationDecision{
			Instrument: instrument,
			Score:      score,
			Band:       b,
			Pct:        b.Pct,
			Dollars:    equity * b.Pct,
		}, nil
	}
	low := s.config.Bands[0].Low
	high := s.config.Bands[len(s.config.Bands)-1].High
	return AllocationDecision{}, &RangeError{
		Op:     "size",
		Value:  score,
		Domain: fmt.Sprintf("(%.0f,%.0f]", low, high),
	}
}
