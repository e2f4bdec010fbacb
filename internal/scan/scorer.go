package scan

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Factor names used in weight configuration and score breakdowns.
const (
	FactorTechnical = "technical"
	FactorSocial    = "social"
	FactorInsider   = "insider"
	FactorSentiment = "sentiment"
)

// Weights allocates scoring weight across the four factor families.
// Must sum to 1.0 within WeightSumTolerance; no weight may be negative.
type Weights struct {
	Technical float64 `yaml:"technical" json:"technical"`
	Social    float64 `yaml:"social" json:"social"`
	Insider   float64 `yaml:"insider" json:"insider"`
	Sentiment float64 `yaml:"sentiment" json:"sentiment"`
}

// WeightSumTolerance is the allowed deviation of the weight sum from 1.0.
const WeightSumTolerance = 1e-6

// Sum returns the total weight allocation.
func (w Weights) Sum() float64 {
	return w.Technical + w.Social + w.Insider + w.Sentiment
}

// Validate checks the weight invariants the scorer depends on.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		FactorTechnical: w.Technical,
		FactorSocial:    w.Social,
		FactorInsider:   w.Insider,
		FactorSentiment: w.Sentiment,
	} {
		if v < 0 {
			return fmt.Errorf("negative weight for %s: %.4f", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > WeightSumTolerance {
		return fmt.Errorf("weights sum to %.6f, expected 1.0 ± %.0e", sum, WeightSumTolerance)
	}
	return nil
}

// DefaultWeights mirrors the production allocation: technicals dominate,
// social confirmation second, insider and sentiment split the remainder.
func DefaultWeights() Weights {
	return Weights{Technical: 0.40, Social: 0.30, Insider: 0.15, Sentiment: 0.15}
}

// ScorerConfig tunes the factor normalization curves.
type ScorerConfig struct {
	Weights Weights `yaml:"weights"`

	// SocialSaturationZ is the e-folding scale of the social spike curve:
	// subscore = 1 - exp(-z/scale) for positive z. Small values reward any
	// confirmed spike quickly.
	SocialSaturationZ float64 `yaml:"social_saturation_z"`

	// InsiderCap saturates the insider cluster-buy metric: one full recent
	// cluster maxes the factor.
	InsiderCap float64 `yaml:"insider_cap"`
}

// DefaultScorerConfig returns the production scoring configuration.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Weights:           DefaultWeights(),
		SocialSaturationZ: 0.25,
		InsiderCap:        1.0,
	}
}

// FactorContribution records one factor's share of a confidence score,
// retained for rationale text and auditability.
type FactorContribution struct {
	Factor       string  `json:"factor"`
	SubScore     float64 `json:"sub_score"`    // 0..1 normalized factor value
	Weight       float64 `json:"weight"`       // configured weight
	Contribution float64 `json:"contribution"` // weight * sub_score * 100
}

// ConfidenceScore is the 0-100 cross-source agreement metric for one
// instrument. Deterministic: a pure function of the FeatureRecord and the
// weight configuration, timestamped from the record itself.
type ConfidenceScore struct {
	Instrument  string               `json:"instrument"`
	Score       float64              `json:"score"` // 0..100
	Breakdown   []FactorContribution `json:"breakdown"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Rationale renders the per-factor contributions as a human-readable string,
// highest contribution first.
func (cs ConfidenceScore) Rationale() string {
	parts := make([]string, 0, len(cs.Breakdown))
	sorted := make([]FactorContribution, len(cs.Breakdown))
	copy(sorted, cs.Breakdown)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Contribution != sorted[j].Contribution {
			return sorted[i].Contribution > sorted[j].Contribution
		}
		return sorted[i].Factor < sorted[j].Factor
	})
	for _, fc := range sorted {
		parts = append(parts, fmt.Sprintf("%s %.1f/%.0f", fc.Factor, fc.Contribution, fc.Weight*100))
	}
	return strings.Join(parts, "; ")
}

// Scorer combines normalized features into a ConfidenceScore via weighted
// factor aggregation. Stateless and safe for concurrent use.
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a scorer from a validated configuration.
func NewScorer(config ScorerConfig) (*Scorer, error) {
	if err := config.Weights.Validate(); err != nil {
		return nil, err
	}
	if config.SocialSaturationZ <= 0 {
		return nil, fmt.Errorf("social_saturation_z must be positive, got %.4f", config.SocialSaturationZ)
	}
	if config.InsiderCap <= 0 {
		return nil, fmt.Errorf("insider_cap must be positive, got %.4f", config.InsiderCap)
	}
	return &Scorer{config: config}, nil
}

// Score computes clamp(Σ w_i * subscore_i * 100, 0, 100) with a retained
// per-factor breakdown. Every normalization curve is monotone nondecreasing
// in its input, so raising any single positive factor never lowers the score.
func (s *Scorer) Score(rec FeatureRecord) ConfidenceScore {
	technical := s.technicalSubScore(rec.TrendStrength, rec.BreakoutProximity)
	social := s.socialSubScore(rec.SocialVolumeZ)
	insider := s.insiderSubScore(rec.InsiderCluster)
	sentiment := sentimentSubScore(rec.Sentiment)

	w := s.config.Weights
	breakdown := []FactorContribution{
		{Factor: FactorTechnical, SubScore: technical, Weight: w.Technical, Contribution: w.Technical * technical * 100},
		{Factor: FactorSocial, SubScore: social, Weight: w.Social, Contribution: w.Social * social * 100},
		{Factor: FactorInsider, SubScore: insider, Weight: w.Insider, Contribution: w.Insider * insider * 100},
		{Factor: FactorSentiment, SubScore: sentiment, Weight: w.Sentiment, Contribution: w.Sentiment * sentiment * 100},
	}

	total := 0.0
	for _, fc := range breakdown {
		total += fc.Contribution
	}

	return ConfidenceScore{
		Instrument:  rec.Instrument,
		Score:       math.Max(0, math.Min(100, total)),
		Breakdown:   breakdown,
		GeneratedAt: rec.AsOf,
	}
}

// technicalSubScore fuses trend alignment and breakout proximity: either
// signal alone lifts technical conviction, both together compound.
func (s *Scorer) technicalSubScore(trend, breakout float64) float64 {
	return 1 - (1-clamp01(trend))*(1-clamp01(breakout))
}

// socialSubScore maps the social-volume z-score through a saturating
// exponential. Non-positive z contributes nothing.
func (s *Scorer) socialSubScore(z float64) float64 {
	if z <= 0 {
		return 0
	}
	return 1 - math.Exp(-z/s.config.SocialSaturationZ)
}

// insiderSubScore saturates the weighted cluster-buy count at the cap.
func (s *Scorer) insiderSubScore(cluster float64) float64 {
	return math.Min(cluster/s.config.InsiderCap, 1)
}

// sentimentSubScore rescales the external LLM sentiment scalar from [-1,1]
// to [0,1].
func sentimentSubScore(v float64) float64 {
	return clamp01((v + 1) / 2)
}
