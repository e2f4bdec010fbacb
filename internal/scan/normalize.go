package scan

import (
	"math"
	"time"
)

// RawFeatures is the untrusted per-instrument bundle handed over by the
// external data-aggregation collaborator once per evaluation cycle. Metric
// fields are pointers so a feed that produced nothing for an instrument is
// distinguishable from a genuine zero.
type RawFeatures struct {
	Instrument        string     `json:"instrument" yaml:"instrument"`
	Price             *float64   `json:"price" yaml:"price"`
	MarketCap         *float64   `json:"market_cap" yaml:"market_cap"`
	DollarVolume      *float64   `json:"dollar_volume" yaml:"dollar_volume"`
	TrendStrength     *float64   `json:"trend_strength" yaml:"trend_strength"`
	BreakoutProximity *float64   `json:"breakout_proximity" yaml:"breakout_proximity"`
	SocialVolumeZ     *float64   `json:"social_volume_z" yaml:"social_volume_z"`
	Sentiment         *float64   `json:"sentiment" yaml:"sentiment"`
	InsiderCluster    *float64   `json:"insider_cluster" yaml:"insider_cluster"`
	AsOf              *time.Time `json:"as_of" yaml:"as_of"`
}

// FeatureRecord is the canonical, validated feature set for one instrument.
// Immutable once constructed; exactly one per instrument per cycle.
type FeatureRecord struct {
	Instrument        string    `json:"instrument"`
	Price             float64   `json:"price"`
	MarketCap         float64   `json:"market_cap"`
	DollarVolume      float64   `json:"dollar_volume"`
	TrendStrength     float64   `json:"trend_strength"`     // 0..1
	BreakoutProximity float64   `json:"breakout_proximity"` // 0..1, 1 = at breakout level
	SocialVolumeZ     float64   `json:"social_volume_z"`    // z-score, unbounded
	Sentiment         float64   `json:"sentiment"`          // -1..+1
	InsiderCluster    float64   `json:"insider_cluster"`    // weighted recent cluster-buy count, >= 0
	AsOf              time.Time `json:"as_of"`
}

// Normalizer converts raw feed bundles into FeatureRecords. Pure transform:
// either the whole record is valid or the instrument is rejected, never a
// partial record.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize validates and clamps one raw bundle. Returns a ValidationError
// when a required field is missing, non-finite, or physically impossible.
func (n *Normalizer) Normalize(raw RawFeatures) (FeatureRecord, error) {
	if raw.Instrument == "" {
		return FeatureRecord{}, newValidationError("?", "instrument", "missing")
	}
	if raw.AsOf == nil || raw.AsOf.IsZero() {
		return FeatureRecord{}, newValidationError(raw.Instrument, "as_of", "missing")
	}

	fields := []struct {
		name     string
		value    *float64
		min, max float64
	}{
		{"price", raw.Price, math.SmallestNonzeroFloat64, math.MaxFloat64},
		{"market_cap", raw.MarketCap, 0, math.MaxFloat64},
		{"dollar_volume", raw.DollarVolume, 0, math.MaxFloat64},
		{"trend_strength", raw.TrendStrength, 0, math.Inf(1)},
		{"breakout_proximity", raw.BreakoutProximity, 0, math.Inf(1)},
		{"social_volume_z", raw.SocialVolumeZ, math.Inf(-1), math.Inf(1)},
		{"sentiment", raw.Sentiment, -1, 1},
		{"insider_cluster", raw.InsiderCluster, 0, math.Inf(1)},
	}

	for _, f := range fields {
		if f.value == nil {
			return FeatureRecord{}, newValidationError(raw.Instrument, f.name, "missing")
		}
		v := *f.value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return FeatureRecord{}, newValidationError(raw.Instrument, f.name, "not a finite number")
		}
		if v < f.min || v > f.max {
			return FeatureRecord{}, newValidationError(raw.Instrument, f.name, "out of range")
		}
	}

	return FeatureRecord{
		Instrument:        raw.Instrument,
		Price:             *raw.Price,
		MarketCap:         *raw.MarketCap,
		DollarVolume:      *raw.DollarVolume,
		TrendStrength:     clamp01(*raw.TrendStrength),
		BreakoutProximity: clamp01(*raw.BreakoutProximity),
		SocialVolumeZ:     *raw.SocialVolumeZ,
		Sentiment:         *raw.Sentiment,
		InsiderCluster:    *raw.InsiderCluster,
		AsOf:              raw.AsOf.UTC(),
	}, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
