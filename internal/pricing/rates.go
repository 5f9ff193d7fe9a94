package pricing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Simplici0/estimator/internal/apperr"
)

// TradeType identifies a construction discipline. Values are lower-case.
type TradeType string

const (
	TradeHVAC       TradeType = "hvac"
	TradePlumbing   TradeType = "plumbing"
	TradeElectrical TradeType = "electrical"
	TradeRoofing    TradeType = "roofing"
	TradeDrywall    TradeType = "drywall"
	TradePainting   TradeType = "painting"
)

// NormalizeTrade folds case and surrounding whitespace.
func NormalizeTrade(raw string) TradeType {
	return TradeType(strings.ToLower(strings.TrimSpace(raw)))
}

// SizeBucket is a coarse project-scale classification.
type SizeBucket string

const (
	SizeSmall  SizeBucket = "small"
	SizeMedium SizeBucket = "medium"
	SizeLarge  SizeBucket = "large"
	SizeXLarge SizeBucket = "xlarge"
)

// Sizes lists the buckets in scale order.
var Sizes = []SizeBucket{SizeSmall, SizeMedium, SizeLarge, SizeXLarge}

// ParseSize accepts one of the fixed bucket names, case-insensitively.
func ParseSize(raw string) (SizeBucket, error) {
	size := SizeBucket(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range Sizes {
		if s == size {
			return size, nil
		}
	}
	return "", apperr.InvalidInput("projectSize", "must be one of small, medium, large, xlarge (got %q)", raw)
}

// DefaultSizeFactors are the multipliers applied to small-size reference costs.
var DefaultSizeFactors = map[SizeBucket]float64{
	SizeSmall:  1.0,
	SizeMedium: 2.5,
	SizeLarge:  5.0,
	SizeXLarge: 10.0,
}

// TradeRate is the base per-project cost of a trade at the small reference size.
type TradeRate struct {
	Trade     TradeType `json:"trade" yaml:"trade"`
	Materials float64   `json:"materials" yaml:"materials"`
	Labor     float64   `json:"labor" yaml:"labor"`
	Equipment float64   `json:"equipment" yaml:"equipment"`
}

func (r TradeRate) validate() error {
	for field, v := range map[string]float64{"materials": r.Materials, "labor": r.Labor, "equipment": r.Equipment} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return apperr.InvalidInput(field, "rate for %q must be a non-negative number (got %v)", r.Trade, v)
		}
	}
	return nil
}

// CompetitorBand is observed market pricing for a trade and size.
type CompetitorBand struct {
	Min float64 `json:"min" yaml:"min"`
	Avg float64 `json:"avg" yaml:"avg"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate checks 0 <= Min <= Avg <= Max.
func (b CompetitorBand) Validate() error {
	if b.Min < 0 || b.Min > b.Avg || b.Avg > b.Max {
		return apperr.InvalidInput("competitorBand", "expected 0 <= min <= avg <= max (got %v/%v/%v)", b.Min, b.Avg, b.Max)
	}
	return nil
}

// Fallback policy for trades missing from the table: 2000 split 60% labor, 40% materials.
const (
	DefaultBaseCost   = 2000.0
	defaultLaborShare = 0.60
)

// Synthesized band multipliers applied to materials+labor when no market data exists.
const (
	bandLowFactor  = 0.85
	bandAvgFactor  = 1.15
	bandHighFactor = 1.40
)

type bandKey struct {
	trade TradeType
	size  SizeBucket
}

// RateTable is the immutable trade/size configuration behind Resolve.
// It is safe for concurrent use.
type RateTable struct {
	rates    map[TradeType]TradeRate
	bands    map[bandKey]CompetitorBand
	factors  map[SizeBucket]float64
	fallback TradeRate
}

// BandEntry attaches a competitor band to a trade and size.
type BandEntry struct {
	Trade TradeType      `yaml:"trade"`
	Size  SizeBucket     `yaml:"size"`
	Band  CompetitorBand `yaml:"band"`
}

// NewRateTable validates and copies the inputs. A nil factors map uses DefaultSizeFactors.
func NewRateTable(rates []TradeRate, bands []BandEntry, factors map[SizeBucket]float64) (*RateTable, error) {
	if factors == nil {
		factors = DefaultSizeFactors
	}
	if err := validateFactors(factors); err != nil {
		return nil, err
	}

	t := &RateTable{
		rates:   make(map[TradeType]TradeRate, len(rates)),
		bands:   make(map[bandKey]CompetitorBand, len(bands)),
		factors: make(map[SizeBucket]float64, len(factors)),
		fallback: TradeRate{
			Materials: DefaultBaseCost * (1 - defaultLaborShare),
			Labor:     DefaultBaseCost * defaultLaborShare,
		},
	}
	for k, v := range factors {
		t.factors[k] = v
	}

	for _, r := range rates {
		r.Trade = NormalizeTrade(string(r.Trade))
		if r.Trade == "" {
			return nil, apperr.InvalidInput("trade", "trade name is required")
		}
		if _, dup := t.rates[r.Trade]; dup {
			return nil, apperr.InvalidInput("trade", "duplicate rate for %q", r.Trade)
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		t.rates[r.Trade] = r
	}

	for _, b := range bands {
		size, err := ParseSize(string(b.Size))
		if err != nil {
			return nil, err
		}
		if err := b.Band.Validate(); err != nil {
			return nil, fmt.Errorf("band %s/%s: %w", b.Trade, b.Size, err)
		}
		t.bands[bandKey{NormalizeTrade(string(b.Trade)), size}] = b.Band
	}

	return t, nil
}

func validateFactors(factors map[SizeBucket]float64) error {
	prev := 0.0
	for i, s := range Sizes {
		f, ok := factors[s]
		if !ok {
			return apperr.InvalidInput("sizeFactors", "missing factor for %q", s)
		}
		if i == 0 && f != 1.0 {
			return apperr.InvalidInput("sizeFactors", "factor for %q must be 1.0 (got %v)", s, f)
		}
		if f <= prev {
			return apperr.InvalidInput("sizeFactors", "factor for %q must exceed the previous bucket (got %v)", s, f)
		}
		prev = f
	}
	return nil
}

// Trades returns the configured trades in name order.
func (t *RateTable) Trades() []TradeRate {
	out := make([]TradeRate, 0, len(t.rates))
	for _, r := range t.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Trade < out[j].Trade })
	return out
}

// Factor returns the multiplier for a size bucket.
func (t *RateTable) Factor(size SizeBucket) (float64, bool) {
	f, ok := t.factors[size]
	return f, ok
}

// ResolvedRates is the Rate Resolver output for one trade and size.
type ResolvedRates struct {
	Trade     TradeType      `json:"tradeType"`
	Size      SizeBucket     `json:"projectSize"`
	Factor    float64        `json:"sizeFactor"`
	Materials float64        `json:"materialsCost"`
	Labor     float64        `json:"laborCost"`
	Equipment float64        `json:"equipmentCost"`
	Band      CompetitorBand `json:"competitorBand"`

	// DefaultRate is set when the trade was unknown and the fallback base applied.
	DefaultRate bool `json:"defaultRate,omitempty"`
	// SyntheticBand is set when no market data existed for the pair.
	SyntheticBand bool `json:"syntheticBand,omitempty"`
}

// Resolve scales the trade's reference costs to the requested size and attaches its
// competitor band. Unknown trades degrade to the default base; unknown sizes fail.
func (t *RateTable) Resolve(trade, size string) (ResolvedRates, error) {
	bucket, err := ParseSize(size)
	if err != nil {
		return ResolvedRates{}, err
	}
	factor := t.factors[bucket]

	tt := NormalizeTrade(trade)
	rate, known := t.rates[tt]
	if !known {
		rate = t.fallback
	}

	out := ResolvedRates{
		Trade:       tt,
		Size:        bucket,
		Factor:      factor,
		Materials:   rate.Materials * factor,
		Labor:       rate.Labor * factor,
		Equipment:   rate.Equipment * factor,
		DefaultRate: !known,
	}

	if band, ok := t.bands[bandKey{tt, bucket}]; ok {
		out.Band = band
	} else {
		out.Band = SynthesizeBand(out.Materials, out.Labor)
		out.SyntheticBand = true
	}
	return out, nil
}

// SynthesizeBand derives a band from materials+labor when market data is absent.
func SynthesizeBand(materials, labor float64) CompetitorBand {
	base := materials + labor
	return CompetitorBand{
		Min: base * bandLowFactor,
		Avg: base * bandAvgFactor,
		Max: base * bandHighFactor,
	}
}
