package pricing

import (
	"math"

	"github.com/Simplici0/estimator/internal/apperr"
)

// Margin slider bounds, in percent.
const (
	MinMarginPercent = 10.0
	MaxMarginPercent = 45.0
)

// MarkupConfig represents the overhead, profit and tax fractions applied on top of base cost.
type MarkupConfig struct {
	OverheadRate float64 `json:"overheadRate"`
	ProfitRate   float64 `json:"profitRate"`
	TaxRate      float64 `json:"taxRate"`

	// MarginOverride, in percent, replaces ProfitRate when set.
	MarginOverride *float64 `json:"marginOverride,omitempty"`
}

// WithMargin returns a copy of m whose profit comes from marginPercent.
func (m MarkupConfig) WithMargin(marginPercent float64) MarkupConfig {
	pct := marginPercent
	m.MarginOverride = &pct
	return m
}

// EffectiveProfitRate is the profit fraction actually applied.
func (m MarkupConfig) EffectiveProfitRate() float64 {
	if m.MarginOverride != nil {
		return *m.MarginOverride / 100
	}
	return m.ProfitRate
}

// Validate checks every rate is a finite fraction in [0, 1).
func (m MarkupConfig) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"overheadRate", m.OverheadRate},
		{"profitRate", m.ProfitRate},
		{"taxRate", m.TaxRate},
	}
	for _, f := range fields {
		if !isFinite(f.v) || f.v < 0 || f.v >= 1 {
			return apperr.InvalidInput(f.name, "must be a fraction in [0, 1) (got %v)", f.v)
		}
	}
	if m.MarginOverride != nil {
		pct := *m.MarginOverride
		if !isFinite(pct) || pct < 0 || pct >= 100 {
			return apperr.InvalidInput("marginPercent", "must be a percentage in [0, 100) (got %v)", pct)
		}
	}
	return nil
}

// ValidateMargin enforces the interactive slider range.
func ValidateMargin(marginPercent float64) error {
	if !isFinite(marginPercent) || marginPercent < MinMarginPercent || marginPercent > MaxMarginPercent {
		return apperr.InvalidInput("marginPercent", "must be between %v and %v (got %v)", MinMarginPercent, MaxMarginPercent, marginPercent)
	}
	return nil
}

// Category groups line items.
type Category string

const (
	CategoryMaterial  Category = "material"
	CategoryLabor     Category = "labor"
	CategoryEquipment Category = "equipment"
	CategoryOverhead  Category = "overhead"
	CategoryProfit    Category = "profit"
)

// LineItem represents one lump-sum row of the bid.
type LineItem struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Quantity    int      `json:"quantity"`
	Unit        string   `json:"unit"`
	UnitPrice   float64  `json:"unitPrice"`
	LineTotal   float64  `json:"total"`
}

const lumpSumUnit = "project"

func lumpSum(cat Category, desc string, amount float64) LineItem {
	return LineItem{
		Category:    cat,
		Description: desc,
		Quantity:    1,
		Unit:        lumpSumUnit,
		UnitPrice:   amount,
		LineTotal:   amount,
	}
}

// MarketPosition frames the total against the competitor band.
type MarketPosition string

const (
	PositionBelow MarketPosition = "below"
	PositionAt    MarketPosition = "at"
	PositionAbove MarketPosition = "above"
)

// PositionFor classifies total against band.
func PositionFor(total float64, band CompetitorBand) MarketPosition {
	switch {
	case total < band.Avg:
		return PositionBelow
	case total > band.Max:
		return PositionAbove
	default:
		return PositionAt
	}
}

// EstimateResult groups the full pricing output. Values are unrounded.
type EstimateResult struct {
	LineItems      []LineItem     `json:"lineItems"`
	BaseCost       float64        `json:"baseCost"`
	Overhead       float64        `json:"overhead"`
	Profit         float64        `json:"profit"`
	Subtotal       float64        `json:"subtotal"`
	Tax            float64        `json:"tax"`
	Total          float64        `json:"total"`
	CompetitorBand CompetitorBand `json:"competitorBand"`
	MarketPosition MarketPosition `json:"marketPosition"`

	Rates  ResolvedRates `json:"rates"`
	Markup MarkupConfig  `json:"markup"`
}

// Compute derives the estimate from resolved rates and a markup configuration.
// The derivation order is fixed; nothing is rounded.
func Compute(rates ResolvedRates, markup MarkupConfig) (EstimateResult, error) {
	costs := []struct {
		field string
		v     float64
	}{
		{"materialsCost", rates.Materials},
		{"laborCost", rates.Labor},
		{"equipmentCost", rates.Equipment},
	}
	for _, c := range costs {
		if !isFinite(c.v) || c.v < 0 {
			return EstimateResult{}, apperr.InvalidInput(c.field, "must be a non-negative amount (got %v)", c.v)
		}
	}
	if err := markup.Validate(); err != nil {
		return EstimateResult{}, err
	}

	baseCost := rates.Materials + rates.Labor + rates.Equipment
	overhead := baseCost * markup.OverheadRate
	profitRate := markup.EffectiveProfitRate()
	profit := baseCost * profitRate
	subtotal := baseCost + overhead + profit
	tax := subtotal * markup.TaxRate
	total := subtotal + tax

	if !isFinite(total) || subtotal < 0 || total < 0 {
		return EstimateResult{}, apperr.InvalidInput("markup", "produces a negative or non-finite total (%v)", total)
	}

	items := make([]LineItem, 0, 5)
	if rates.Materials != 0 {
		items = append(items, lumpSum(CategoryMaterial, "Materials & Supplies", rates.Materials))
	}
	if rates.Labor != 0 {
		items = append(items, lumpSum(CategoryLabor, "Labor (Professional Installation)", rates.Labor))
	}
	if rates.Equipment != 0 {
		items = append(items, lumpSum(CategoryEquipment, "Equipment", rates.Equipment))
	}
	items = append(items,
		lumpSum(CategoryOverhead, "Overhead ("+FormatPercent(markup.OverheadRate)+")", overhead),
		lumpSum(CategoryProfit, "Profit ("+FormatPercent(profitRate)+")", profit),
	)

	return EstimateResult{
		LineItems:      items,
		BaseCost:       baseCost,
		Overhead:       overhead,
		Profit:         profit,
		Subtotal:       subtotal,
		Tax:            tax,
		Total:          total,
		CompetitorBand: rates.Band,
		MarketPosition: PositionFor(total, rates.Band),
		Rates:          rates,
		Markup:         markup,
	}, nil
}

// Recompute reprices prev under a new margin from the same base cost.
// prev is not modified.
func Recompute(prev EstimateResult, marginPercent float64) (EstimateResult, error) {
	if err := ValidateMargin(marginPercent); err != nil {
		return EstimateResult{}, err
	}
	return Compute(prev.Rates, prev.Markup.WithMargin(marginPercent))
}

// Estimate resolves trade and size against t and computes the result.
func (t *RateTable) Estimate(trade, size string, markup MarkupConfig) (EstimateResult, error) {
	rates, err := t.Resolve(trade, size)
	if err != nil {
		return EstimateResult{}, err
	}
	return Compute(rates, markup)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
