package market

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/pricing"
)

// PricingResult is the flat pricing response. Estimate carries the full result for saving.
type PricingResult struct {
	BaseCost        float64                `json:"baseCost"`
	LaborCost       float64                `json:"laborCost"`
	MaterialCost    float64                `json:"materialCost"`
	EquipmentCost   float64                `json:"equipmentCost"`
	Overhead        float64                `json:"overhead"`
	Profit          float64                `json:"profit"`
	Subtotal        float64                `json:"subtotal"`
	Tax             float64                `json:"tax"`
	TotalCost       float64                `json:"totalCost"`
	MarketAverage   float64                `json:"marketAverage"`
	HighPrice       float64                `json:"highPrice"`
	LowPrice        float64                `json:"lowPrice"`
	CompetitorCount int                    `json:"competitorCount"`
	MarketPosition  pricing.MarketPosition `json:"marketPosition"`
	Source          pricing.Source         `json:"source"`
	Breakdown       []pricing.LineItem     `json:"breakdown"`

	Estimate pricing.EstimateResult `json:"-"`
}

// NewPricingResult flattens an estimate for the pricing response.
func NewPricingResult(est pricing.EstimateResult, source pricing.Source, competitorCount int) PricingResult {
	return PricingResult{
		BaseCost:        est.BaseCost,
		LaborCost:       est.Rates.Labor,
		MaterialCost:    est.Rates.Materials,
		EquipmentCost:   est.Rates.Equipment,
		Overhead:        est.Overhead,
		Profit:          est.Profit,
		Subtotal:        est.Subtotal,
		Tax:             est.Tax,
		TotalCost:       est.Total,
		MarketAverage:   est.CompetitorBand.Avg,
		HighPrice:       est.CompetitorBand.Max,
		LowPrice:        est.CompetitorBand.Min,
		CompetitorCount: competitorCount,
		MarketPosition:  est.MarketPosition,
		Source:          source,
		Breakdown:       est.LineItems,
		Estimate:        est,
	}
}

// Service chooses between cached, live and static pricing.
type Service struct {
	table   *pricing.RateTable
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewService returns a Service. fetcher and cache may be nil; without a fetcher
// every request is priced from the static table.
func NewService(table *pricing.RateTable, fetcher Fetcher, cache Cache, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		table:   table,
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.Named("market"),
	}
}

// Table returns the static rate table behind the fallback path.
func (s *Service) Table() *pricing.RateTable {
	return s.table
}

// Price validates req and prices it from the cache, the live API, or the static table, in that order.
// Upstream failures fall back; validation errors are returned as is.
func (s *Service) Price(ctx context.Context, req Request, markup pricing.MarkupConfig) (PricingResult, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return PricingResult{}, err
	}
	if err := markup.Validate(); err != nil {
		return PricingResult{}, err
	}
	key := KeyFor(req)

	if s.cache != nil {
		q, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("market cache read failed", zap.String("key", key.String()), zap.Error(err))
		} else if ok {
			return s.fromQuote(key, q, markup, pricing.SourceCache)
		}
	}

	if s.fetcher != nil {
		q, err := s.fetcher.Fetch(ctx, key)
		if err == nil {
			if s.cache != nil {
				if err := s.cache.Set(ctx, key, q, s.ttl); err != nil {
					s.logger.Warn("market cache write failed", zap.String("key", key.String()), zap.Error(err))
				}
			}
			return s.fromQuote(key, q, markup, pricing.SourceLive)
		}
		s.logger.Warn("live market pricing failed, using fallback",
			zap.String("key", key.String()),
			zap.String("error_type", string(apperr.TypeOf(err))),
			zap.Error(err))
	}

	est, err := s.table.Estimate(req.TradeType, req.ProjectSize, markup)
	if err != nil {
		return PricingResult{}, err
	}
	return NewPricingResult(est, pricing.SourceFallback, 0), nil
}

// Resolve converts a quote into resolved rates for key's size.
func (s *Service) Resolve(key Key, q Quote) (pricing.ResolvedRates, error) {
	factor, ok := s.table.Factor(key.Size)
	if !ok {
		return pricing.ResolvedRates{}, apperr.InvalidInput("projectSize", "unknown size %q", key.Size)
	}

	rates := pricing.ResolvedRates{
		Trade:     key.Trade,
		Size:      key.Size,
		Factor:    factor,
		Materials: q.Materials * factor,
		Labor:     q.Labor * factor,
		Equipment: q.Equipment * factor,
		Band:      q.Band,
	}
	if q.Band == (pricing.CompetitorBand{}) {
		rates.Band = pricing.SynthesizeBand(rates.Materials, rates.Labor)
		rates.SyntheticBand = true
	}
	return rates, nil
}

func (s *Service) fromQuote(key Key, q Quote, markup pricing.MarkupConfig, source pricing.Source) (PricingResult, error) {
	rates, err := s.Resolve(key, q)
	if err != nil {
		return PricingResult{}, err
	}
	est, err := pricing.Compute(rates, markup)
	if err != nil {
		return PricingResult{}, err
	}
	return NewPricingResult(est, source, q.CompetitorCount), nil
}
