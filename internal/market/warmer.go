package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/pricing"
)

// Region is a state and county whose quotes are kept warm.
type Region struct {
	State  string
	County string
}

// ParseRegions reads "STATE:County" entries.
func ParseRegions(raw []string) ([]Region, error) {
	out := make([]Region, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		state, county, ok := strings.Cut(r, ":")
		state, county = strings.ToUpper(strings.TrimSpace(state)), strings.TrimSpace(county)
		if !ok || state == "" || county == "" {
			return nil, fmt.Errorf("invalid warmup region %q, want STATE:County", r)
		}
		out = append(out, Region{State: state, County: county})
	}
	return out, nil
}

// WarmStats counts one warmup pass.
type WarmStats struct {
	Refreshed int
	Failed    int
}

// Warmer refreshes cached quotes for every configured trade, size and region.
type Warmer struct {
	table   *pricing.RateTable
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	regions []Region
	logger  *zap.Logger
	cron    *cron.Cron
}

// NewWarmer returns a Warmer; call Start to schedule it. A pass that is still
// running when the next one is due makes the schedule skip that run.
func NewWarmer(table *pricing.RateTable, fetcher Fetcher, cache Cache, ttl time.Duration, regions []Region, logger *zap.Logger) *Warmer {
	logger = logger.Named("market_warmer")
	cl := cronLogger{s: logger.Sugar()}
	return &Warmer{
		table:   table,
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		regions: regions,
		logger:  logger,
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.s.Warnw("market warmup still running, skipping scheduled run", keysAndValues...)
		return
	}
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Run performs one pass. Individual failures are logged and counted.
func (w *Warmer) Run(ctx context.Context) WarmStats {
	var stats WarmStats
	for _, region := range w.regions {
		for _, rate := range w.table.Trades() {
			for _, size := range pricing.Sizes {
				if ctx.Err() != nil {
					return stats
				}
				key := Key{Trade: rate.Trade, Size: size, State: region.State, County: region.County}

				q, err := w.fetcher.Fetch(ctx, key)
				if err == nil {
					err = w.cache.Set(ctx, key, q, w.ttl)
				}
				if err != nil {
					stats.Failed++
					w.logger.Warn("warm market quote failed", zap.String("key", key.String()), zap.Error(err))
					continue
				}
				stats.Refreshed++
			}
		}
	}
	return stats
}

// Start schedules Run on a standard five-field cron spec or a descriptor such as "@every 6h".
func (w *Warmer) Start(ctx context.Context, schedule string) error {
	_, err := w.cron.AddFunc(schedule, func() {
		start := time.Now()
		stats := w.Run(ctx)
		w.logger.Info("market cache warmed",
			zap.Int("refreshed", stats.Refreshed),
			zap.Int("failed", stats.Failed),
			zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule market warmup %q: %w", schedule, err)
	}

	w.cron.Start()
	w.logger.Info("market warmup scheduled", zap.String("schedule", schedule), zap.Int("regions", len(w.regions)))
	return nil
}

// Stop halts the schedule and waits for a running pass.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
}
