package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/pricing"
)

func standardMarkup() pricing.MarkupConfig {
	return pricing.MarkupConfig{OverheadRate: 0.15, ProfitRate: 0.20, TaxRate: 0.0875}
}

func validRequest() Request {
	return Request{TradeType: "plumbing", County: "Franklin", State: "oh", ProjectSize: "medium"}
}

type fakeFetcher struct {
	mu    sync.Mutex
	quote Quote
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ Key) (Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.quote, f.err
}

func TestRequest_NormalizeUsesPhotoDefaults(t *testing.T) {
	r := Request{TradeType: " HVAC ", County: "Travis", State: "tx", DetectedSize: "large", Summary: "Rooftop unit"}.Normalize()

	assert.Equal(t, "large", r.ProjectSize)
	assert.Equal(t, "Rooftop unit", r.Description)
	assert.Equal(t, "TX", r.State)
	require.NoError(t, r.Validate())

	kept := Request{TradeType: "hvac", County: "Travis", State: "TX", ProjectSize: "small", DetectedSize: "large", Description: "mine", Summary: "theirs"}.Normalize()
	assert.Equal(t, "small", kept.ProjectSize)
	assert.Equal(t, "mine", kept.Description)
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing trade", Request{County: "c", State: "OH", ProjectSize: "small"}, "tradeType"},
		{"missing county", Request{TradeType: "hvac", State: "OH", ProjectSize: "small"}, "county"},
		{"missing state", Request{TradeType: "hvac", County: "c", ProjectSize: "small"}, "state"},
		{"unknown size", Request{TradeType: "hvac", County: "c", State: "OH", ProjectSize: "huge"}, "projectSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			var e *apperr.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, apperr.TypeInvalidInput, e.Type)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestKey_String(t *testing.T) {
	k := KeyFor(Request{TradeType: "HVAC", County: "Los Angeles", State: "CA", ProjectSize: "XLarge"})
	assert.Equal(t, "market:hvac:xlarge:ca:los_angeles", k.String())
}

func TestService_FallbackWithoutFetcher(t *testing.T) {
	svc := NewService(pricing.DefaultRateTable(), nil, nil, time.Hour, zap.NewNop())

	res, err := svc.Price(context.Background(), validRequest(), standardMarkup())
	require.NoError(t, err)
	assert.Equal(t, pricing.SourceFallback, res.Source)
	assert.Equal(t, 0, res.CompetitorCount)
	assert.InDelta(t, 1000, res.LaborCost, 1e-9)
	assert.InDelta(t, 500, res.MaterialCost, 1e-9)
	assert.Equal(t, res.Estimate.Total, res.TotalCost)
	assert.Len(t, res.Breakdown, 4)
}

func TestService_LiveThenCache(t *testing.T) {
	fetcher := &fakeFetcher{quote: Quote{
		Materials:       320,
		Labor:           720,
		Band:            pricing.CompetitorBand{Min: 2500, Avg: 3200, Max: 4000},
		CompetitorCount: 9,
	}}
	cache := NewMemoryCache()
	svc := NewService(pricing.DefaultRateTable(), fetcher, cache, time.Hour, zap.NewNop())

	first, err := svc.Price(context.Background(), validRequest(), standardMarkup())
	require.NoError(t, err)
	assert.Equal(t, pricing.SourceLive, first.Source)
	assert.InDelta(t, 800, first.MaterialCost, 1e-9)
	assert.InDelta(t, 1800, first.LaborCost, 1e-9)
	assert.InDelta(t, 3817.125, first.TotalCost, 1e-9)
	assert.Equal(t, 9, first.CompetitorCount)
	assert.Equal(t, pricing.PositionAt, first.MarketPosition)

	second, err := svc.Price(context.Background(), validRequest(), standardMarkup())
	require.NoError(t, err)
	assert.Equal(t, pricing.SourceCache, second.Source)
	assert.InDelta(t, first.TotalCost, second.TotalCost, 1e-9)
	assert.Equal(t, 1, fetcher.calls)
}

func TestService_UpstreamFailureFallsBack(t *testing.T) {
	fetcher := &fakeFetcher{err: apperr.UpstreamUnavailable("down", errors.New("boom"))}
	svc := NewService(pricing.DefaultRateTable(), fetcher, NewMemoryCache(), time.Hour, zap.NewNop())

	res, err := svc.Price(context.Background(), validRequest(), standardMarkup())
	require.NoError(t, err)
	assert.Equal(t, pricing.SourceFallback, res.Source)
}

func TestService_ValidationIsNotMaskedByFallback(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("boom")}
	svc := NewService(pricing.DefaultRateTable(), fetcher, nil, time.Hour, zap.NewNop())

	req := validRequest()
	req.ProjectSize = "huge"
	_, err := svc.Price(context.Background(), req, standardMarkup())
	assert.True(t, apperr.Is(err, apperr.TypeInvalidInput))

	_, err = svc.Price(context.Background(), validRequest(), pricing.MarkupConfig{TaxRate: 2})
	assert.True(t, apperr.Is(err, apperr.TypeInvalidInput))
	assert.Equal(t, 0, fetcher.calls)
}

func TestService_LiveQuoteWithoutBandIsSynthesized(t *testing.T) {
	fetcher := &fakeFetcher{quote: Quote{Materials: 100, Labor: 100}}
	svc := NewService(pricing.DefaultRateTable(), fetcher, nil, time.Hour, zap.NewNop())

	res, err := svc.Price(context.Background(), validRequest(), standardMarkup())
	require.NoError(t, err)
	assert.True(t, res.Estimate.Rates.SyntheticBand)
	assert.InDelta(t, 500*1.15, res.MarketAverage, 1e-9)
}

func TestMemoryCache_Expires(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	key := KeyFor(validRequest())

	require.NoError(t, cache.Set(context.Background(), key, Quote{Labor: 1}, time.Minute))
	_, ok, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, err = cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestQuoteEncoding(t *testing.T) {
	q := Quote{Materials: 1.5, Labor: 2, Band: pricing.CompetitorBand{Min: 1, Avg: 2, Max: 3}, CompetitorCount: 4,
		FetchedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	data, err := encodeQuote(q)
	require.NoError(t, err)
	got, err := decodeQuote(data)
	require.NoError(t, err)
	assert.True(t, got.FetchedAt.Equal(q.FetchedAt))
	got.FetchedAt = q.FetchedAt
	assert.Equal(t, q, got)
}

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{BaseURL: url, APIKey: "secret", Timeout: time.Second, MaxElapsed: 2 * time.Second}, nil, zap.NewNop())
}

func TestClient_FetchSendsRequestAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pricing", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body apiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hvac", body.Trade)
		assert.Equal(t, "OH", body.Location.State)
		assert.Equal(t, "medium", body.Size)

		_ = json.NewEncoder(w).Encode(apiResponse{MaterialCost: 350, LaborCost: 500, MarketAverage: 4200, HighPrice: 5500, LowPrice: 3500, CompetitorCount: 7})
	}))
	defer srv.Close()

	q, err := newTestClient(srv.URL+"/").Fetch(context.Background(), Key{Trade: "hvac", Size: "medium", State: "OH", County: "Franklin"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, q.Labor)
	assert.Equal(t, pricing.CompetitorBand{Min: 3500, Avg: 4200, Max: 5500}, q.Band)
	assert.Equal(t, 7, q.CompetitorCount)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(apiResponse{LaborCost: 1})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), Key{Trade: "hvac", Size: "small"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorsArePermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background(), Key{Trade: "hvac", Size: "small"})
	assert.True(t, apperr.Is(err, apperr.TypeUpstreamUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_AttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, MaxElapsed: 300 * time.Millisecond}, nil, zap.NewNop())
	start := time.Now()
	_, err := c.Fetch(context.Background(), Key{Trade: "hvac", Size: "small"})
	assert.True(t, apperr.Is(err, apperr.TypeUpstreamUnavailable))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWarmer_RunFillsCache(t *testing.T) {
	fetcher := &fakeFetcher{quote: Quote{Labor: 10}}
	cache := NewMemoryCache()
	regions, err := ParseRegions([]string{"oh:Franklin", " TX:Travis "})
	require.NoError(t, err)

	w := NewWarmer(pricing.DefaultRateTable(), fetcher, cache, time.Hour, regions, zap.NewNop())
	stats := w.Run(context.Background())

	want := 2 * 6 * len(pricing.Sizes)
	assert.Equal(t, want, stats.Refreshed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, want, cache.Len())
}

func TestWarmer_CountsFailures(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("down")}
	w := NewWarmer(pricing.DefaultRateTable(), fetcher, NewMemoryCache(), time.Hour, []Region{{State: "OH", County: "Franklin"}}, zap.NewNop())

	stats := w.Run(context.Background())
	assert.Equal(t, 0, stats.Refreshed)
	assert.Equal(t, 6*len(pricing.Sizes), stats.Failed)
}

func TestWarmer_StartRejectsBadSchedule(t *testing.T) {
	w := NewWarmer(pricing.DefaultRateTable(), &fakeFetcher{}, NewMemoryCache(), time.Hour, nil, zap.NewNop())
	assert.Error(t, w.Start(context.Background(), "every tuesday"))

	require.NoError(t, w.Start(context.Background(), "@every 1h"))
	w.Stop()
}

// blockingFetcher holds every fetch until release is closed.
type blockingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, _ Key) (Quote, error) {
	f.calls.Add(1)
	select {
	case <-f.release:
		return Quote{Labor: 10}, nil
	case <-ctx.Done():
		return Quote{}, ctx.Err()
	}
}

func TestWarmer_SkipsRunsWhilePassInProgress(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fetcher := &blockingFetcher{release: make(chan struct{})}
	w := NewWarmer(pricing.DefaultRateTable(), fetcher, NewMemoryCache(), time.Hour, []Region{{State: "OH", County: "Franklin"}}, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, "@every 1s"))

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return logs.FilterMessageSnippet("skipping").Len() > 0 }, 4*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), fetcher.calls.Load(), "a second pass started while the first was blocked")

	cancel()
	close(fetcher.release)
	w.Stop()
}

func TestParseRegions_Rejects(t *testing.T) {
	_, err := ParseRegions([]string{"Ohio"})
	assert.Error(t, err)
}
