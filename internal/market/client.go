package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/pricing"
)

// Quote is upstream market data for one trade, size and region.
// Costs are at the small reference size.
type Quote struct {
	Materials       float64                `msgpack:"m" json:"materials"`
	Labor           float64                `msgpack:"l" json:"labor"`
	Equipment       float64                `msgpack:"e" json:"equipment"`
	Band            pricing.CompetitorBand `msgpack:"b" json:"band"`
	CompetitorCount int                    `msgpack:"c" json:"competitorCount"`
	FetchedAt       time.Time              `msgpack:"t" json:"fetchedAt"`
}

// Fetcher retrieves live quotes.
type Fetcher interface {
	Fetch(ctx context.Context, key Key) (Quote, error)
}

// ClientConfig configures the market API client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each attempt.
	Timeout time.Duration
	// MaxElapsed bounds all attempts together.
	MaxElapsed time.Duration
}

// Client calls the market pricing API.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient returns a Client. httpClient may be nil.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, logger: logger.Named("market_client")}
}

type apiRequest struct {
	Trade    string      `json:"trade"`
	Location apiLocation `json:"location"`
	Size     string      `json:"projectSize"`
}

type apiLocation struct {
	County string `json:"county"`
	State  string `json:"state"`
}

type apiResponse struct {
	MaterialCost    float64 `json:"materialCost"`
	LaborCost       float64 `json:"laborCost"`
	EquipmentCost   float64 `json:"equipmentCost"`
	MarketAverage   float64 `json:"marketAverage"`
	HighPrice       float64 `json:"highPrice"`
	LowPrice        float64 `json:"lowPrice"`
	CompetitorCount int     `json:"competitorCount"`
}

// Fetch posts the request, retrying transient failures with exponential backoff.
func (c *Client) Fetch(ctx context.Context, key Key) (Quote, error) {
	body, err := json.Marshal(apiRequest{
		Trade:    string(key.Trade),
		Location: apiLocation{County: key.County, State: key.State},
		Size:     string(key.Size),
	})
	if err != nil {
		return Quote{}, apperr.Internal("encode market request", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.cfg.MaxElapsed

	var q Quote
	err = backoff.RetryNotify(
		func() error {
			var attemptErr error
			q, attemptErr = c.attempt(ctx, body)
			return attemptErr
		},
		backoff.WithContext(policy, ctx),
		func(err error, next time.Duration) {
			c.logger.Warn("market API call failed, retrying",
				zap.String("key", key.String()),
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return Quote{}, apperr.UpstreamUnavailable("market pricing unavailable", err)
	}
	return q, nil
}

func (c *Client) attempt(ctx context.Context, body []byte) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/pricing", bytes.NewReader(body))
	if err != nil {
		return Quote{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("post pricing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("pricing API status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return Quote{}, backoff.Permanent(err)
		}
		return Quote{}, err
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Quote{}, backoff.Permanent(fmt.Errorf("decode pricing response: %w", err))
	}

	q := Quote{
		Materials:       out.MaterialCost,
		Labor:           out.LaborCost,
		Equipment:       out.EquipmentCost,
		Band:            pricing.CompetitorBand{Min: out.LowPrice, Avg: out.MarketAverage, Max: out.HighPrice},
		CompetitorCount: out.CompetitorCount,
		FetchedAt:       time.Now().UTC(),
	}
	if err := q.validate(); err != nil {
		return Quote{}, backoff.Permanent(err)
	}
	return q, nil
}

func (q Quote) validate() error {
	for name, v := range map[string]float64{"materialCost": q.Materials, "laborCost": q.Labor, "equipmentCost": q.Equipment} {
		if v < 0 {
			return fmt.Errorf("pricing response has negative %s %v", name, v)
		}
	}
	if q.Band != (pricing.CompetitorBand{}) {
		if err := q.Band.Validate(); err != nil {
			return fmt.Errorf("pricing response band: %w", err)
		}
	}
	return nil
}
