// Package market prices projects from live market data, a cache of it, or the static rate table.
package market

import (
	"fmt"
	"strings"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/pricing"
)

// Request is the pricing input. DetectedSize and Summary come from photo analysis
// and only fill ProjectSize and Description when those are empty.
type Request struct {
	TradeType    string `json:"tradeType"`
	County       string `json:"county"`
	State        string `json:"state"`
	ProjectSize  string `json:"projectSize"`
	Description  string `json:"description,omitempty"`
	DetectedSize string `json:"detectedSize,omitempty"`
	Summary      string `json:"summary,omitempty"`
}

// Normalize trims fields and applies the photo-derived defaults.
func (r Request) Normalize() Request {
	r.TradeType = strings.TrimSpace(r.TradeType)
	r.County = strings.TrimSpace(r.County)
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.ProjectSize = strings.TrimSpace(r.ProjectSize)
	if r.ProjectSize == "" {
		r.ProjectSize = strings.TrimSpace(r.DetectedSize)
	}
	if strings.TrimSpace(r.Description) == "" {
		r.Description = strings.TrimSpace(r.Summary)
	}
	return r
}

// Validate checks required fields of a normalized request.
func (r Request) Validate() error {
	switch {
	case r.TradeType == "":
		return apperr.InvalidInput("tradeType", "is required")
	case r.County == "":
		return apperr.InvalidInput("county", "is required")
	case r.State == "":
		return apperr.InvalidInput("state", "is required")
	}
	_, err := pricing.ParseSize(r.ProjectSize)
	return err
}

// Key identifies one cached market quote.
type Key struct {
	Trade  pricing.TradeType
	Size   pricing.SizeBucket
	State  string
	County string
}

// KeyFor builds the cache key of a validated request.
func KeyFor(r Request) Key {
	size, _ := pricing.ParseSize(r.ProjectSize)
	return Key{
		Trade:  pricing.NormalizeTrade(r.TradeType),
		Size:   size,
		State:  r.State,
		County: r.County,
	}
}

// String renders the key as market:{trade}:{size}:{state}:{county}, lower-cased.
func (k Key) String() string {
	return strings.ToLower(fmt.Sprintf("market:%s:%s:%s:%s", k.Trade, k.Size, k.State, strings.ReplaceAll(k.County, " ", "_")))
}
