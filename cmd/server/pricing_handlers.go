package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/market"
	"github.com/Simplici0/estimator/internal/pricing"
)

type sizeView struct {
	Size   pricing.SizeBucket `json:"size"`
	Factor float64            `json:"factor"`
}

type tradesResponse struct {
	Trades           []pricing.TradeRate `json:"trades"`
	Sizes            []sizeView          `json:"sizes"`
	MinMarginPercent float64             `json:"minMarginPercent"`
	MaxMarginPercent float64             `json:"maxMarginPercent"`
}

func (s *server) handleTrades(w http.ResponseWriter, r *http.Request) {
	table := s.market.Table()
	sizes := make([]sizeView, 0, len(pricing.Sizes))
	for _, size := range pricing.Sizes {
		f, _ := table.Factor(size)
		sizes = append(sizes, sizeView{Size: size, Factor: f})
	}

	writeJSON(w, http.StatusOK, tradesResponse{
		Trades:           table.Trades(),
		Sizes:            sizes,
		MinMarginPercent: pricing.MinMarginPercent,
		MaxMarginPercent: pricing.MaxMarginPercent,
	})
}

func (s *server) handlePricing(w http.ResponseWriter, r *http.Request) {
	var req market.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	markup, err := s.settings.Markup(r.Context(), req.State)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.market.Price(r.Context(), req, markup)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type computeRequest struct {
	market.Request
	MarginPercent *float64 `json:"marginPercent,omitempty"`
}

// displayTotals are the rounded, formatted amounts shown to users.
type displayTotals struct {
	BaseCost string `json:"baseCost"`
	Overhead string `json:"overhead"`
	Profit   string `json:"profit"`
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

func newDisplayTotals(est pricing.EstimateResult) displayTotals {
	return displayTotals{
		BaseCost: pricing.FormatMoney(est.BaseCost),
		Overhead: pricing.FormatMoney(est.Overhead),
		Profit:   pricing.FormatMoney(est.Profit),
		Subtotal: pricing.FormatMoney(est.Subtotal),
		Tax:      pricing.FormatMoney(est.Tax),
		Total:    pricing.FormatMoney(est.Total),
	}
}

type computeResponse struct {
	Estimate pricing.EstimateResult `json:"estimate"`
	Display  displayTotals          `json:"display"`
	Source   pricing.Source         `json:"source"`
}

// baseEstimate prices req from the static table with the configured markup and no margin override.
func (s *server) baseEstimate(ctx context.Context, req market.Request) (pricing.EstimateResult, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return pricing.EstimateResult{}, err
	}
	markup, err := s.settings.Markup(ctx, req.State)
	if err != nil {
		return pricing.EstimateResult{}, err
	}
	return s.market.Table().Estimate(req.TradeType, req.ProjectSize, markup)
}

func withMargin(est pricing.EstimateResult, marginPercent *float64) (pricing.EstimateResult, error) {
	if marginPercent == nil {
		return est, nil
	}
	return pricing.Recompute(est, *marginPercent)
}

func (s *server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	est, err := s.baseEstimate(r.Context(), req.Request)
	if err == nil {
		est, err = withMargin(est, req.MarginPercent)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, computeResponse{Estimate: est, Display: newDisplayTotals(est), Source: pricing.SourceFallback})
}

// liveFrame is one slider update. The first frame must carry a request; later
// frames may carry only a margin and are repriced from the same base.
type liveFrame struct {
	Request       *market.Request `json:"request,omitempty"`
	MarginPercent *float64        `json:"marginPercent,omitempty"`
}

type liveReply struct {
	Estimate *pricing.EstimateResult `json:"estimate,omitempty"`
	Display  *displayTotals          `json:"display,omitempty"`
	Error    *apperr.Error           `json:"error,omitempty"`
}

func (s *server) handleLive(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	ctx := r.Context()
	var base *pricing.EstimateResult
	for {
		var frame liveFrame
		if err := wsjson.Read(ctx, c, &frame); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.Close(websocket.StatusNormalClosure, "")
			default:
				s.logger.Debug("live estimate stream ended", zap.Error(err))
			}
			return
		}

		if err := wsjson.Write(ctx, c, s.liveStep(ctx, &base, frame)); err != nil {
			s.logger.Debug("live estimate write failed", zap.Error(err))
			return
		}
	}
}

func (s *server) liveStep(ctx context.Context, base **pricing.EstimateResult, frame liveFrame) liveReply {
	fail := func(err error) liveReply {
		var e *apperr.Error
		if !errors.As(err, &e) || e.Type != apperr.TypeInvalidInput {
			s.logger.Error("live estimate failed", zap.Error(err))
			e = &apperr.Error{Type: apperr.TypeInternal, Message: "internal error"}
		}
		return liveReply{Error: e}
	}

	if frame.Request != nil {
		est, err := s.baseEstimate(ctx, *frame.Request)
		if err != nil {
			return fail(err)
		}
		*base = &est
	}
	if *base == nil {
		return fail(apperr.InvalidInput("request", "the first message must include a request"))
	}

	est, err := withMargin(**base, frame.MarginPercent)
	if err != nil {
		return fail(err)
	}
	display := newDisplayTotals(est)
	return liveReply{Estimate: &est, Display: &display}
}

// originPatterns converts CORS origins to websocket host patterns.
func (s *server) originPatterns() []string {
	out := make([]string, 0, len(s.origins))
	for _, o := range s.origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
