package main

import (
	"net/http"

	"github.com/Simplici0/estimator/internal/settings"
)

type adminSettingsResponse struct {
	Markup     settings.Markup      `json:"markup"`
	TaxRegions []settings.TaxRegion `json:"taxRegions"`
}

func (s *server) handleAdminMarkupGet(w http.ResponseWriter, r *http.Request) {
	markup, err := s.settings.GetMarkup(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	regions, err := s.settings.ListTaxRegions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if regions == nil {
		regions = []settings.TaxRegion{}
	}
	writeJSON(w, http.StatusOK, adminSettingsResponse{Markup: markup, TaxRegions: regions})
}

func (s *server) handleAdminMarkupUpdate(w http.ResponseWriter, r *http.Request) {
	var m settings.Markup
	if err := decodeJSON(w, r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.settings.UpdateMarkup(r.Context(), m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type taxRegionRequest struct {
	State   string  `json:"state"`
	TaxRate float64 `json:"taxRate"`
}

func (s *server) handleAdminTaxRegionUpsert(w http.ResponseWriter, r *http.Request) {
	var req taxRegionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	region, err := s.settings.UpsertTaxRegion(r.Context(), req.State, req.TaxRate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}
