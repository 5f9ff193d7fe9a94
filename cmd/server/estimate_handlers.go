package main

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/estimates"
	"github.com/Simplici0/estimator/internal/export"
	"github.com/Simplici0/estimator/internal/market"
	"github.com/Simplici0/estimator/internal/notify"
	"github.com/Simplici0/estimator/internal/pricing"
)

type createEstimateRequest struct {
	market.Request
	ClientName    string   `json:"clientName"`
	ClientEmail   string   `json:"clientEmail"`
	MarginPercent *float64 `json:"marginPercent,omitempty"`
}

func (s *server) handleEstimateCreate(w http.ResponseWriter, r *http.Request) {
	var req createEstimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	project := req.Request.Normalize()
	if req.ClientName == "" {
		s.writeError(w, r, apperr.InvalidInput("clientName", "is required"))
		return
	}

	markup, err := s.settings.Markup(r.Context(), project.State)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	priced, err := s.market.Price(r.Context(), project, markup)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	est, err := withMargin(priced.Estimate, req.MarginPercent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.estimates.Save(r.Context(), estimates.ProjectData{
		Owner:       userFrom(r.Context()),
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		TradeType:   project.TradeType,
		County:      project.County,
		State:       project.State,
		ProjectSize: project.ProjectSize,
		Description: project.Description,
	}, est, priced.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *server) handleEstimateList(w http.ResponseWriter, r *http.Request) {
	list, err := s.estimates.List(r.Context(), userFrom(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []estimates.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimates": list})
}

// ownedEstimate loads the {id} estimate. Estimates of other users read as missing.
func (s *server) ownedEstimate(r *http.Request) (estimates.Record, error) {
	id := chi.URLParam(r, "id")
	rec, err := s.estimates.Get(r.Context(), id)
	if err != nil {
		return estimates.Record{}, err
	}
	if rec.Project.Owner != userFrom(r.Context()) {
		return estimates.Record{}, apperr.NotFound("estimate", id)
	}
	return rec, nil
}

func (s *server) handleEstimateGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ownedEstimate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleEstimateText(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, export.Text, false)
}

func (s *server) handleEstimateXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, export.XLSX, true)
}

func (s *server) serveDocument(w http.ResponseWriter, r *http.Request, renderer export.Renderer, attachment bool) {
	rec, err := s.ownedEstimate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	doc := export.FromRecord(rec, s.company)
	var buf bytes.Buffer
	if err := renderer.Render(&buf, doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType)
	if attachment {
		w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName()+renderer.Ext+`"`)
	}
	_, _ = buf.WriteTo(w)
}

func (s *server) handleDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := s.documents.Path(name)
	if err != nil {
		s.writeError(w, r, apperr.NotFound("document", name))
		return
	}
	if strings.HasSuffix(name, export.XLSX.Ext) {
		w.Header().Set("Content-Type", export.XLSX.ContentType)
	}
	http.ServeFile(w, r, path)
}

type sendRequest struct {
	ToEmail string `json:"toEmail"`
	ToName  string `json:"toName"`
}

// Delivery outcomes reported by the send endpoint.
const (
	deliverySent    = "sent"
	deliverySkipped = "skipped"
)

type sendResponse struct {
	Status      estimates.Status `json:"status"`
	Delivery    string           `json:"delivery"`
	DocumentURL string           `json:"documentUrl"`
	MessageID   string           `json:"messageId,omitempty"`
}

// handleEstimateSend uploads the workbook and emails its link. The body is optional;
// without it the saved client is the recipient. The estimate becomes sent only when
// the notifier delivered the message.
func (s *server) handleEstimateSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.ownedEstimate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := notify.Message{
		To:             rec.Project.ClientEmail,
		ToName:         rec.Project.ClientName,
		EstimateNumber: rec.Number,
		CompanyName:    s.company.Name,
		Total:          pricing.FormatMoney(rec.Result.Total),
	}
	if req.ToEmail != "" {
		msg.To, msg.ToName = req.ToEmail, req.ToName
	}
	if err := msg.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	doc := export.FromRecord(rec, s.company)
	var buf bytes.Buffer
	if err := export.XLSX.Render(&buf, doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	// The random suffix keeps public document links unguessable.
	name := doc.FileName() + "-" + uuid.NewString() + export.XLSX.Ext
	url, err := s.uploader.Upload(r.Context(), name, export.XLSX.ContentType, &buf)
	if err != nil {
		s.writeError(w, r, apperr.UpstreamUnavailable("document upload failed", err))
		return
	}
	msg.DocumentURL = url

	id, err := s.notifier.SendEstimate(r.Context(), msg)
	if errors.Is(err, notify.ErrNotDelivered) {
		s.logger.Warn("estimate left as draft, email delivery is not configured",
			zap.String("estimate", rec.Number),
			zap.String("document_url", url))
		writeJSON(w, http.StatusOK, sendResponse{Status: rec.Status, Delivery: deliverySkipped, DocumentURL: url})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.estimates.MarkSent(r.Context(), rec.ID, url); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("estimate sent",
		zap.String("estimate", rec.Number),
		zap.String("document_url", url),
		zap.String("message_id", id))
	writeJSON(w, http.StatusOK, sendResponse{Status: estimates.StatusSent, Delivery: deliverySent, DocumentURL: url, MessageID: id})
}
