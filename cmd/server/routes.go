package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	// Websocket connections outlive the request timeout.
	r.Get("/api/estimates/live", s.handleLive)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Get("/api/trades", s.handleTrades)
		r.Post("/api/pricing", s.handlePricing)
		r.Post("/api/estimates/compute", s.handleCompute)

		// Emailed document links; names carry a random suffix.
		if s.documents != nil {
			r.Get("/documents/{name}", s.handleDocument)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/api/estimates", s.handleEstimateCreate)
			r.Get("/api/estimates", s.handleEstimateList)
			r.Get("/api/estimates/{id}", s.handleEstimateGet)
			r.Get("/api/estimates/{id}/text", s.handleEstimateText)
			r.Get("/api/estimates/{id}/xlsx", s.handleEstimateXLSX)
			r.Post("/api/estimates/{id}/send", s.handleEstimateSend)

			r.Get("/admin/markup", s.handleAdminMarkupGet)
			r.Post("/admin/markup", s.handleAdminMarkupUpdate)
			r.Post("/admin/tax-regions", s.handleAdminTaxRegionUpsert)
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// accessLog logs one line per request.
func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
