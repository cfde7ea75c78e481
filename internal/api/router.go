// Package api assembles the HTTP router for the cold-chain backend.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aegisharvest/coldchain/internal/api/handlers"
	"github.com/aegisharvest/coldchain/internal/api/middleware"
	"github.com/aegisharvest/coldchain/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		// ML prediction
		r.Route("/predict", func(r chi.Router) {
			r.Post("/", h.Predict)
			r.Post("/quick", h.QuickPredict)
		})

		// Sensor telemetry
		r.Route("/telemetry", func(r chi.Router) {
			r.Post("/", h.LogTelemetry)
			r.Get("/latest", h.LatestTelemetry)
		})

		// Fleet
		r.Route("/routes", func(r chi.Router) {
			r.Get("/", h.ListRoutes)
			r.Post("/", h.UpsertRoute)
			r.Get("/{routeID}", h.GetRoute)
		})
		r.Route("/facilities", func(r chi.Router) {
			r.Get("/", h.ListFacilities)
			r.Patch("/{name}", h.UpdateFacility)
		})
		r.Route("/trips", func(r chi.Router) {
			r.Get("/", h.ListTrips)
			r.Post("/", h.AddTrip)
		})

		// Market Pivot Engine
		r.Route("/rescue", func(r chi.Router) {
			r.Get("/", h.ListRescuePoints)
			r.Get("/best", h.BestRescuePoint)
		})

		// Recommendations (human-in-the-loop)
		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/", h.ListRecommendations)
			r.Post("/{recID}/action", h.ActionRecommendation)
		})

		// Copilot agent
		r.Route("/agent", func(r chi.Router) {
			r.Post("/chat", h.AgentChat)
			r.Post("/analyze", h.AgentAnalyze)
			r.Get("/history/{sessionID}", h.AgentHistory)
		})
	})

	// Live telemetry feed
	r.Get("/ws/telemetry", wsHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "coldchain-backend",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "coldchain-backend",
		})
	}
}
