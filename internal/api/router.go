package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/charquest/ml-service/internal/api/handlers"
	"github.com/charquest/ml-service/internal/api/response"
	"github.com/charquest/ml-service/internal/version"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/health", s.healthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Model lifecycle and introspection routes
		modelHandler := handlers.NewModelHandler(s.model, s.source)
		r.Route("/model", func(r chi.Router) {
			r.With(s.rateLimitTrain).Post("/train", modelHandler.Train)
			r.Post("/load", modelHandler.Load)
			r.Get("/metrics", modelHandler.Metrics)
			r.Get("/info", modelHandler.Info)
			r.Get("/importance", modelHandler.Importance)
			r.Get("/importance/chart", modelHandler.ImportanceChart)
			r.Get("/rules", modelHandler.Rules)
			r.Get("/diagram", modelHandler.Diagram)
		})

		// Prediction routes
		predictHandler := handlers.NewPredictHandler(s.model)
		r.Route("/predict", func(r chi.Router) {
			r.Post("/character", predictHandler.Character)
			r.Post("/difficulty", predictHandler.Difficulty)
			r.Post("/guess-count", predictHandler.GuessCount)
			r.Post("/genre", predictHandler.Genre)
			r.Post("/universe", predictHandler.Universe)
		})

		// Character data set routes
		charactersHandler := handlers.NewCharactersHandler(s.source)
		r.Route("/characters", func(r chi.Router) {
			r.Get("/", charactersHandler.List)
			r.Post("/reload", charactersHandler.Reload)
		})

		// Training history routes (require a database)
		if s.store != nil {
			historyHandler := handlers.NewHistoryHandler(s.store)
			r.Route("/history", func(r chi.Router) {
				r.Get("/runs", historyHandler.Runs)
				r.Get("/snapshots", historyHandler.Snapshots)
			})
		}

		// System routes
		systemHandler := handlers.NewSystemHandler()
		r.Get("/system/version", systemHandler.Version)
	})
}

// rateLimitTrain rejects training requests beyond the configured rate.
func (s *Server) rateLimitTrain(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.trainLimiter != nil && !s.trainLimiter.Allow() {
			response.TooManyRequests(w, fmt.Errorf("training rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "charquest-ml",
		"version": version.GetVersion(),
		"trained": s.model.Trained(),
	})
}
