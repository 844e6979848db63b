package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Account routes
	api := r.PathPrefix("/api/v1/accounts/{account}").Subrouter()
	api.HandleFunc("/fills", handler.CreateFill).Methods("POST")
	api.HandleFunc("/rounds", handler.GetRounds).Methods("GET")
	api.HandleFunc("/rounds/recompute", handler.RecomputeRounds).Methods("POST")
	api.HandleFunc("/rounds/{symbol}/{roundID}/analysis", handler.GetRoundAnalysis).Methods("GET")
	api.HandleFunc("/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/stats", handler.GetStats).Methods("GET")

	return r
}
