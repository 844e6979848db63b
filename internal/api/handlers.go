package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/trogers1052/trade-journal/internal/journal"
	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/service"
)

// JournalService is the subset of the journal used by the HTTP layer
type JournalService interface {
	IngestFill(ctx context.Context, f *models.Fill) (bool, error)
	Recompute(ctx context.Context, account string) ([]models.Round, error)
	Rounds(ctx context.Context, account string) ([]models.Round, error)
	OpenPositions(ctx context.Context, account string) ([]models.Position, error)
	Stats(ctx context.Context, account string) (journal.Stats, error)
	AnalyzeRound(ctx context.Context, account, symbol, roundID string, opts service.AnalyzeOptions) (*models.Round, *models.PriceActionMetrics, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	journal JournalService
	ping    func() error
	log     zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(j JournalService, log zerolog.Logger) *Handler {
	return &Handler{
		journal: j,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// WithHealthCheck makes GET /health report the result of ping
func (h *Handler) WithHealthCheck(ping func() error) *Handler {
	h.ping = ping
	return h
}

// analysisResponse pairs a round with its price-action metrics
type analysisResponse struct {
	Round   *models.Round              `json:"round"`
	Metrics *models.PriceActionMetrics `json:"metrics"`
}

type ingestResponse struct {
	Fill    *models.Fill `json:"fill"`
	Created bool         `json:"created"`
}

// CreateFill handles POST /accounts/{account}/fills
func (h *Handler) CreateFill(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	var fill models.Fill
	if err := json.NewDecoder(r.Body).Decode(&fill); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fill.Account = account
	fill.Side = models.ParseSide(string(fill.Side))
	if fill.ExecutedAt.IsZero() {
		fill.ExecutedAt = time.Now().UTC()
	}

	created, err := h.journal.IngestFill(r.Context(), &fill)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		if _, err := h.journal.Recompute(r.Context(), account); err != nil {
			h.respondServiceError(w, err)
			return
		}
	}
	respondJSON(w, status, ingestResponse{Fill: &fill, Created: created})
}

// GetRounds handles GET /accounts/{account}/rounds
func (h *Handler) GetRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.journal.Rounds(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if rounds == nil {
		rounds = []models.Round{}
	}
	respondJSON(w, http.StatusOK, rounds)
}

// RecomputeRounds handles POST /accounts/{account}/rounds/recompute
func (h *Handler) RecomputeRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.journal.Recompute(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if rounds == nil {
		rounds = []models.Round{}
	}
	respondJSON(w, http.StatusOK, rounds)
}

// GetRoundAnalysis handles GET /accounts/{account}/rounds/{symbol}/{roundID}/analysis
func (h *Handler) GetRoundAnalysis(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var opts service.AnalyzeOptions
	q := r.URL.Query()
	if raw := q.Get("risk"); raw != "" {
		risk, err := strconv.ParseFloat(raw, 64)
		if err != nil || risk <= 0 {
			respondError(w, http.StatusBadRequest, "risk must be a positive number")
			return
		}
		opts.Risk = risk
	}
	if raw := q.Get("timeframe"); raw != "" {
		if _, err := models.ParseTimeframe(raw); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Timeframe = raw
	}

	round, metrics, err := h.journal.AnalyzeRound(r.Context(), vars["account"], vars["symbol"], vars["roundID"], opts)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, analysisResponse{Round: round, Metrics: metrics})
}

// GetPositions handles GET /accounts/{account}/positions
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.journal.OpenPositions(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}
	respondJSON(w, http.StatusOK, positions)
}

// GetStats handles GET /accounts/{account}/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.journal.Stats(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(); err != nil {
			h.log.Warn().Err(err).Msg("Health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidFill):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInsufficientData):
		respondError(w, http.StatusUnprocessableEntity, service.ErrInsufficientData.Error())
	default:
		h.log.Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
