package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/trade-journal/internal/journal"
	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/service"
)

type fakeJournal struct {
	ingested   []models.Fill
	recomputed []string
	rounds     []models.Round
	positions  []models.Position
	lastOpts   service.AnalyzeOptions
	analyzeErr error
	ingestErr  error
}

func (f *fakeJournal) IngestFill(ctx context.Context, fill *models.Fill) (bool, error) {
	if f.ingestErr != nil {
		return false, f.ingestErr
	}
	for _, existing := range f.ingested {
		if existing.FillID == fill.FillID {
			return false, nil
		}
	}
	f.ingested = append(f.ingested, *fill)
	return true, nil
}

func (f *fakeJournal) Recompute(ctx context.Context, account string) ([]models.Round, error) {
	f.recomputed = append(f.recomputed, account)
	return f.rounds, nil
}

func (f *fakeJournal) Rounds(ctx context.Context, account string) ([]models.Round, error) {
	return f.rounds, nil
}

func (f *fakeJournal) OpenPositions(ctx context.Context, account string) ([]models.Position, error) {
	return f.positions, nil
}

func (f *fakeJournal) Stats(ctx context.Context, account string) (journal.Stats, error) {
	return journal.Summarize(f.rounds), nil
}

func (f *fakeJournal) AnalyzeRound(ctx context.Context, account, symbol, roundID string, opts service.AnalyzeOptions) (*models.Round, *models.PriceActionMetrics, error) {
	f.lastOpts = opts
	if f.analyzeErr != nil {
		return nil, nil, f.analyzeErr
	}
	for i := range f.rounds {
		if f.rounds[i].Symbol == symbol && f.rounds[i].RoundID == roundID {
			return &f.rounds[i], &models.PriceActionMetrics{MFER: 2, Pattern: models.PatternNone}, nil
		}
	}
	return nil, nil, fmt.Errorf("round %s: %w", roundID, service.ErrNotFound)
}

func newTestServer(j *fakeJournal) *httptest.Server {
	return httptest.NewServer(SetupRoutes(NewHandler(j, zerolog.Nop())))
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(&fakeJournal{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	h := NewHandler(&fakeJournal{}, zerolog.Nop()).WithHealthCheck(func() error { return context.DeadlineExceeded })
	srv := httptest.NewServer(SetupRoutes(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateFill(t *testing.T) {
	j := &fakeJournal{}
	srv := newTestServer(j)
	defer srv.Close()

	payload := `{"fill_id":"f-1","symbol":"SLV","side":"buy","amount":"3","price":"67.10","executed_at":"2026-01-02T06:25:55Z"}`

	resp, err := http.Post(srv.URL+"/api/v1/accounts/acct-1/fills", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	require.Len(t, j.ingested, 1)
	f := j.ingested[0]
	assert.Equal(t, "acct-1", f.Account)
	assert.Equal(t, models.SideBuy, f.Side)
	assert.True(t, f.Amount.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, []string{"acct-1"}, j.recomputed)

	resp, err = http.Post(srv.URL+"/api/v1/accounts/acct-1/fills", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body ingestResponse
	decodeBody(t, resp, &body)
	assert.False(t, body.Created)
	assert.Len(t, j.recomputed, 1)
}

func TestCreateFill_BadRequests(t *testing.T) {
	j := &fakeJournal{ingestErr: fmt.Errorf("%w: missing symbol", service.ErrInvalidFill)}
	srv := newTestServer(j)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/accounts/acct-1/fills", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/api/v1/accounts/acct-1/fills", "application/json", strings.NewReader(`{"side":"BUY"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetRounds_EmptyIsArray(t *testing.T) {
	srv := newTestServer(&fakeJournal{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/accounts/acct-1/rounds")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rounds []models.Round
	decodeBody(t, resp, &rounds)
	assert.NotNil(t, rounds)
	assert.Empty(t, rounds)
}

func TestRecomputeAndStats(t *testing.T) {
	j := &fakeJournal{rounds: []models.Round{
		{RoundID: "a", Symbol: "SLV", NetPnL: decimal.NewFromInt(5)},
		{RoundID: "b", Symbol: "SLV", NetPnL: decimal.NewFromInt(-1)},
	}}
	srv := newTestServer(j)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/accounts/acct-1/rounds/recompute", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var rounds []models.Round
	decodeBody(t, resp, &rounds)
	assert.Len(t, rounds, 2)

	resp, err = http.Get(srv.URL + "/api/v1/accounts/acct-1/stats")
	require.NoError(t, err)
	var stats journal.Stats
	decodeBody(t, resp, &stats)
	assert.Equal(t, 2, stats.TotalRounds)
	assert.Equal(t, 1, stats.WinningRounds)
}

func TestGetPositions(t *testing.T) {
	j := &fakeJournal{positions: []models.Position{{Symbol: "B", Quantity: decimal.RequireFromString("2.061433")}}}
	srv := newTestServer(j)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/accounts/acct-1/positions")
	require.NoError(t, err)
	var positions []models.Position
	decodeBody(t, resp, &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, "B", positions[0].Symbol)
}

func TestGetRoundAnalysis(t *testing.T) {
	j := &fakeJournal{rounds: []models.Round{{RoundID: "r1", Symbol: "QQQ"}, {RoundID: "r1", Symbol: "SPY"}}}
	srv := newTestServer(j)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/accounts/acct-1/rounds/SPY/r1/analysis?risk=2.5&timeframe=15m")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body analysisResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "r1", body.Round.RoundID)
	assert.Equal(t, "SPY", body.Round.Symbol)
	assert.InDelta(t, 2.0, body.Metrics.MFER, 1e-9)
	assert.Equal(t, service.AnalyzeOptions{Risk: 2.5, Timeframe: "15m"}, j.lastOpts)
}

func TestGetRoundAnalysis_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		analyzeErr error
		status     int
		message    string
	}{
		{name: "unknown round", path: "/rounds/SPY/missing/analysis", status: http.StatusNotFound},
		{name: "round id under another symbol", path: "/rounds/QQQ/r1/analysis", status: http.StatusNotFound},
		{name: "bad risk", path: "/rounds/SPY/r1/analysis?risk=abc", status: http.StatusBadRequest},
		{name: "negative risk", path: "/rounds/SPY/r1/analysis?risk=-1", status: http.StatusBadRequest},
		{name: "bad timeframe", path: "/rounds/SPY/r1/analysis?timeframe=7m", status: http.StatusBadRequest},
		{
			name:       "no candles",
			path:       "/rounds/SPY/r1/analysis",
			analyzeErr: service.ErrInsufficientData,
			status:     http.StatusUnprocessableEntity,
			message:    "insufficient candle data",
		},
		{
			name:       "storage failure",
			path:       "/rounds/SPY/r1/analysis",
			analyzeErr: fmt.Errorf("failed to load candles: %w", context.DeadlineExceeded),
			status:     http.StatusInternalServerError,
			message:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &fakeJournal{rounds: []models.Round{{RoundID: "r1", Symbol: "SPY"}}, analyzeErr: tt.analyzeErr}
			srv := newTestServer(j)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/api/v1/accounts/acct-1" + tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			if tt.message != "" {
				assert.Equal(t, tt.message, body["error"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}
