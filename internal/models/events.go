package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventFillDetected     = "FILL_DETECTED"
	EventRoundsRecomputed = "ROUNDS_RECOMPUTED"
	EventRoundAnalyzed    = "ROUND_ANALYZED"
)

// RoundEvent represents a Kafka event for journal changes
type RoundEvent struct {
	EventType  string              `json:"event_type"`
	Account    string              `json:"account"`
	RoundCount int                 `json:"round_count,omitempty"`
	NetPnL     decimal.Decimal     `json:"net_pnl"`
	Round      *Round              `json:"round,omitempty"`
	Metrics    *PriceActionMetrics `json:"metrics,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}
