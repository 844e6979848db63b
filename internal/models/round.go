package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is fixed by the fill that opens a round
type Direction string

// Direction constants
const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// DirectionForSide returns the direction a flat position takes when a fill
// of the given side opens it.
func DirectionForSide(s Side) Direction {
	if s == SideSell {
		return DirectionShort
	}
	return DirectionLong
}

// RoundStatusClosed is the only status an assembled round can carry
const RoundStatusClosed = "Closed"

// Round represents one flat-to-flat position round-trip
type Round struct {
	ID            int             `json:"id,omitempty"`
	RoundID       string          `json:"round_id"`
	Account       string          `json:"account"`
	Symbol        string          `json:"symbol"`
	Direction     Direction       `json:"direction"`
	OpenTime      time.Time       `json:"open_time"`
	CloseTime     time.Time       `json:"close_time"`
	Duration      time.Duration   `json:"duration"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	TotalFee      decimal.Decimal `json:"total_fee"`
	NetPnL        decimal.Decimal `json:"net_pnl"`
	FillCount     int             `json:"fill_count"`
	Status        string          `json:"status"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	AvgExitPrice  decimal.Decimal `json:"avg_exit_price"`
	MaxQuantity   decimal.Decimal `json:"max_quantity"`
	Review
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// IsWin reports whether the round closed with positive net PnL.
func (r *Round) IsWin() bool {
	return r.NetPnL.IsPositive()
}
