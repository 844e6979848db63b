package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents an open tail: fills for a symbol that have not yet
// returned to flat and therefore produce no Round
type Position struct {
	Account    string          `json:"account"`
	Symbol     string          `json:"symbol"`
	Direction  Direction       `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	OpenFillID string          `json:"open_fill_id"`
	OpenTime   time.Time       `json:"open_time"`
	FillCount  int             `json:"fill_count"`
	PnL        decimal.Decimal `json:"pnl"`
	Fee        decimal.Decimal `json:"fee"`
}
