package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a single execution.
type Side string

// Side constants
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	// SideUnknown marks a fill whose side was not populated by the source.
	SideUnknown Side = ""
)

// ParseSide normalizes an exchange side string. Anything other than buy/sell
// maps to SideUnknown.
func ParseSide(s string) Side {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B", "BID":
		return SideBuy
	case "SELL", "S", "ASK":
		return SideSell
	default:
		return SideUnknown
	}
}

// Sign returns the signed contribution of this side to a running position.
func (s Side) Sign() int {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// Fill represents a single exchange execution with its review metadata
type Fill struct {
	ID         int             `json:"id"`
	FillID     string          `json:"fill_id"`
	Account    string          `json:"account"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	PnL        decimal.Decimal `json:"pnl"`
	Fee        decimal.Decimal `json:"fee"`
	ExecutedAt time.Time       `json:"executed_at"`
	Notes      string          `json:"notes,omitempty"`
	Strategy   string          `json:"strategy,omitempty"`
	AIAnalysis string          `json:"ai_analysis,omitempty"`
	Screenshot string          `json:"screenshot,omitempty"`
	MAE        *float64        `json:"mae,omitempty"`
	MFE        *float64        `json:"mfe,omitempty"`
	ETD        *float64        `json:"etd,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SignedAmount returns +amount for buys, -amount for sells and zero otherwise.
func (f *Fill) SignedAmount() decimal.Decimal {
	switch f.Side.Sign() {
	case 1:
		return f.Amount
	case -1:
		return f.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// Review returns the review metadata carried by this fill.
func (f *Fill) Review() Review {
	return Review{
		Notes:      f.Notes,
		Strategy:   f.Strategy,
		AIAnalysis: f.AIAnalysis,
		Screenshot: f.Screenshot,
		MAE:        copyFloat(f.MAE),
		MFE:        copyFloat(f.MFE),
		ETD:        copyFloat(f.ETD),
	}
}

// Review holds the journal metadata a trader attaches to a fill. A Round owns
// its own copy taken from the opening fill.
type Review struct {
	Notes      string   `json:"notes,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
	AIAnalysis string   `json:"ai_analysis,omitempty"`
	Screenshot string   `json:"screenshot,omitempty"`
	MAE        *float64 `json:"mae,omitempty"`
	MFE        *float64 `json:"mfe,omitempty"`
	ETD        *float64 `json:"etd,omitempty"`
}

// ReviewUpdate changes only the review fields that are non-nil
type ReviewUpdate struct {
	Notes      *string
	Strategy   *string
	AIAnalysis *string
	Screenshot *string
	MAE        *float64
	MFE        *float64
	ETD        *float64
}

// IsEmpty reports whether the update would change nothing.
func (u ReviewUpdate) IsEmpty() bool {
	return u.Notes == nil && u.Strategy == nil && u.AIAnalysis == nil && u.Screenshot == nil &&
		u.MAE == nil && u.MFE == nil && u.ETD == nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// FillDefaults enumerates the value used for every optional fill field when
// the source leaves it empty or sends something unparseable.
type FillDefaults struct {
	Amount     decimal.Decimal
	Price      decimal.Decimal
	PnL        decimal.Decimal
	Fee        decimal.Decimal
	Notes      string
	Screenshot string
}

// DefaultFillDefaults returns the ingestion defaults: zero for numbers, empty
// strings for text.
func DefaultFillDefaults() FillDefaults {
	return FillDefaults{
		Amount: decimal.Zero,
		Price:  decimal.Zero,
		PnL:    decimal.Zero,
		Fee:    decimal.Zero,
	}
}

// ParseDecimalOr parses s, falling back to def when s is empty or invalid.
// coerced reports whether a non-empty input had to be replaced.
func ParseDecimalOr(s string, def decimal.Decimal) (v decimal.Decimal, coerced bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, false
	}
	parsed, err := decimal.NewFromString(s)
	if err != nil {
		return def, true
	}
	return parsed, false
}

// FillEvent represents a Kafka event carrying a detected execution
type FillEvent struct {
	EventType string        `json:"event_type"`
	Source    string        `json:"source"`
	Timestamp string        `json:"timestamp"`
	Data      FillEventData `json:"data"`
}

// FillEventData is the string-typed execution payload sent by exchange sync
type FillEventData struct {
	FillID     string  `json:"fill_id"`
	Account    string  `json:"account"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Amount     string  `json:"amount"`
	Price      string  `json:"price"`
	PnL        string  `json:"pnl"`
	Fee        string  `json:"fee"`
	Timestamp  int64   `json:"timestamp"`
	ExecutedAt *string `json:"executed_at,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	Strategy   string  `json:"strategy,omitempty"`
	Screenshot string  `json:"screenshot,omitempty"`
}
