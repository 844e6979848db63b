package models

// Structure classifications
const (
	StructureApproachingResistance = "Approaching Resistance"
	StructureSittingOnSupport      = "Sitting on Support"
	StructureRanging               = "Ranging"
	StructureNone                  = "No Clear Structure"
)

// Trend classifications
const (
	TrendUp          = "Uptrend Structure"
	TrendDown        = "Downtrend Structure"
	TrendExpansion   = "Expansion"
	TrendContraction = "Contraction"
	TrendNone        = "No Trend"
)

// PatternNone is reported when no pattern fired near the entry bar
const PatternNone = "No Significant Pattern"

// PriceActionMetrics holds the path-dependent analytics for one round.
// It is recomputed on request and never persisted alongside raw candles.
type PriceActionMetrics struct {
	MAER       float64  `json:"mae_r"`
	MFER       float64  `json:"mfe_r"`
	ETDR       float64  `json:"etd_r"`
	MAEATR     float64  `json:"mae_atr"`
	MFEATR     float64  `json:"mfe_atr"`
	MAD        int      `json:"mad"`
	Efficiency float64  `json:"efficiency"`
	RVOL       float64  `json:"rvol"`
	Patterns   []string `json:"patterns"`
	Pattern    string   `json:"pattern"`
	Structure  string   `json:"structure"`
	Trend      string   `json:"trend"`
	Resistance *float64 `json:"resistance,omitempty"`
	Support    *float64 `json:"support,omitempty"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	ATR        float64  `json:"atr"`

	Degradations []Degradation `json:"degradations,omitempty"`
}

// Degradation records a sub-analysis that fell back to its default value
type Degradation struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}
