// Package priceaction scores a closed round against the candles around it:
// excursions in R and ATR units, market structure, trend and candlestick
// patterns at entry.
package priceaction

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trogers1052/trade-journal/internal/models"
)

// Config holds the analyzer's tunables.
type Config struct {
	ATRPeriod      int
	VolumePeriod   int
	LookbackBars   int
	ExitBuffer     time.Duration
	FractalSpan    int
	FractalCount   int
	Proximity      float64
	PatternBars    int
	RiskFloor      float64
	ATRFallbackPct float64
}

// DefaultConfig returns the standard analysis parameters.
func DefaultConfig() Config {
	return Config{
		ATRPeriod:      14,
		VolumePeriod:   20,
		LookbackBars:   60,
		ExitBuffer:     5 * time.Minute,
		FractalSpan:    5,
		FractalCount:   3,
		Proximity:      0.005,
		PatternBars:    3,
		RiskFloor:      1.0,
		ATRFallbackPct: 0.01,
	}
}

// Request describes the round being analyzed.
type Request struct {
	Direction  models.Direction
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	Quantity   float64
	RiskAmount float64
}

// RequestForRound builds a Request from an assembled round.
func RequestForRound(r *models.Round, risk float64) Request {
	entry, _ := r.AvgEntryPrice.Float64()
	exit, _ := r.AvgExitPrice.Float64()
	qty, _ := r.MaxQuantity.Float64()
	return Request{
		Direction:  r.Direction,
		EntryPrice: entry,
		ExitPrice:  exit,
		OpenTime:   r.OpenTime,
		CloseTime:  r.CloseTime,
		Quantity:   qty,
		RiskAmount: risk,
	}
}

// Analyzer is stateless apart from its config and may be shared across goroutines.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// New creates an Analyzer.
func New(cfg Config, log zerolog.Logger) *Analyzer {
	return &Analyzer{cfg: cfg, log: log.With().Str("component", "priceaction").Logger()}
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// Analyze computes metrics for req. It returns nil when there are no candles
// or none fall inside the lookback window.
func (a *Analyzer) Analyze(req Request, candles []models.Candle) *models.PriceActionMetrics {
	if len(candles) == 0 {
		return nil
	}
	series := make([]models.Candle, len(candles))
	copy(series, candles)
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	r := &report{log: a.log}

	// Volatility baseline over the full series
	atr := unwrap(r, "atr", atrSeries(series, a.cfg.ATRPeriod))
	volBase := unwrap(r, "volume_baseline", volumeBaseline(series, a.cfg.VolumePeriod))

	sig := signals(r, series)

	// Window
	n := len(series)
	entryIdx := sort.Search(n, func(i int) bool { return !series[i].Timestamp.Before(req.OpenTime) })
	start := max(0, entryIdx-a.cfg.LookbackBars)
	limit := req.CloseTime.Add(a.cfg.ExitBuffer)
	end := sort.Search(n, func(i int) bool { return series[i].Timestamp.After(limit) })
	if start >= end {
		return nil
	}
	// Last bar at or before the open
	entryBar := sort.Search(n, func(i int) bool { return series[i].Timestamp.After(req.OpenTime) }) - 1
	if entryBar < start {
		entryBar = start
	}
	if entryBar >= end {
		entryBar = end - 1
	}

	// Structure and trend on the pre-entry part of the window
	preEnd := min(entryIdx, end)
	frac := unwrap(r, "fractals", findFractals(series[start:preEnd], a.cfg.FractalSpan))
	resistance, support := levels(frac, req.EntryPrice, a.cfg.FractalCount)
	f := fractals{highs: lastN(frac.highs, a.cfg.FractalCount), lows: lastN(frac.lows, a.cfg.FractalCount)}

	m := &models.PriceActionMetrics{
		Structure:  classifyStructure(req.EntryPrice, resistance, support, a.cfg.Proximity),
		Trend:      classifyTrend(f),
		Resistance: resistance,
		Support:    support,
	}

	// Patterns at entry
	m.Patterns = patternsAt(sig, max(start, entryBar-a.cfg.PatternBars+1), entryBar+1)
	if len(m.Patterns) == 0 {
		m.Pattern = models.PatternNone
	} else {
		m.Pattern = strings.Join(m.Patterns, ", ")
	}

	// Excursions over the holding window
	holdStart, holdEnd := holdingWindow(series, req, entryIdx, entryBar, end)
	ex := measureExcursion(req, series, holdStart, holdEnd)

	m.ATR = req.EntryPrice * a.cfg.ATRFallbackPct
	if atr != nil && valid(atr[entryBar]) {
		m.ATR = atr[entryBar]
	}
	risk := max(req.RiskAmount, a.cfg.RiskFloor)

	m.High, m.Low = ex.high, ex.low
	m.MFER = ex.mfe / risk
	m.MAER = ex.mae / risk
	m.ETDR = (ex.mfe - ex.final) / risk
	if m.ATR > 0 {
		m.MFEATR = ex.mfeDist / m.ATR
		m.MAEATR = ex.maeDist / m.ATR
	}
	m.MAD = ex.mad
	m.Efficiency = ex.efficiency()
	m.RVOL = relativeVolume(series, volBase, holdStart, holdEnd)
	m.Degradations = r.degradations

	return m
}

// holdingWindow returns [from, to) covering candles between open and close.
// An empty range falls back to the entry bar.
func holdingWindow(series []models.Candle, req Request, entryIdx, entryBar, end int) (int, int) {
	to := sort.Search(len(series), func(i int) bool { return series[i].Timestamp.After(req.CloseTime) })
	to = min(to, end)
	if entryIdx < to {
		return entryIdx, to
	}
	return entryBar, entryBar + 1
}
