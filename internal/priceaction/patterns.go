package priceaction

import (
	"math"
	"sort"

	"github.com/trogers1052/trade-journal/internal/models"
)

// Pattern names reported in PriceActionMetrics.Patterns
const (
	PatternEngulfing    = "Engulfing"
	PatternHammer       = "Hammer"
	PatternDoji         = "Doji"
	PatternStar         = "Star"
	PatternShootingStar = "Shooting Star"
)

const (
	dojiThreshold     = 0.1 // body below 10% of range
	longBodyThreshold = 0.6 // body above 60% of range
	starBodyThreshold = 0.3 // star body below 30% of range
	shadowThreshold   = 2.0 // shadow at least 2x body
)

// detector returns +100 (bullish), -100 (bearish) or 0 for the candle at idx.
type detector struct {
	name   string
	detect func(candles []models.Candle, idx int) int
}

var detectors = []detector{
	{name: PatternEngulfing, detect: engulfing},
	{name: PatternHammer, detect: hammer},
	{name: PatternDoji, detect: doji},
	{name: PatternStar, detect: star},
	{name: PatternShootingStar, detect: shootingStar},
}

// signals runs every detector over the series. A detector that fails yields
// all-zero signals for its pattern only.
func signals(r *report, candles []models.Candle) map[string][]int {
	out := make(map[string][]int, len(detectors))
	for _, d := range detectors {
		d := d
		zeros := make([]int, len(candles))
		s := run(zeros, func() stage[[]int] {
			sig := make([]int, len(candles))
			for i := range candles {
				sig[i] = d.detect(candles, i)
			}
			return ok(sig)
		})
		out[d.name] = unwrap(r, "pattern:"+d.name, s)
	}
	return out
}

// patternsAt returns the sorted names of patterns with a nonzero signal in
// signals[from:to].
func patternsAt(sig map[string][]int, from, to int) []string {
	var names []string
	for name, series := range sig {
		for i := max(from, 0); i < to && i < len(series); i++ {
			if series[i] != 0 {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

func bodySize(c models.Candle) float64    { return math.Abs(c.Close - c.Open) }
func candleRange(c models.Candle) float64 { return c.High - c.Low }
func upperShadow(c models.Candle) float64 { return c.High - math.Max(c.Open, c.Close) }
func lowerShadow(c models.Candle) float64 { return math.Min(c.Open, c.Close) - c.Low }
func isBullish(c models.Candle) bool      { return c.Close > c.Open }
func isBearish(c models.Candle) bool      { return c.Close < c.Open }

func engulfing(candles []models.Candle, idx int) int {
	if idx < 1 {
		return 0
	}
	prev, curr := candles[idx-1], candles[idx]
	if bodySize(curr) <= bodySize(prev) {
		return 0
	}
	if isBearish(prev) && isBullish(curr) && curr.Open <= prev.Close && curr.Close >= prev.Open {
		return 100
	}
	if isBullish(prev) && isBearish(curr) && curr.Open >= prev.Close && curr.Close <= prev.Open {
		return -100
	}
	return 0
}

func hammer(candles []models.Candle, idx int) int {
	c := candles[idx]
	body := bodySize(c)
	if body == 0 {
		return 0
	}
	if lowerShadow(c) < body*shadowThreshold || upperShadow(c) > body*0.5 {
		return 0
	}
	return 100
}

func shootingStar(candles []models.Candle, idx int) int {
	c := candles[idx]
	body := bodySize(c)
	if body == 0 {
		return 0
	}
	if upperShadow(c) < body*shadowThreshold || lowerShadow(c) > body*0.5 {
		return 0
	}
	return -100
}

func doji(candles []models.Candle, idx int) int {
	c := candles[idx]
	rng := candleRange(c)
	if rng <= 0 {
		return 0
	}
	if bodySize(c)/rng > dojiThreshold {
		return 0
	}
	return 100
}

// star merges morning star (+100) and evening star (-100).
func star(candles []models.Candle, idx int) int {
	if idx < 2 {
		return 0
	}
	first, second, third := candles[idx-2], candles[idx-1], candles[idx]
	if !longBody(first) || !longBody(third) {
		return 0
	}
	if rng := candleRange(second); rng > 0 && bodySize(second)/rng > starBodyThreshold {
		return 0
	}
	mid := (first.Open + first.Close) / 2

	if isBearish(first) && isBullish(third) &&
		math.Max(second.Open, second.Close) < first.Close && third.Close >= mid {
		return 100
	}
	if isBullish(first) && isBearish(third) &&
		math.Min(second.Open, second.Close) > first.Close && third.Close <= mid {
		return -100
	}
	return 0
}

func longBody(c models.Candle) bool {
	rng := candleRange(c)
	return rng > 0 && bodySize(c)/rng >= longBodyThreshold
}
