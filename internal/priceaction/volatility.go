package priceaction

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/trogers1052/trade-journal/internal/models"
)

// atrSeries computes ATR over the whole series with leading undefined values
// backfilled. go-talib needs strictly more bars than the period.
func atrSeries(candles []models.Candle, period int) stage[[]float64] {
	return run[[]float64](nil, func() stage[[]float64] {
		if period <= 0 {
			return degraded[[]float64](nil, fmt.Sprintf("invalid ATR period %d", period))
		}
		if len(candles) <= period {
			return degraded[[]float64](nil, fmt.Sprintf("need more than %d candles for ATR, have %d", period, len(candles)))
		}
		high, low, closes := make([]float64, len(candles)), make([]float64, len(candles)), make([]float64, len(candles))
		for i, c := range candles {
			high[i], low[i], closes[i] = c.High, c.Low, c.Close
		}
		out, found := backfill(talib.Atr(high, low, closes, period))
		if !found {
			return degraded[[]float64](nil, "ATR undefined for every bar")
		}
		return ok(out)
	})
}

// volumeBaseline computes the rolling mean volume used for relative volume.
func volumeBaseline(candles []models.Candle, period int) stage[[]float64] {
	return run[[]float64](nil, func() stage[[]float64] {
		if period <= 0 {
			return degraded[[]float64](nil, fmt.Sprintf("invalid volume period %d", period))
		}
		if len(candles) < period {
			return degraded[[]float64](nil, fmt.Sprintf("need %d candles for volume baseline, have %d", period, len(candles)))
		}
		vol := make([]float64, len(candles))
		for i, c := range candles {
			vol[i] = c.Volume
		}
		out, found := backfill(talib.Sma(vol, period))
		if !found {
			return degraded[[]float64](nil, "volume baseline is zero")
		}
		return ok(out)
	})
}

// backfill replaces the leading non-positive or non-finite values with the
// first valid one. Later invalid values are kept so callers apply their own
// defaults. It reports false when no valid value exists.
func backfill(series []float64) ([]float64, bool) {
	first := -1
	for i, v := range series {
		if valid(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, false
	}
	out := make([]float64, len(series))
	copy(out, series)
	for i := 0; i < first; i++ {
		out[i] = out[first]
	}
	return out, true
}

func valid(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// relativeVolume is the mean of volume/baseline over candles[from:to]. Bars
// without a baseline count as 1.0.
func relativeVolume(candles []models.Candle, baseline []float64, from, to int) float64 {
	if to <= from {
		return 1.0
	}
	sum := 0.0
	for i := from; i < to; i++ {
		if baseline == nil || i >= len(baseline) || !valid(baseline[i]) {
			sum += 1.0
			continue
		}
		sum += candles[i].Volume / baseline[i]
	}
	return sum / float64(to-from)
}
