package priceaction

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/trogers1052/trade-journal/internal/models"
)

// fractals holds swing levels in chronological order.
type fractals struct {
	highs []float64
	lows  []float64
}

// findFractals marks a bar as a fractal high (low) when its high (low) equals
// the rolling max (min) over span bars on either side.
func findFractals(candles []models.Candle, span int) stage[fractals] {
	return run(fractals{}, func() stage[fractals] {
		width := 2*span + 1
		if span <= 0 {
			return degraded(fractals{}, fmt.Sprintf("invalid fractal span %d", span))
		}
		if len(candles) < width {
			return ok(fractals{})
		}
		highs, lows := make([]float64, len(candles)), make([]float64, len(candles))
		for i, c := range candles {
			highs[i], lows[i] = c.High, c.Low
		}
		// Max/Min at index j cover [j-width+1, j], centred on j-span.
		rollMax := talib.Max(highs, width)
		rollMin := talib.Min(lows, width)

		var f fractals
		for i := span; i+span < len(candles); i++ {
			if highs[i] == rollMax[i+span] {
				f.highs = append(f.highs, highs[i])
			}
			if lows[i] == rollMin[i+span] {
				f.lows = append(f.lows, lows[i])
			}
		}
		return ok(f)
	})
}

func lastN(values []float64, n int) []float64 {
	if len(values) > n {
		return values[len(values)-n:]
	}
	return values
}

// levels returns the nearest fractal high above and fractal low below entry.
func levels(f fractals, entry float64, count int) (resistance, support *float64) {
	for _, h := range lastN(f.highs, count) {
		if h > entry && (resistance == nil || h < *resistance) {
			v := h
			resistance = &v
		}
	}
	for _, l := range lastN(f.lows, count) {
		if l < entry && (support == nil || l > *support) {
			v := l
			support = &v
		}
	}
	return resistance, support
}

func classifyStructure(entry float64, resistance, support *float64, proximity float64) string {
	if entry <= 0 {
		return models.StructureNone
	}
	switch {
	case resistance != nil && (*resistance-entry)/entry <= proximity:
		return models.StructureApproachingResistance
	case support != nil && (entry-*support)/entry <= proximity:
		return models.StructureSittingOnSupport
	case resistance != nil && support != nil:
		return models.StructureRanging
	default:
		return models.StructureNone
	}
}

// classifyTrend compares the two most recent swing highs and lows.
func classifyTrend(f fractals) string {
	if len(f.highs) < 2 || len(f.lows) < 2 {
		return models.TrendNone
	}
	h1, h2 := f.highs[len(f.highs)-2], f.highs[len(f.highs)-1]
	l1, l2 := f.lows[len(f.lows)-2], f.lows[len(f.lows)-1]

	switch {
	case h2 > h1 && l2 > l1:
		return models.TrendUp
	case h2 < h1 && l2 < l1:
		return models.TrendDown
	case h2 > h1 && l2 < l1:
		return models.TrendExpansion
	case h2 < h1 && l2 > l1:
		return models.TrendContraction
	default:
		return models.TrendNone
	}
}
