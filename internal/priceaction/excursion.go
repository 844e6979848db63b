package priceaction

import (
	"math"

	"github.com/trogers1052/trade-journal/internal/models"
)

type excursion struct {
	high, low float64
	mfe, mae  float64 // amounts, mfe >= 0 for a favourable move
	final     float64
	mfeDist   float64 // price distance to the favourable extreme
	maeDist   float64 // price distance to the adverse extreme, <= 0 when adverse
	mad       int
}

// measureExcursion walks candles[from:to], the holding window.
func measureExcursion(req Request, candles []models.Candle, from, to int) excursion {
	high, low := math.Inf(-1), math.Inf(1)
	closes := make([]float64, 0, to-from)
	for i := from; i < to; i++ {
		high = math.Max(high, candles[i].High)
		low = math.Min(low, candles[i].Low)
		closes = append(closes, candles[i].Close)
	}

	e := excursion{high: high, low: low}
	entry, q := req.EntryPrice, req.Quantity
	if req.Direction == models.DirectionShort {
		e.mfeDist = entry - low
		e.maeDist = entry - high
		e.final = (entry - req.ExitPrice) * q
		for _, c := range closes {
			if c > entry {
				e.mad++
			}
		}
	} else {
		e.mfeDist = high - entry
		e.maeDist = low - entry
		e.final = (req.ExitPrice - entry) * q
		for _, c := range closes {
			if c < entry {
				e.mad++
			}
		}
	}
	e.mfe = e.mfeDist * q
	e.mae = e.maeDist * q
	return e
}

func (e excursion) efficiency() float64 {
	if e.mfe <= 0 {
		return 0
	}
	return e.final / e.mfe
}
