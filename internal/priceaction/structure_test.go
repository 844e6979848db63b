package priceaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/trade-journal/internal/models"
)

func TestFindFractals(t *testing.T) {
	highs := []float64{1, 2, 3, 4, 5, 10, 5, 4, 3, 2, 1}
	candles := make([]models.Candle, len(highs))
	for i, h := range highs {
		candles[i] = bar(i, h, h, h-0.5, h)
	}

	s := findFractals(candles, 5)
	require.False(t, s.degraded())
	assert.Equal(t, []float64{10}, s.value.highs)
	assert.Empty(t, s.value.lows)
}

func TestFindFractals_TooFewBars(t *testing.T) {
	s := findFractals([]models.Candle{bar(0, 1, 2, 0, 1)}, 5)
	assert.False(t, s.degraded())
	assert.Empty(t, s.value.highs)
	assert.Empty(t, s.value.lows)
}

func TestLevelsAndStructure(t *testing.T) {
	f := fractals{
		highs: []float64{105, 102, 108, 101},
		lows:  []float64{95, 99.7, 97},
	}

	res, sup := levels(f, 100, 3)
	require.NotNil(t, res)
	require.NotNil(t, sup)
	assert.Equal(t, 101.0, *res)
	assert.Equal(t, 99.7, *sup)
	assert.Equal(t, models.StructureSittingOnSupport, classifyStructure(100, res, sup, 0.005))

	near := 100.4
	assert.Equal(t, models.StructureApproachingResistance, classifyStructure(100, &near, sup, 0.005))

	far, low := 110.0, 90.0
	assert.Equal(t, models.StructureRanging, classifyStructure(100, &far, &low, 0.005))
	assert.Equal(t, models.StructureNone, classifyStructure(100, &far, nil, 0.005))
	assert.Equal(t, models.StructureNone, classifyStructure(100, nil, nil, 0.005))
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name  string
		highs []float64
		lows  []float64
		want  string
	}{
		{"uptrend", []float64{10, 12}, []float64{5, 6}, models.TrendUp},
		{"downtrend", []float64{12, 10}, []float64{6, 5}, models.TrendDown},
		{"expansion", []float64{10, 12}, []float64{6, 5}, models.TrendExpansion},
		{"contraction", []float64{12, 10}, []float64{5, 6}, models.TrendContraction},
		{"flat highs", []float64{10, 10}, []float64{5, 6}, models.TrendNone},
		{"not enough swings", []float64{10}, []float64{5, 6}, models.TrendNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTrend(fractals{highs: tt.highs, lows: tt.lows}))
		})
	}
}
