package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/trade-journal/internal/models"
)

var baseTime = time.Date(2026, 1, 2, 6, 0, 0, 0, time.UTC)

// Helper function to create a Fill for testing
func createTestFill(fillID, symbol string, side models.Side, amount, price float64, executedAt time.Time) models.Fill {
	return models.Fill{
		FillID:     fillID,
		Account:    "acct-1",
		Symbol:     symbol,
		Side:       side,
		Amount:     decimal.NewFromFloat(amount),
		Price:      decimal.NewFromFloat(price),
		ExecutedAt: executedAt,
	}
}

func at(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func TestAssemble_SingleRoundTrip(t *testing.T) {
	buy := createTestFill("A", "X", models.SideBuy, 1, 100, at(1000))
	sell := createTestFill("B", "X", models.SideSell, 1, 150, at(2000))
	sell.PnL = decimal.NewFromInt(50)
	sell.Fee = decimal.NewFromInt(1)

	rounds := Assemble([]models.Fill{buy, sell})
	require.Len(t, rounds, 1)

	r := rounds[0]
	assert.Equal(t, "A", r.RoundID)
	assert.Equal(t, "X", r.Symbol)
	assert.Equal(t, "acct-1", r.Account)
	assert.Equal(t, models.DirectionLong, r.Direction)
	assert.True(t, r.OpenTime.Equal(at(1000)))
	assert.True(t, r.CloseTime.Equal(at(2000)))
	assert.Equal(t, time.Second, r.Duration)
	assert.True(t, r.TotalPnL.Equal(decimal.NewFromInt(50)))
	assert.True(t, r.TotalFee.Equal(decimal.NewFromInt(1)))
	assert.True(t, r.NetPnL.Equal(decimal.NewFromInt(49)))
	assert.Equal(t, 2, r.FillCount)
	assert.Equal(t, models.RoundStatusClosed, r.Status)
	assert.True(t, r.AvgEntryPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, r.AvgExitPrice.Equal(decimal.NewFromInt(150)))
	assert.True(t, r.MaxQuantity.Equal(decimal.NewFromInt(1)))
}

func TestAssemble_ScaleIn(t *testing.T) {
	sell := createTestFill("c", "X", models.SideSell, 2, 13, at(20))
	sell.PnL = decimal.NewFromInt(30)
	fills := []models.Fill{
		createTestFill("a", "X", models.SideBuy, 1, 10, at(0)),
		createTestFill("b", "X", models.SideBuy, 1, 12, at(10)),
		sell,
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 1)
	r := rounds[0]
	assert.Equal(t, 3, r.FillCount)
	assert.True(t, r.OpenTime.Equal(at(0)))
	assert.True(t, r.CloseTime.Equal(at(20)))
	assert.True(t, r.NetPnL.Equal(decimal.NewFromInt(30)))
	assert.True(t, r.AvgEntryPrice.Equal(decimal.NewFromInt(11)))
	assert.True(t, r.MaxQuantity.Equal(decimal.NewFromInt(2)))
}

func TestAssemble_ShortRound(t *testing.T) {
	fills := []models.Fill{
		createTestFill("s1", "ETH", models.SideSell, 2, 3000, baseTime),
		createTestFill("b1", "ETH", models.SideBuy, 2, 2900, baseTime.Add(time.Hour)),
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 1)
	assert.Equal(t, models.DirectionShort, rounds[0].Direction)
	assert.True(t, rounds[0].AvgEntryPrice.Equal(decimal.NewFromInt(3000)))
	assert.True(t, rounds[0].AvgExitPrice.Equal(decimal.NewFromInt(2900)))
}

// TestAssemble_SLVSequence replays a production SLV fill sequence with
// fractional quantities.
func TestAssemble_SLVSequence(t *testing.T) {
	fills := []models.Fill{
		createTestFill("order-1", "SLV", models.SideBuy, 3.0, 67.10, baseTime),
		createTestFill("order-2", "SLV", models.SideSell, 3.0, 68.93, baseTime.Add(72*time.Hour)),
		createTestFill("order-3", "SLV", models.SideBuy, 0.16017600, 72.67, baseTime.Add(96*time.Hour)),
		createTestFill("order-4", "SLV", models.SideSell, 0.16017600, 72.63, baseTime.Add(97*time.Hour)),
		createTestFill("order-5", "SLV", models.SideBuy, 3.0, 73.10, baseTime.Add(120*time.Hour)),
		createTestFill("order-6", "SLV", models.SideBuy, 0.41099000, 69.88, baseTime.Add(132*time.Hour)),
		createTestFill("order-7", "SLV", models.SideBuy, 1.48842000, 67.19, baseTime.Add(156*time.Hour)),
		createTestFill("order-8", "SLV", models.SideSell, 4.89941000, 71.64, baseTime.Add(180*time.Hour)),
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 3)

	// Most recently closed first
	assert.Equal(t, "order-5", rounds[0].RoundID)
	assert.Equal(t, 4, rounds[0].FillCount)
	assert.Equal(t, "order-3", rounds[1].RoundID)
	assert.Equal(t, "order-1", rounds[2].RoundID)
	assert.Empty(t, OpenPositions(fills))
}

func TestAssemble_DropsTrailingOpenTail(t *testing.T) {
	fills := []models.Fill{
		createTestFill("1", "AAPL", models.SideBuy, 10, 150, baseTime),
		createTestFill("2", "AAPL", models.SideSell, 10, 155, baseTime.Add(time.Hour)),
		createTestFill("3", "AAPL", models.SideBuy, 5, 152, baseTime.Add(2*time.Hour)),
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 1)
	assert.Equal(t, "1", rounds[0].RoundID)

	open := OpenPositions(fills)
	require.Len(t, open, 1)
	assert.Equal(t, "AAPL", open[0].Symbol)
	assert.Equal(t, "3", open[0].OpenFillID)
	assert.True(t, open[0].Quantity.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, models.DirectionLong, open[0].Direction)
}

func TestAssemble_UnsortedInputIsOrderedByTime(t *testing.T) {
	fills := []models.Fill{
		createTestFill("sell", "B", models.SideSell, 1, 20, baseTime.Add(time.Hour)),
		createTestFill("buy", "B", models.SideBuy, 1, 18, baseTime),
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 1)
	assert.Equal(t, "buy", rounds[0].RoundID)
	assert.Equal(t, models.DirectionLong, rounds[0].Direction)
}

func TestAssemble_ReversalContinuesRound(t *testing.T) {
	fills := []models.Fill{
		createTestFill("1", "X", models.SideBuy, 1, 10, baseTime),
		createTestFill("2", "X", models.SideSell, 3, 11, baseTime.Add(time.Minute)),
		createTestFill("3", "X", models.SideBuy, 2, 9, baseTime.Add(2*time.Minute)),
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 1)
	assert.Equal(t, "1", rounds[0].RoundID)
	assert.Equal(t, 3, rounds[0].FillCount)
	assert.Equal(t, models.DirectionLong, rounds[0].Direction)
}

func TestAssemble_ZeroQuantityFills(t *testing.T) {
	zero := createTestFill("z0", "X", models.SideBuy, 0, 10, baseTime)
	unknown := createTestFill("u1", "X", models.SideUnknown, 4, 10, baseTime.Add(2*time.Minute))
	unknown.PnL = decimal.NewFromInt(7)
	fills := []models.Fill{
		zero,
		createTestFill("1", "X", models.SideBuy, 1, 10, baseTime.Add(time.Minute)),
		unknown,
		createTestFill("2", "X", models.SideSell, 1, 12, baseTime.Add(3*time.Minute)),
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 1)
	assert.Equal(t, "1", rounds[0].RoundID)
	assert.Equal(t, 3, rounds[0].FillCount)
	assert.True(t, rounds[0].TotalPnL.Equal(decimal.NewFromInt(7)))
}

func TestAssemble_MetadataFromOpeningFillOnly(t *testing.T) {
	mae := -1.5
	open := createTestFill("1", "X", models.SideBuy, 1, 10, baseTime)
	open.Notes = "breakout"
	open.Strategy = "orb"
	open.MAE = &mae
	closing := createTestFill("2", "X", models.SideSell, 1, 12, baseTime.Add(time.Minute))
	closing.Notes = "late exit"
	closing.Screenshot = "exit.png"

	rounds := Assemble([]models.Fill{open, closing})
	require.Len(t, rounds, 1)
	assert.Equal(t, "breakout", rounds[0].Notes)
	assert.Equal(t, "orb", rounds[0].Strategy)
	assert.Empty(t, rounds[0].Screenshot)
	require.NotNil(t, rounds[0].MAE)
	assert.Equal(t, -1.5, *rounds[0].MAE)

	// Snapshot must not alias the fill's pointer
	mae = 3
	assert.Equal(t, -1.5, *rounds[0].MAE)
}

func TestAssemble_SymbolsAreIndependent(t *testing.T) {
	fills := []models.Fill{
		createTestFill("a1", "AAA", models.SideBuy, 1, 10, baseTime),
		createTestFill("b1", "BBB", models.SideSell, 2, 10, baseTime.Add(time.Minute)),
		createTestFill("a2", "AAA", models.SideSell, 1, 11, baseTime.Add(2*time.Minute)),
		createTestFill("b2", "BBB", models.SideBuy, 2, 9, baseTime.Add(3*time.Minute)),
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 2)
	assert.Equal(t, "BBB", rounds[0].Symbol)
	assert.Equal(t, models.DirectionShort, rounds[0].Direction)
	assert.Equal(t, "AAA", rounds[1].Symbol)
	assert.Equal(t, models.DirectionLong, rounds[1].Direction)
}

func TestAssemble_TiesBreakBySymbolThenRoundID(t *testing.T) {
	closeAt := baseTime.Add(time.Hour)
	fills := []models.Fill{
		createTestFill("z", "ZZZ", models.SideBuy, 1, 10, baseTime),
		createTestFill("z2", "ZZZ", models.SideSell, 1, 10, closeAt),
		createTestFill("a", "AAA", models.SideBuy, 1, 10, baseTime),
		createTestFill("a2", "AAA", models.SideSell, 1, 10, closeAt),
	}

	rounds := Assemble(fills)
	require.Len(t, rounds, 2)
	assert.Equal(t, "AAA", rounds[0].Symbol)
	assert.Equal(t, "ZZZ", rounds[1].Symbol)
}

func TestAssemble_Empty(t *testing.T) {
	assert.Empty(t, Assemble(nil))
	assert.Empty(t, OpenPositions(nil))
}

func TestAssembleParallel_MatchesSequential(t *testing.T) {
	var fills []models.Fill
	symbols := []string{"AAPL", "MSFT", "SLV", "TSLA", "NVDA"}
	for i := 0; i < 50; i++ {
		sym := symbols[i%len(symbols)]
		ts := baseTime.Add(time.Duration(i) * time.Minute)
		side := models.SideBuy
		if (i/len(symbols))%2 == 1 {
			side = models.SideSell
		}
		fills = append(fills, createTestFill(sym+"-"+ts.Format("1504"), sym, side, 1, 100, ts))
	}

	want := Assemble(fills)
	got, err := AssembleParallel(context.Background(), fills, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, got, 25)
}

func TestAssembleParallel_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fills := []models.Fill{createTestFill("1", "X", models.SideBuy, 1, 10, baseTime)}
	_, err := AssembleParallel(ctx, fills, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
