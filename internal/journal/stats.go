package journal

import (
	"github.com/shopspring/decimal"

	"github.com/trogers1052/trade-journal/internal/models"
)

// Stats aggregates closed rounds for an account.
type Stats struct {
	TotalRounds   int             `json:"total_rounds"`
	WinningRounds int             `json:"winning_rounds"`
	LosingRounds  int             `json:"losing_rounds"`
	WinRate       decimal.Decimal `json:"win_rate"`
	TotalNetPnL   decimal.Decimal `json:"total_net_pnl"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	AvgWin        decimal.Decimal `json:"avg_win"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
}

// Summarize computes win/loss statistics on net PnL. WinRate is a percentage.
func Summarize(rounds []models.Round) Stats {
	var (
		stats           Stats
		sumWin, sumLoss decimal.Decimal
	)
	for i := range rounds {
		r := &rounds[i]
		stats.TotalRounds++
		stats.TotalNetPnL = stats.TotalNetPnL.Add(r.NetPnL)
		stats.TotalFees = stats.TotalFees.Add(r.TotalFee)
		switch {
		case r.IsWin():
			stats.WinningRounds++
			sumWin = sumWin.Add(r.NetPnL)
		case r.NetPnL.IsNegative():
			stats.LosingRounds++
			sumLoss = sumLoss.Add(r.NetPnL)
		}
	}

	if stats.TotalRounds > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningRounds)).
			Div(decimal.NewFromInt(int64(stats.TotalRounds))).
			Mul(decimal.NewFromInt(100))
	}
	if stats.WinningRounds > 0 {
		stats.AvgWin = sumWin.Div(decimal.NewFromInt(int64(stats.WinningRounds)))
	}
	if stats.LosingRounds > 0 {
		stats.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(stats.LosingRounds)))
	}
	return stats
}
