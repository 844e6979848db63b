package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/trade-journal/internal/models"
)

const roundColumns = `
		id, round_id, account, symbol, direction, open_time, close_time, duration_ms,
		total_pnl, total_fee, net_pnl, fill_count, status,
		avg_entry_price, avg_exit_price, max_quantity,
		notes, strategy, ai_analysis, screenshot, mae, mfe, etd, created_at`

// ReplaceAllRounds atomically replaces the stored rounds of an account with a
// freshly assembled snapshot.
func (db *DB) ReplaceAllRounds(account string, rounds []models.Round) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rounds WHERE account = $1`, account); err != nil {
		return fmt.Errorf("failed to delete existing rounds: %w", err)
	}

	query := `
		INSERT INTO rounds (
			round_id, account, symbol, direction, open_time, close_time, duration_ms,
			total_pnl, total_fee, net_pnl, fill_count, status,
			avg_entry_price, avg_exit_price, max_quantity,
			notes, strategy, ai_analysis, screenshot, mae, mfe, etd, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)
		RETURNING id
	`
	now := time.Now()
	for i := range rounds {
		r := &rounds[i]
		err := tx.QueryRow(query,
			r.RoundID, account, r.Symbol, string(r.Direction), r.OpenTime, r.CloseTime, r.Duration.Milliseconds(),
			r.TotalPnL, r.TotalFee, r.NetPnL, r.FillCount, r.Status,
			r.AvgEntryPrice, r.AvgExitPrice, r.MaxQuantity,
			nullString(r.Notes), nullString(r.Strategy), nullString(r.AIAnalysis), nullString(r.Screenshot),
			r.MAE, r.MFE, r.ETD, now,
		).Scan(&r.ID)
		if err != nil {
			return fmt.Errorf("failed to insert round %s: %w", r.RoundID, err)
		}
		r.Account = account
		r.CreatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRoundsByAccount retrieves stored rounds, most recently closed first
func (db *DB) GetRoundsByAccount(account string) ([]models.Round, error) {
	query := `SELECT` + roundColumns + `
		FROM rounds
		WHERE account = $1
		ORDER BY close_time DESC, symbol ASC, round_id ASC
	`
	rows, err := db.conn.Query(query, account)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []models.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}
	return rounds, nil
}

// GetRound retrieves a single round by symbol and opening fill id. When a
// fill id was reused within the symbol the latest round wins.
func (db *DB) GetRound(account, symbol, roundID string) (*models.Round, error) {
	query := `SELECT` + roundColumns + `
		FROM rounds
		WHERE account = $1 AND symbol = $2 AND round_id = $3
		ORDER BY close_time DESC
		LIMIT 1
	`
	r, err := scanRound(db.conn.QueryRow(query, account, symbol, roundID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("round %s/%s: %w", symbol, roundID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return r, nil
}

// RoundStats holds aggregated round statistics computed in SQL
type RoundStats struct {
	TotalRounds   int             `json:"total_rounds"`
	WinningRounds int             `json:"winning_rounds"`
	LosingRounds  int             `json:"losing_rounds"`
	WinRate       decimal.Decimal `json:"win_rate"`
	TotalNetPnL   decimal.Decimal `json:"total_net_pnl"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	AvgWin        decimal.Decimal `json:"avg_win"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
}

// GetRoundStats returns win/loss statistics for an account's stored rounds
func (db *DB) GetRoundStats(account string) (*RoundStats, error) {
	query := `
		SELECT
			COUNT(*) as total_rounds,
			COUNT(*) FILTER (WHERE net_pnl > 0) as winning_rounds,
			COUNT(*) FILTER (WHERE net_pnl < 0) as losing_rounds,
			COALESCE(SUM(net_pnl), 0) as total_net_pnl,
			COALESCE(SUM(total_fee), 0) as total_fees,
			COALESCE(AVG(net_pnl) FILTER (WHERE net_pnl > 0), 0) as avg_win,
			COALESCE(AVG(net_pnl) FILTER (WHERE net_pnl < 0), 0) as avg_loss
		FROM rounds
		WHERE account = $1
	`
	var stats RoundStats
	err := db.conn.QueryRow(query, account).Scan(
		&stats.TotalRounds, &stats.WinningRounds, &stats.LosingRounds,
		&stats.TotalNetPnL, &stats.TotalFees, &stats.AvgWin, &stats.AvgLoss,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get round stats: %w", err)
	}

	if stats.TotalRounds > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningRounds)).
			Div(decimal.NewFromInt(int64(stats.TotalRounds))).
			Mul(decimal.NewFromInt(100))
	}

	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*models.Round, error) {
	var r models.Round
	var direction string
	var durationMs int64
	var notes, strategy, aiAnalysis, screenshot sql.NullString
	var mae, mfe, etd sql.NullFloat64

	err := row.Scan(
		&r.ID, &r.RoundID, &r.Account, &r.Symbol, &direction, &r.OpenTime, &r.CloseTime, &durationMs,
		&r.TotalPnL, &r.TotalFee, &r.NetPnL, &r.FillCount, &r.Status,
		&r.AvgEntryPrice, &r.AvgExitPrice, &r.MaxQuantity,
		&notes, &strategy, &aiAnalysis, &screenshot, &mae, &mfe, &etd, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Direction = models.Direction(direction)
	r.Duration = time.Duration(durationMs) * time.Millisecond
	if notes.Valid {
		r.Notes = notes.String
	}
	if strategy.Valid {
		r.Strategy = strategy.String
	}
	if aiAnalysis.Valid {
		r.AIAnalysis = aiAnalysis.String
	}
	if screenshot.Valid {
		r.Screenshot = screenshot.String
	}
	r.MAE = floatPtr(mae)
	r.MFE = floatPtr(mfe)
	r.ETD = floatPtr(etd)

	return &r, nil
}
