package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

const fillColumns = `
		id, fill_id, account, symbol, side, amount, price, pnl, fee, executed_at,
		notes, strategy, ai_analysis, screenshot, mae, mfe, etd, created_at`

// CreateFill inserts a new fill record
func (db *DB) CreateFill(f *models.Fill) error {
	query := `
		INSERT INTO fills (
			fill_id, account, symbol, side, amount, price, pnl, fee, executed_at,
			notes, strategy, ai_analysis, screenshot, mae, mfe, etd, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		RETURNING id
	`
	now := time.Now()

	err := db.conn.QueryRow(query,
		f.FillID, f.Account, f.Symbol, string(f.Side), f.Amount, f.Price, f.PnL, f.Fee, f.ExecutedAt,
		nullString(f.Notes), nullString(f.Strategy), nullString(f.AIAnalysis), nullString(f.Screenshot),
		f.MAE, f.MFE, f.ETD, now,
	).Scan(&f.ID)

	if err != nil {
		return fmt.Errorf("failed to create fill: %w", err)
	}
	f.CreatedAt = now
	return nil
}

// FillExists checks whether a fill with the same identity is already stored
func (db *DB) FillExists(account, fillID, symbol string, side models.Side, executedAt time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM fills
			WHERE account = $1 AND fill_id = $2 AND symbol = $3 AND side = $4 AND executed_at = $5
		)
	`
	var exists bool
	err := db.conn.QueryRow(query, account, fillID, symbol, string(side), executedAt).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fill existence: %w", err)
	}
	return exists, nil
}

// GetFillsByAccount retrieves every fill for an account, oldest first
func (db *DB) GetFillsByAccount(account string) ([]models.Fill, error) {
	query := `SELECT` + fillColumns + `
		FROM fills
		WHERE account = $1
		ORDER BY executed_at ASC, id ASC
	`
	return db.scanFills(db.conn.Query(query, account))
}

// GetFillsBySymbol retrieves fills for one symbol of an account, oldest first
func (db *DB) GetFillsBySymbol(account, symbol string) ([]models.Fill, error) {
	query := `SELECT` + fillColumns + `
		FROM fills
		WHERE account = $1 AND symbol = $2
		ORDER BY executed_at ASC, id ASC
	`
	return db.scanFills(db.conn.Query(query, account, symbol))
}

// UpdateFillReview stores review metadata on the fill identified by fillID.
// Nil fields of u keep their stored value.
func (db *DB) UpdateFillReview(account, fillID string, u models.ReviewUpdate) error {
	query := `
		UPDATE fills SET
			notes = COALESCE($3, notes),
			strategy = COALESCE($4, strategy),
			ai_analysis = COALESCE($5, ai_analysis),
			screenshot = COALESCE($6, screenshot),
			mae = COALESCE($7, mae),
			mfe = COALESCE($8, mfe),
			etd = COALESCE($9, etd)
		WHERE account = $1 AND fill_id = $2
	`
	result, err := db.conn.Exec(query, account, fillID,
		u.Notes, u.Strategy, u.AIAnalysis, u.Screenshot,
		u.MAE, u.MFE, u.ETD,
	)
	if err != nil {
		return fmt.Errorf("failed to update fill review: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("fill %s: %w", fillID, ErrNotFound)
	}
	return nil
}

func (db *DB) scanFills(rows *sql.Rows, err error) ([]models.Fill, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var fills []models.Fill
	for rows.Next() {
		var f models.Fill
		var side string
		var notes, strategy, aiAnalysis, screenshot sql.NullString
		var mae, mfe, etd sql.NullFloat64

		err := rows.Scan(
			&f.ID, &f.FillID, &f.Account, &f.Symbol, &side, &f.Amount, &f.Price, &f.PnL, &f.Fee, &f.ExecutedAt,
			&notes, &strategy, &aiAnalysis, &screenshot, &mae, &mfe, &etd, &f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}

		f.Side = models.ParseSide(side)
		f.Notes = db.defaults.Notes
		if notes.Valid {
			f.Notes = notes.String
		}
		if strategy.Valid {
			f.Strategy = strategy.String
		}
		if aiAnalysis.Valid {
			f.AIAnalysis = aiAnalysis.String
		}
		f.Screenshot = db.defaults.Screenshot
		if screenshot.Valid {
			f.Screenshot = screenshot.String
		}
		f.MAE = floatPtr(mae)
		f.MFE = floatPtr(mfe)
		f.ETD = floatPtr(etd)

		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fills: %w", err)
	}

	return fills, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
