package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/trade-journal/internal/models"
)

const candleUpsert = `
		INSERT INTO candles (symbol, timeframe, ts, open, high, low, close, volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, ts) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`

// CreateCandle inserts or updates a candle
func (db *DB) CreateCandle(c *models.Candle) error {
	now := time.Now()
	err := db.conn.QueryRow(candleUpsert+`
		RETURNING id`,
		c.Symbol, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, now,
	).Scan(&c.ID)

	if err != nil {
		return fmt.Errorf("failed to create candle: %w", err)
	}
	c.CreatedAt = now
	return nil
}

// CreateCandleBatch upserts many candles in one transaction
func (db *DB) CreateCandleBatch(candles []models.Candle) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(candleUpsert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range candles {
		_, err := stmt.Exec(c.Symbol, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, now)
		if err != nil {
			return fmt.Errorf("failed to insert candle for %s: %w", c.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCandlesRange retrieves candles with start <= ts <= end, oldest first
func (db *DB) GetCandlesRange(symbol, timeframe string, start, end time.Time) ([]models.Candle, error) {
	query := `
		SELECT id, symbol, timeframe, ts, open, high, low, close, volume, created_at
		FROM candles
		WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`
	rows, err := db.conn.Query(query, symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Timeframe, &c.Timestamp,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candles: %w", err)
	}
	return candles, nil
}

// GetLatestCandle retrieves the most recent candle for a symbol and timeframe
func (db *DB) GetLatestCandle(symbol, timeframe string) (*models.Candle, error) {
	query := `
		SELECT id, symbol, timeframe, ts, open, high, low, close, volume, created_at
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY ts DESC
		LIMIT 1
	`
	var c models.Candle
	err := db.conn.QueryRow(query, symbol, timeframe).Scan(&c.ID, &c.Symbol, &c.Timeframe, &c.Timestamp,
		&c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("candle for %s %s: %w", symbol, timeframe, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest candle: %w", err)
	}
	return &c, nil
}

// DeleteCandlesOlderThan removes candles before the given time
func (db *DB) DeleteCandlesOlderThan(before time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM candles WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old candles: %w", err)
	}
	return result.RowsAffected()
}
