package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/trade-journal/internal/models"
)

// FillIngester stores fills and rebuilds the rounds they belong to
type FillIngester interface {
	IngestFill(ctx context.Context, f *models.Fill) (bool, error)
	Recompute(ctx context.Context, account string) ([]models.Round, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// Consumer handles consuming fill events from Kafka. Every newly stored fill
// triggers a recompute of its account's rounds.
type Consumer struct {
	reader   messageReader
	ingester FillIngester
	defaults models.FillDefaults
	log      zerolog.Logger
}

// NewConsumer creates a new Kafka consumer for fill events
func NewConsumer(brokers []string, topic, groupID string, ingester FillIngester, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:   reader,
		ingester: ingester,
		defaults: models.DefaultFillDefaults(),
		log:      log.With().Str("component", "fill_consumer").Logger(),
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Error().Err(err).Msg("Error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("Error processing message")
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	c.log.Debug().Int("partition", msg.Partition).Int64("offset", msg.Offset).Str("key", string(msg.Key)).Msg("Received message")

	var event models.FillEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal fill event: %w", err)
	}

	if event.EventType != models.EventFillDetected {
		c.log.Debug().Str("event_type", event.EventType).Msg("Ignoring event type")
		return nil
	}

	fill, err := c.convertEventToFill(event)
	if err != nil {
		return fmt.Errorf("failed to convert event to fill: %w", err)
	}

	created, err := c.ingester.IngestFill(ctx, fill)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	if _, err := c.ingester.Recompute(ctx, fill.Account); err != nil {
		return fmt.Errorf("failed to recompute rounds for %s: %w", fill.Account, err)
	}
	return nil
}

// convertEventToFill maps a FillEvent to a Fill. Unparseable numbers fall
// back to the ingestion defaults.
func (c *Consumer) convertEventToFill(event models.FillEvent) (*models.Fill, error) {
	data := event.Data

	if data.Symbol == "" {
		return nil, fmt.Errorf("missing symbol for fill %s", data.FillID)
	}
	side := models.ParseSide(data.Side)
	if side == models.SideUnknown {
		return nil, fmt.Errorf("invalid fill side: %s", data.Side)
	}

	account := data.Account
	if account == "" {
		account = event.Source
	}

	log := c.log.With().Str("fill_id", data.FillID).Str("symbol", data.Symbol).Logger()
	f := &models.Fill{
		FillID:     data.FillID,
		Account:    account,
		Symbol:     data.Symbol,
		Side:       side,
		Amount:     decimalField(log, "amount", data.Amount, c.defaults.Amount),
		Price:      decimalField(log, "price", data.Price, c.defaults.Price),
		PnL:        decimalField(log, "pnl", data.PnL, c.defaults.PnL),
		Fee:        decimalField(log, "fee", data.Fee, c.defaults.Fee),
		ExecutedAt: executedAt(data),
		Notes:      data.Notes,
		Strategy:   data.Strategy,
		Screenshot: data.Screenshot,
	}
	if f.Notes == "" {
		f.Notes = c.defaults.Notes
	}
	if f.Screenshot == "" {
		f.Screenshot = c.defaults.Screenshot
	}
	return f, nil
}

func decimalField(log zerolog.Logger, field, raw string, def decimal.Decimal) decimal.Decimal {
	v, coerced := models.ParseDecimalOr(raw, def)
	if coerced {
		log.Warn().Str("field", field).Str("value", raw).Msg("Unparseable number, using default")
	}
	return v
}

// executedAt prefers the millisecond timestamp, then the executed_at string,
// then the time of receipt.
func executedAt(data models.FillEventData) time.Time {
	if data.Timestamp > 0 {
		return time.UnixMilli(data.Timestamp).UTC()
	}
	if data.ExecutedAt != nil && *data.ExecutedAt != "" {
		if t, err := time.Parse(time.RFC3339, *data.ExecutedAt); err == nil {
			return t
		}
		// Try parsing without timezone
		if t, err := time.Parse("2006-01-02T15:04:05", *data.ExecutedAt); err == nil {
			return t
		}
	}
	return time.Now()
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
