package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/trade-journal/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing journal events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishRoundsRecomputed announces that an account's rounds were rebuilt
func (p *Producer) PublishRoundsRecomputed(ctx context.Context, account string, rounds []models.Round) error {
	net := decimal.Zero
	for i := range rounds {
		net = net.Add(rounds[i].NetPnL)
	}
	event := models.RoundEvent{
		EventType:  models.EventRoundsRecomputed,
		Account:    account,
		RoundCount: len(rounds),
		NetPnL:     net,
		Timestamp:  p.now(),
	}
	return p.publish(ctx, account, event)
}

// PublishRoundAnalyzed publishes the price-action metrics of one round
func (p *Producer) PublishRoundAnalyzed(ctx context.Context, account string, round *models.Round, m *models.PriceActionMetrics) error {
	event := models.RoundEvent{
		EventType:  models.EventRoundAnalyzed,
		Account:    account,
		RoundCount: 1,
		NetPnL:     round.NetPnL,
		Round:      round,
		Metrics:    m,
		Timestamp:  p.now(),
	}
	return p.publish(ctx, account, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.RoundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
