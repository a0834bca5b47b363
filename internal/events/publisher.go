// internal/events/publisher.go

// Package events publishes sale-committed events for downstream
// consumers (settlement invoicing, reporting). Publishing is best-effort:
// a failed publish is logged, never unwinds a committed sale.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tapcash-pos/internal/domain"

	"github.com/segmentio/kafka-go"
)

// SalePublisher emits an event for every committed sale.
type SalePublisher interface {
	PublishSaleCommitted(ctx context.Context, sale *domain.Sale) error
	Close() error
}

// saleCommittedEvent is the wire shape of a sale.committed message.
type saleCommittedEvent struct {
	Reference   string    `json:"reference"`
	PayerID     int64     `json:"payer_id"`
	Channel     string    `json:"channel"`
	Total       string    `json:"total"`
	RewardUnits string    `json:"reward_units"`
	MeterID     *string   `json:"meter_id,omitempty"`
	SoldAt      time.Time `json:"sold_at"`
}

// KafkaPublisher writes sale events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// PublishSaleCommitted writes a sale.committed message keyed by the sale
// reference.
func (p *KafkaPublisher) PublishSaleCommitted(ctx context.Context, sale *domain.Sale) error {
	event := saleCommittedEvent{
		Reference:   sale.Reference,
		PayerID:     sale.PayerID,
		Channel:     string(sale.Channel),
		Total:       sale.Total.String(),
		RewardUnits: sale.RewardUnits.String(),
		MeterID:     sale.MeterID,
		SoldAt:      sale.SoldAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sale event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(sale.Reference),
		Value: value,
	}); err != nil {
		return fmt.Errorf("failed to publish sale event: %w", err)
	}
	p.logger.Debug("Sale event published", "reference", sale.Reference)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close sale publisher: %w", err)
	}
	return nil
}

// NoopPublisher discards events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishSaleCommitted(ctx context.Context, sale *domain.Sale) error { return nil }
func (NoopPublisher) Close() error                                                      { return nil }
