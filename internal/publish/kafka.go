// Package publish pushes emitted signals to downstream consumers over
// Kafka. Publishing is best-effort: a broker outage must never fail a
// pipeline cycle.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"leadlag/internal/domain"
)

// SignalPublisher sends signal records somewhere downstream.
type SignalPublisher interface {
	Publish(ctx context.Context, signals []*domain.SignalRecord) error
	Close() error
}

// KafkaConfig configures the Kafka signal publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchTimeout time.Duration
}

// KafkaPublisher implements SignalPublisher on a kafka.Writer. Messages
// are keyed by leader symbol so one leader's signals stay ordered
// within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ SignalPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher. Brokers and topic are
// required.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 1 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &KafkaPublisher{writer: writer}, nil
}

// Publish sends all signals in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, signals []*domain.SignalRecord) error {
	if len(signals) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(signals))
	for _, sig := range signals {
		value, err := json.Marshal(sig)
		if err != nil {
			return fmt.Errorf("marshal signal: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(sig.LeaderSymbol),
			Value: value,
			Time:  time.Now(),
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write signals: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
