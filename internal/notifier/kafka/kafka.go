// Package kafka publishes consensus signals to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes one message per consensus signal, keyed by symbol.
type Kafka struct {
	writer messageWriter
	topic  string
}

// New creates a Kafka sink. Connections are opened lazily on first publish.
func New(cfg config.KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Gzip,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Kafka{writer: w, topic: cfg.Topic}, nil
}

func (k *Kafka) Name() string { return "kafka" }

// Publish writes the batch in a single call so it lands together.
func (k *Kafka) Publish(ctx context.Context, signals []core.ConsensusSignal) error {
	if len(signals) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(signals))
	for _, sig := range signals {
		value, err := json.Marshal(sig)
		if err != nil {
			return fmt.Errorf("kafka: marshal %s: %w", sig.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(sig.Symbol),
			Value: value,
			Time:  sig.Timestamp,
			Headers: []kafka.Header{
				{Key: "signal_id", Value: []byte(sig.ID)},
				{Key: "action", Value: []byte(sig.Action)},
			},
		})
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
