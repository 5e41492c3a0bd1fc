package repository

import (
	"context"
	"fmt"
	"strings"

	"FinSignal/internal/domain/models"
)

type messageProducer interface {
	Publish(ctx context.Context, key []byte, value interface{}) error
	Close() error
}

// SentCounter counts messages delivered per backend.
type SentCounter interface {
	RecordMessageSent(backend, symbol string)
}

// KafkaSignalPublisher publishes signals keyed by symbol so that one symbol
// always lands on the same partition.
type KafkaSignalPublisher struct {
	p       messageProducer
	counter SentCounter
}

func NewKafkaSignalPublisher(p messageProducer, counter SentCounter) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{p: p, counter: counter}
}

func (k *KafkaSignalPublisher) Publish(ctx context.Context, s models.Signal) error {
	symbol := strings.ToUpper(s.Symbol)
	if symbol == "" {
		return fmt.Errorf("signal without symbol")
	}
	if err := k.p.Publish(ctx, []byte(symbol), s); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	if k.counter != nil {
		k.counter.RecordMessageSent("kafka", symbol)
	}
	return nil
}

func (k *KafkaSignalPublisher) Close() error {
	return k.p.Close()
}

// NopSignalPublisher drops signals; used when Kafka is disabled.
type NopSignalPublisher struct{}

func (NopSignalPublisher) Publish(context.Context, models.Signal) error { return nil }
func (NopSignalPublisher) Close() error                                 { return nil }
