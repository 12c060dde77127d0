package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Sink publishes messages; *Producer is the Kafka implementation.
type Sink interface {
	Publish(ctx context.Context, msgs ...Message) error
}

// Producer wraps a kafka-go Writer. Each message carries its own Topic.
type Producer struct {
	w *kafka.Writer
}

var _ Sink = (*Producer)(nil)

func NewProducer(brokers []string, batchTimeout time.Duration) *Producer {
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}}
}

func (p *Producer) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error { return p.w.Close() }
