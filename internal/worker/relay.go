package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/chrismeller/mj/internal/kafka"
	"github.com/chrismeller/mj/internal/metrics"
	"github.com/chrismeller/mj/internal/repository"
	"go.uber.org/zap"
)

// OutboxRelay polls the outbox table and publishes each row to Kafka under its topic,
// deleting rows once the broker has acknowledged them. It is the alternative to running
// Debezium's outbox connector against the same table; run one or the other.
type OutboxRelay struct {
	Outbox repository.OutboxRepository
	Sink   kafka.Sink
	Log    *zap.Logger

	BatchSize int
	Interval  time.Duration
}

func NewOutboxRelay(outbox repository.OutboxRepository, sink kafka.Sink, log *zap.Logger) *OutboxRelay {
	return &OutboxRelay{
		Outbox:    outbox,
		Sink:      sink,
		Log:       log,
		BatchSize: 100,
		Interval:  500 * time.Millisecond,
	}
}

// Run polls until ctx is cancelled. Failed polls are logged and retried on the next tick.
func (r *OutboxRelay) Run(ctx context.Context) error {
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}
	if r.Interval <= 0 {
		r.Interval = 500 * time.Millisecond
	}

	tick := time.NewTicker(r.Interval)
	defer tick.Stop()

	for {
		// keep draining while batches come back full
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.Log.Error("outbox relay failed", zap.Error(err))
				break
			}
			if n < r.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were relayed.
// A row is deleted only after it was published, so a crash in between republishes it.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	rows, err := r.Outbox.ListPending(ctx, r.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list outbox: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, kafka.Message{
			Topic: row.Topic,
			Key:   []byte(row.AggregateID),
			Value: row.Payload,
			Time:  row.CreatedAt,
		})
		ids = append(ids, row.ID)
	}

	if err := r.Sink.Publish(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}
	if err := r.Outbox.Delete(ctx, ids...); err != nil {
		return 0, fmt.Errorf("delete relayed rows: %w", err)
	}

	metrics.OutboxRelayed.Add(float64(len(rows)))
	r.Log.Debug("outbox relayed", zap.Int("rows", len(rows)))
	return len(rows), nil
}
