package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chrismeller/mj/internal/kafka"
	"github.com/chrismeller/mj/internal/metrics"
	"github.com/chrismeller/mj/internal/model"
	"github.com/chrismeller/mj/internal/repository"
	"go.uber.org/zap"
)

// ClientProjector:
// - fetches clients.created events from Kafka,
// - batches them by size/time,
// - writes each batch to ClickHouse, then commits the offsets.
//
// Delivery is at-least-once; ClickHouse collapses redelivered events by event_id.
type ClientProjector struct {
	// Dependencies
	Source kafka.Source
	Events repository.ClientEventsRepository
	Log    *zap.Logger

	// Behavior
	BatchSize int           // max buffered messages per flush
	BatchWait time.Duration // max time to wait before flush
}

// NewClientProjector builds a projector with sane defaults.
func NewClientProjector(src kafka.Source, events repository.ClientEventsRepository, log *zap.Logger) *ClientProjector {
	return &ClientProjector{
		Source:    src,
		Events:    events,
		Log:       log,
		BatchSize: 500,
		BatchWait: time.Second,
	}
}

// Run blocks until ctx is cancelled or a batch cannot be stored. On a storage failure the
// batch is left uncommitted and Run returns the error, so a restart redelivers it.
func (p *ClientProjector) Run(ctx context.Context) error {
	if p.BatchSize <= 0 {
		p.BatchSize = 500
	}
	if p.BatchWait <= 0 {
		p.BatchWait = time.Second
	}

	// the fetcher lives exactly as long as Run, also when a failed flush returns early
	fetchCtx, stopFetch := context.WithCancel(ctx)
	defer stopFetch()

	msgCh := make(chan kafka.Message, p.BatchSize)
	go p.fetch(fetchCtx, msgCh)

	tick := time.NewTicker(p.BatchWait)
	defer tick.Stop()

	var (
		events  []model.ClientEvent
		pending []kafka.Message
	)

	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		if err := p.Events.InsertBatch(ctx, events); err != nil {
			metrics.ClientEventsProjected.WithLabelValues("failed").Add(float64(len(events)))
			return fmt.Errorf("insert client events: %w", err)
		}
		if err := p.Source.Commit(ctx, pending...); err != nil {
			return fmt.Errorf("commit offsets: %w", err)
		}

		metrics.ClientEventsProjected.WithLabelValues("stored").Add(float64(len(events)))
		p.Log.Debug("projector flushed", zap.Int("events", len(events)), zap.Int("messages", len(pending)))

		events = events[:0]
		pending = pending[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			// drain what is already buffered; the fetch context is gone
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return flush(shutdownCtx)

		case m, ok := <-msgCh:
			if !ok {
				return flush(ctx)
			}
			pending = append(pending, m)

			ev, err := decodeClientEvent(m.Value)
			if err != nil {
				// poison → commit with the batch, skip
				metrics.ClientEventsProjected.WithLabelValues("skipped").Inc()
				p.Log.Warn("skipping client event",
					zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
			} else {
				events = append(events, ev)
			}

			if len(pending) >= p.BatchSize {
				if err := flush(ctx); err != nil {
					return err
				}
			}

		case <-tick.C:
			if err := flush(ctx); err != nil {
				return err
			}
		}
	}
}

func (p *ClientProjector) fetch(ctx context.Context, out chan<- kafka.Message) {
	for {
		m, err := p.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}

var errIncompleteEvent = errors.New("event missing id or client_id")

func decodeClientEvent(b []byte) (model.ClientEvent, error) {
	var ev model.ClientEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return model.ClientEvent{}, fmt.Errorf("bad event json: %w", err)
	}
	if ev.ID == "" || ev.ClientID <= 0 {
		return model.ClientEvent{}, errIncompleteEvent
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return ev, nil
}
