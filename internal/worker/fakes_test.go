package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chrismeller/mj/internal/kafka"
	"github.com/chrismeller/mj/internal/model"
	"github.com/jmoiron/sqlx"
)

type fakeSource struct {
	msgs    chan kafka.Message
	stopped atomic.Bool // set once Fetch returned because its context ended

	mu        sync.Mutex
	committed []kafka.Message
}

func newFakeSource(msgs ...kafka.Message) *fakeSource {
	ch := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeSource{msgs: ch}
}

func (f *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		f.stopped.Store(true)
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeSource) Committed() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.committed...)
}

type fakeEvents struct {
	err error

	mu      sync.Mutex
	batches [][]model.ClientEvent
}

func (f *fakeEvents) InsertBatch(_ context.Context, events []model.ClientEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]model.ClientEvent(nil), events...))
	return nil
}

func (f *fakeEvents) List(context.Context, string, int, int) ([]model.ClientEvent, error) {
	return nil, nil
}

func (f *fakeEvents) Batches() [][]model.ClientEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]model.ClientEvent(nil), f.batches...)
}

type fakeOutbox struct {
	rows      []model.OutboxEvent
	listErr   error
	deleteErr error

	mu      sync.Mutex
	deleted []int64
}

func (f *fakeOutbox) Insert(context.Context, *sqlx.Tx, string, string, string, []byte) error {
	return nil
}

func (f *fakeOutbox) ListPending(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	gone := make(map[int64]bool, len(f.deleted))
	for _, id := range f.deleted {
		gone[id] = true
	}
	var out []model.OutboxEvent
	for _, r := range f.rows {
		if !gone[r.ID] && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeOutbox) Delete(_ context.Context, ids ...int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	return nil
}

type fakeSink struct {
	err error

	mu        sync.Mutex
	published []kafka.Message
}

func (f *fakeSink) Publish(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msgs...)
	return nil
}
