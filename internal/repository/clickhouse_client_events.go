package repository

import (
	"context"
	"strings"

	"github.com/chrismeller/mj/internal/model"
	"github.com/jmoiron/sqlx"
)

// ClientEventsRepository stores and lists client events projected into ClickHouse.
type ClientEventsRepository interface {
	InsertBatch(ctx context.Context, events []model.ClientEvent) error
	List(ctx context.Context, email string, limit, offset int) ([]model.ClientEvent, error)
}

type chClientEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewClientEventsRepository(ch *sqlx.DB) ClientEventsRepository {
	return &chClientEventsRepository{ch: ch}
}

// InsertBatch writes all events in one INSERT. Duplicates are collapsed by the
// ReplacingMergeTree on event_id, so redelivered Kafka messages are harmless.
func (r *chClientEventsRepository) InsertBatch(ctx context.Context, events []model.ClientEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(events)*5)

	sb.WriteString(`INSERT INTO client_events (event_id, client_id, email, attribute_count, created_at) VALUES `)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, e.ID, e.ClientID, e.Email, e.AttributeCount, e.CreatedAt)
	}

	_, err := r.ch.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *chClientEventsRepository) List(ctx context.Context, email string, limit, offset int) ([]model.ClientEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT event_id, client_id, email, attribute_count, created_at
		FROM client_events FINAL
	`
	var args []any

	if email != "" {
		q += " WHERE email = ?"
		args = append(args, email)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.ClientEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
