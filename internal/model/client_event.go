package model

import "time"

// ClientEvent is the payload published to Kafka (via Debezium outbox SMT) when a client is created.
// It never carries the phone number.
type ClientEvent struct {
	ID             string    `json:"id" db:"event_id"`         // ULID
	ClientID       int64     `json:"client_id" db:"client_id"` // clients.id
	Email          string    `json:"email" db:"email"`
	AttributeCount int       `json:"attribute_count" db:"attribute_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
