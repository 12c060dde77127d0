package model

import (
	"encoding/json"
	"strings"
)

// Reserved field names of a client submission. Everything else is an attribute.
const (
	FieldEmail = "email"
	FieldPhone = "phone"
	FieldID    = "id"
)

// MaxFields caps email + phone + attributes in a single submission.
const MaxFields = 10

// Fields is a client submission as received: reserved fields plus free-form attributes.
type Fields map[string]string

// Email returns the submitted email, trimmed.
func (f Fields) Email() string { return strings.TrimSpace(f[FieldEmail]) }

// Phone returns the submitted phone, trimmed.
func (f Fields) Phone() string { return strings.TrimSpace(f[FieldPhone]) }

// Attributes returns a copy of every non-reserved field.
func (f Fields) Attributes() map[string]string {
	attrs := make(map[string]string, len(f))
	for k, v := range f {
		if k == FieldEmail || k == FieldPhone {
			continue
		}
		attrs[k] = v
	}
	return attrs
}

// ClientRow is the DB entity persisted in the clients table. Phone holds hex ciphertext.
type ClientRow struct {
	ID    int64  `db:"id"`
	Email string `db:"email"`
	Phone string `db:"phone"`
}

// AttributeRow is one client_meta row.
type AttributeRow struct {
	ClientID int64  `db:"client_id"`
	Key      string `db:"meta_key"`
	Value    string `db:"meta_value"`
}

// Client is the assembled record returned to callers. Phone is the masked display form.
type Client struct {
	ID         int64
	Email      string
	Phone      string
	Attributes map[string]string
}

// MarshalJSON flattens attributes next to id/email/phone. Reserved keys win on collision.
func (c Client) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Attributes)+3)
	for k, v := range c.Attributes {
		out[k] = v
	}
	out[FieldID] = c.ID
	out[FieldEmail] = c.Email
	out[FieldPhone] = c.Phone

	return json.Marshal(out)
}
