package types

import (
	"database/sql/driver"
	"time"
)

// Message is a follow-up text sent by the requester.
type Message struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Messages is persisted as a JSONB array, oldest first.
type Messages []Message

// Last returns up to n most recent messages.
func (m Messages) Last(n int) Messages {
	if n <= 0 || len(m) == 0 {
		return nil
	}
	if len(m) <= n {
		return m
	}
	return m[len(m)-n:]
}

// Value marshals the messages into JSON for Postgres.
func (m Messages) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	return jsonValue([]Message(m))
}

// Scan decodes JSONB into the messages.
func (m *Messages) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var out []Message
	if err := jsonScan(value, &out, "messages"); err != nil {
		return err
	}
	*m = out
	return nil
}
