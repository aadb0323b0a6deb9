package types

import (
	"database/sql/driver"
	"time"
)

// TimelineEntry is an append-only audit note on a request.
type TimelineEntry struct {
	Action    string    `json:"action"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	RelatedID string    `json:"related_id,omitempty"`
	At        time.Time `json:"at"`
}

// Timeline is persisted as a JSONB array.
type Timeline []TimelineEntry

// Append returns the timeline with entry added at the end.
func (t Timeline) Append(entry TimelineEntry) Timeline {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	return append(t, entry)
}

// Value marshals the timeline into JSON for Postgres.
func (t Timeline) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	return jsonValue([]TimelineEntry(t))
}

// Scan decodes JSONB into the timeline.
func (t *Timeline) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	var out []TimelineEntry
	if err := jsonScan(value, &out, "timeline"); err != nil {
		return err
	}
	*t = out
	return nil
}
