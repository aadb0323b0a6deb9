package types

import (
	"database/sql/driver"
	"fmt"
)

// LineString is an ordered polyline persisted as a JSONB array of points.
type LineString []Point

// Value marshals the polyline into JSON for Postgres.
func (l LineString) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue([]Point(l))
}

// Scan decodes JSONB into the polyline.
func (l *LineString) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var pts []Point
	if err := jsonScan(value, &pts, "line string"); err != nil {
		return err
	}
	*l = pts
	return nil
}

// Validate requires at least two valid vertices.
func (l LineString) Validate() error {
	if len(l) < 2 {
		return fmt.Errorf("line string: need at least 2 points, got %d", len(l))
	}
	for i, p := range l {
		if !p.IsValid() {
			return fmt.Errorf("line string: invalid point at index %d", i)
		}
	}
	return nil
}
