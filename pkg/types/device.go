package types

import (
	"database/sql/driver"
	"strings"
)

// DeviceSignals are reported by the requester's handset.
type DeviceSignals struct {
	BatteryLevel   *int   `json:"battery_level,omitempty"`
	SignalStrength string `json:"signal_strength,omitempty"`
}

// LowBattery reports a battery reading below 10 percent.
func (d DeviceSignals) LowBattery() bool {
	return d.BatteryLevel != nil && *d.BatteryLevel < 10
}

// PoorSignal reports a weak or missing connection.
func (d DeviceSignals) PoorSignal() bool {
	switch strings.ToLower(strings.TrimSpace(d.SignalStrength)) {
	case "poor", "weak", "none", "very_weak":
		return true
	}
	return false
}

// Value marshals the signals into JSON for Postgres.
func (d DeviceSignals) Value() (driver.Value, error) {
	return jsonValue(d)
}

// Scan decodes JSONB into the signals.
func (d *DeviceSignals) Scan(value interface{}) error {
	if value == nil {
		*d = DeviceSignals{}
		return nil
	}
	var out DeviceSignals
	if err := jsonScan(value, &out, "device signals"); err != nil {
		return err
	}
	*d = out
	return nil
}
