package enums

import "fmt"

// RouteSeverity grades how badly a blocked route obstructs travel.
type RouteSeverity string

const (
	RouteSeverityLow      RouteSeverity = "low"
	RouteSeverityMedium   RouteSeverity = "medium"
	RouteSeverityHigh     RouteSeverity = "high"
	RouteSeverityCritical RouteSeverity = "critical"
)

var validRouteSeverities = []RouteSeverity{
	RouteSeverityLow,
	RouteSeverityMedium,
	RouteSeverityHigh,
	RouteSeverityCritical,
}

// String implements fmt.Stringer.
func (s RouteSeverity) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RouteSeverity.
func (s RouteSeverity) IsValid() bool {
	for _, candidate := range validRouteSeverities {
		if candidate == s {
			return true
		}
	}
	return false
}

// BufferKm returns the proximity buffer used by the blockage penalty.
func (s RouteSeverity) BufferKm() float64 {
	switch s {
	case RouteSeverityLow:
		return 1
	case RouteSeverityMedium:
		return 2
	case RouteSeverityHigh:
		return 5
	case RouteSeverityCritical:
		return 10
	}
	return 1
}

// ParseRouteSeverity converts raw input into a RouteSeverity.
func ParseRouteSeverity(value string) (RouteSeverity, error) {
	for _, candidate := range validRouteSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid route severity %q", value)
}
