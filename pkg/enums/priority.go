package enums

import "fmt"

// Priority maps to the request_priority enum in Postgres.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
	PrioritySOS      Priority = "sos"
)

var validPriorities = []Priority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityCritical,
	PrioritySOS,
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Priority.
func (p Priority) IsValid() bool {
	for _, candidate := range validPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsUrgent reports whether the priority is sos or critical.
func (p Priority) IsUrgent() bool {
	return p == PrioritySOS || p == PriorityCritical
}

// Rank orders priorities from low (1) to sos (5). Unknown values rank 0.
func (p Priority) Rank() int {
	for i, candidate := range validPriorities {
		if candidate == p {
			return i + 1
		}
	}
	return 0
}

// ParsePriority converts raw input into a Priority.
func ParsePriority(value string) (Priority, error) {
	for _, candidate := range validPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid priority %q", value)
}
