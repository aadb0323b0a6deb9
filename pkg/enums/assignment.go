package enums

import "fmt"

// AssignmentStatus tracks fulfillment progress of a single allocation.
type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusAccepted   AssignmentStatus = "accepted"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
	AssignmentStatusDeclined   AssignmentStatus = "declined"
	AssignmentStatusCancelled  AssignmentStatus = "cancelled"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPending,
	AssignmentStatusAccepted,
	AssignmentStatusInProgress,
	AssignmentStatusCompleted,
	AssignmentStatusDeclined,
	AssignmentStatusCancelled,
}

// String implements fmt.Stringer.
func (s AssignmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (s AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the assignment no longer holds capacity.
func (s AssignmentStatus) IsTerminal() bool {
	switch s {
	case AssignmentStatusCompleted, AssignmentStatusDeclined, AssignmentStatusCancelled:
		return true
	}
	return false
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}

// AssignmentMethod records how an assignment was produced.
type AssignmentMethod string

const (
	AssignmentMethodAuto       AssignmentMethod = "auto"
	AssignmentMethodManual     AssignmentMethod = "manual"
	AssignmentMethodOfferMatch AssignmentMethod = "offer_match"
)

// String implements fmt.Stringer.
func (m AssignmentMethod) String() string {
	return string(m)
}
