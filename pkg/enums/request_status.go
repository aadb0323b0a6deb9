package enums

import "fmt"

// RequestStatus captures the aid request lifecycle.
type RequestStatus string

const (
	RequestStatusNew        RequestStatus = "new"
	RequestStatusAssigned   RequestStatus = "assigned"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusFulfilled  RequestStatus = "fulfilled"
	RequestStatusClosed     RequestStatus = "closed"
	RequestStatusCancelled  RequestStatus = "cancelled"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusNew,
	RequestStatusAssigned,
	RequestStatusInProgress,
	RequestStatusFulfilled,
	RequestStatusClosed,
	RequestStatusCancelled,
}

// DispatchableRequestStatuses lists statuses the scheduler still acts on.
var DispatchableRequestStatuses = []RequestStatus{
	RequestStatusNew,
}

// ActiveRequestStatuses lists statuses considered by the duplicate scan.
var ActiveRequestStatuses = []RequestStatus{
	RequestStatusNew,
	RequestStatusAssigned,
	RequestStatusInProgress,
}

// String implements fmt.Stringer.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RequestStatus.
func (s RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsDispatchable reports whether the scheduler should still try to match the request.
func (s RequestStatus) IsDispatchable() bool {
	for _, candidate := range DispatchableRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRequestStatus converts raw input into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}
