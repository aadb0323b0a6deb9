package enums

// BroadcastEventType names events pushed to the broadcast topic.
type BroadcastEventType string

const (
	EventAssignmentCreated    BroadcastEventType = "assignment_created"
	EventAssignmentUpdated    BroadcastEventType = "assignment_updated"
	EventRequestStatusChanged BroadcastEventType = "request_status_changed"
)

// String implements fmt.Stringer.
func (e BroadcastEventType) String() string {
	return string(e)
}
