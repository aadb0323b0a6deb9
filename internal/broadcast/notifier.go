// Package broadcast pushes dispatch events to subscribers. Delivery is
// fire-and-forget: callers never see a publish failure.
package broadcast

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
)

// Notifier receives allocator lifecycle events.
type Notifier interface {
	AssignmentCreated(ctx context.Context, assignment models.Assignment)
	AssignmentUpdated(ctx context.Context, assignment models.Assignment)
	RequestStatusChanged(ctx context.Context, requestID uuid.UUID, from, to enums.RequestStatus)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) AssignmentCreated(context.Context, models.Assignment) {}

func (NopNotifier) AssignmentUpdated(context.Context, models.Assignment) {}

func (NopNotifier) RequestStatusChanged(context.Context, uuid.UUID, enums.RequestStatus, enums.RequestStatus) {
}

// AssignmentEvent is the data payload for assignment events.
type AssignmentEvent struct {
	AssignmentID   uuid.UUID              `json:"assignmentId"`
	RequestID      uuid.UUID              `json:"requestId"`
	OfferID        *uuid.UUID             `json:"offerId,omitempty"`
	OrganizationID uuid.UUID              `json:"organizationId"`
	Category       enums.NeedCategory     `json:"category"`
	Quantity       int                    `json:"quantity"`
	Status         enums.AssignmentStatus `json:"status"`
	Priority       enums.Priority         `json:"priority"`
	Method         enums.AssignmentMethod `json:"method"`
	Score          float64                `json:"score"`
}

// RequestStatusEvent is the data payload for request status transitions.
type RequestStatusEvent struct {
	RequestID uuid.UUID           `json:"requestId"`
	From      enums.RequestStatus `json:"from"`
	To        enums.RequestStatus `json:"to"`
}

func assignmentEvent(a models.Assignment) AssignmentEvent {
	return AssignmentEvent{
		AssignmentID:   a.ID,
		RequestID:      a.RequestID,
		OfferID:        a.OfferID,
		OrganizationID: a.OrganizationID,
		Category:       a.Category,
		Quantity:       a.Quantity,
		Status:         a.Status,
		Priority:       a.Priority,
		Method:         a.Method,
		Score:          a.Score,
	}
}
