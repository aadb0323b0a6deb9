package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/internal/allocation"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

type requestView struct {
	ID                   uuid.UUID           `json:"id"`
	Description          string              `json:"description"`
	Language             string              `json:"language"`
	Location             types.Point         `json:"location"`
	Needs                types.Needs         `json:"needs"`
	Beneficiaries        types.Beneficiaries `json:"beneficiaries"`
	Medical              types.MedicalInfo   `json:"medical"`
	Device               types.DeviceSignals `json:"device"`
	Messages             types.Messages      `json:"messages"`
	RepeatedMessageCount int                 `json:"repeated_message_count"`
	SelfDeclaredUrgency  enums.Priority      `json:"self_declared_urgency"`
	Priority             enums.Priority      `json:"priority"`
	SOSDetected          bool                `json:"sos_detected"`
	SOSIndicators        []string            `json:"sos_indicators"`
	Status               enums.RequestStatus `json:"status"`
	IsDuplicate          bool                `json:"is_duplicate"`
	MergedInto           *uuid.UUID          `json:"merged_into,omitempty"`
	DuplicateScore       *float64            `json:"duplicate_score,omitempty"`
	AssignmentIDs        []uuid.UUID         `json:"assignment_ids"`
	Timeline             types.Timeline      `json:"timeline"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func newRequestView(r models.AidRequest) requestView {
	indicators := []string(r.SOSIndicators)
	if indicators == nil {
		indicators = []string{}
	}
	ids := []uuid.UUID(r.AssignmentIDs)
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return requestView{
		ID:                   r.ID,
		Description:          r.Description,
		Language:             r.Language,
		Location:             r.Location,
		Needs:                r.Needs,
		Beneficiaries:        r.Beneficiaries,
		Medical:              r.Medical,
		Device:               r.Device,
		Messages:             r.Messages,
		RepeatedMessageCount: r.RepeatedMessageCount,
		SelfDeclaredUrgency:  r.SelfDeclaredUrgency,
		Priority:             r.Priority,
		SOSDetected:          r.SOSDetected,
		SOSIndicators:        indicators,
		Status:               r.Status,
		IsDuplicate:          r.IsDuplicate,
		MergedInto:           r.MergedInto,
		DuplicateScore:       r.DuplicateScore,
		AssignmentIDs:        ids,
		Timeline:             r.Timeline,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type assignmentView struct {
	ID             uuid.UUID              `json:"id"`
	RequestID      uuid.UUID              `json:"request_id"`
	OfferID        *uuid.UUID             `json:"offer_id,omitempty"`
	OrganizationID uuid.UUID              `json:"organization_id"`
	Category       enums.NeedCategory     `json:"category"`
	Quantity       int                    `json:"quantity"`
	Status         enums.AssignmentStatus `json:"status"`
	Priority       enums.Priority         `json:"priority"`
	Method         enums.AssignmentMethod `json:"method"`
	Score          float64                `json:"score"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func newAssignmentView(a models.Assignment) assignmentView {
	return assignmentView{
		ID:             a.ID,
		RequestID:      a.RequestID,
		OfferID:        a.OfferID,
		OrganizationID: a.OrganizationID,
		Category:       a.Category,
		Quantity:       a.Quantity,
		Status:         a.Status,
		Priority:       a.Priority,
		Method:         a.Method,
		Score:          a.Score,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func newAssignmentViews(rows []models.Assignment) []assignmentView {
	views := make([]assignmentView, 0, len(rows))
	for _, a := range rows {
		views = append(views, newAssignmentView(a))
	}
	return views
}

type matchView struct {
	Success     bool             `json:"success"`
	Assignments []assignmentView `json:"assignments"`
	Message     string           `json:"message"`
}

func newMatchView(res *allocation.MatchResult) matchView {
	if res == nil {
		return matchView{Assignments: []assignmentView{}}
	}
	return matchView{
		Success:     res.Success,
		Assignments: newAssignmentViews(res.Assignments),
		Message:     res.Message,
	}
}
