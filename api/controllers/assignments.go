package controllers

import (
	"net/http"

	"github.com/angelmondragon/relief-dispatch/api/responses"
	"github.com/angelmondragon/relief-dispatch/api/validators"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

type assignmentCancelRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=cancelled declined"`
}

// AssignmentCancel ends an assignment as cancelled (default) or declined and
// returns its held quantity.
func AssignmentCancel(dispatcher Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body assignmentCancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		status := enums.AssignmentStatusCancelled
		if body.Status != "" {
			status = enums.AssignmentStatus(body.Status)
		}
		assignment, err := dispatcher.CancelAssignment(r.Context(), id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAssignmentView(*assignment))
	}
}
