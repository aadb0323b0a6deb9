package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/api/responses"
	"github.com/angelmondragon/relief-dispatch/api/validators"
	"github.com/angelmondragon/relief-dispatch/internal/allocation"
	"github.com/angelmondragon/relief-dispatch/internal/requests"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

// RequestService is the intake surface.
type RequestService interface {
	Submit(ctx context.Context, in requests.SubmitInput) (*models.AidRequest, error)
	AddMessage(ctx context.Context, id uuid.UUID, in requests.MessageInput) (*models.AidRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AidRequest, error)
}

// Dispatcher is the scheduler surface the operator routes drive.
type Dispatcher interface {
	Enqueue(requestID uuid.UUID, priority enums.Priority) error
	AutoMatchRequest(ctx context.Context, requestID uuid.UUID) (*allocation.MatchResult, error)
	CancelAssignment(ctx context.Context, assignmentID uuid.UUID, status enums.AssignmentStatus) (*models.Assignment, error)
}

// AssignmentLister reads a request's assignments.
type AssignmentLister interface {
	Assignments(ctx context.Context, requestID uuid.UUID) ([]models.Assignment, error)
}

// RequestSubmit accepts a new aid request. Validation lives in the intake service.
func RequestSubmit(svc RequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in requests.SubmitInput
		if err := validators.DecodeJSON(r, &in); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Submit(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newRequestView(*req))
	}
}

func RequestGet(svc RequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRequestView(*req))
	}
}

// RequestAddMessage records a follow-up message and returns the reclassified request.
func RequestAddMessage(svc RequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var in requests.MessageInput
		if err := validators.DecodeJSON(r, &in); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.AddMessage(r.Context(), id, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRequestView(*req))
	}
}

// RequestEnqueue puts a dispatchable request back on the queue at its
// current priority.
func RequestEnqueue(svc RequestService, dispatcher Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !req.Status.IsDispatchable() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeStateConflict, "request is not awaiting dispatch").
					WithDetails(map[string]any{"status": req.Status}))
			return
		}
		if err := dispatcher.Enqueue(req.ID, req.Priority); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
			"request_id": req.ID,
			"priority":   req.Priority,
		})
	}
}

// RequestAutoMatch runs one allocation pass for a request through the scheduler.
func RequestAutoMatch(dispatcher Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := dispatcher.AutoMatchRequest(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMatchView(res))
	}
}

func RequestAssignments(lister AssignmentLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := lister.Assignments(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAssignmentViews(rows))
	}
}
