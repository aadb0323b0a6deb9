package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/api/responses"
	"github.com/angelmondragon/relief-dispatch/api/validators"
	"github.com/angelmondragon/relief-dispatch/internal/duplicates"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

const maxReviewerLength = 120

// DuplicateReviewer is the duplicate review surface.
type DuplicateReviewer interface {
	Find(ctx context.Context, opts duplicates.Options) ([]duplicates.Pair, error)
	Merge(ctx context.Context, keepID, discardID uuid.UUID, reviewer string) error
	MarkNotDuplicate(ctx context.Context, aID, bID uuid.UUID, reviewer string) error
}

type mergeRequest struct {
	KeepID    string `json:"keep_id" validate:"required,uuid"`
	DiscardID string `json:"discard_id" validate:"required,uuid,nefield=KeepID"`
	Reviewer  string `json:"reviewer" validate:"required,max=120"`
}

type notDuplicateRequest struct {
	RequestA string `json:"request_a" validate:"required,uuid"`
	RequestB string `json:"request_b" validate:"required,uuid,nefield=RequestA"`
	Reviewer string `json:"reviewer" validate:"required,max=120"`
}

// DuplicatesList returns likely duplicate pairs, best first. Query params
// override the configured radius, threshold, lookback and result cap.
func DuplicatesList(svc DuplicateReviewer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		radius, err := validators.ParseQueryFloat(r, "radius_m", 0, 0, 50000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		threshold, err := validators.ParseQueryFloat(r, "threshold", 0, 0, 1)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		hours, err := validators.ParseQueryInt(r, "hours", 0, 0, 24*30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pairs, err := svc.Find(r.Context(), duplicates.Options{
			RadiusMeters: radius,
			Threshold:    threshold,
			Lookback:     time.Duration(hours) * time.Hour,
			MaxResults:   limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if pairs == nil {
			pairs = []duplicates.Pair{}
		}
		responses.WriteSuccess(w, pairs)
	}
}

func DuplicatesMerge(svc DuplicateReviewer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body mergeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		keepID := uuid.MustParse(body.KeepID)
		discardID := uuid.MustParse(body.DiscardID)
		reviewer := validators.SanitizeString(body.Reviewer, maxReviewerLength)
		if err := svc.Merge(r.Context(), keepID, discardID, reviewer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"kept": keepID, "merged": discardID})
	}
}

func DuplicatesNotDuplicate(svc DuplicateReviewer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body notDuplicateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		aID := uuid.MustParse(body.RequestA)
		bID := uuid.MustParse(body.RequestB)
		reviewer := validators.SanitizeString(body.Reviewer, maxReviewerLength)
		if err := svc.MarkNotDuplicate(r.Context(), aID, bID, reviewer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"request_a": aID, "request_b": bID})
	}
}
