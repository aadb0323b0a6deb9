package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/relief-dispatch/api/responses"
	"github.com/angelmondragon/relief-dispatch/api/validators"
	"github.com/angelmondragon/relief-dispatch/internal/dispatch"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

// Backfiller rescans the store for requests missing from the queue.
type Backfiller interface {
	Backfill(ctx context.Context, opts dispatch.BackfillOptions) (dispatch.BackfillResult, error)
	Len() int
}

type backfillRequest struct {
	Statuses []string `json:"statuses"`
	Limit    int      `json:"limit" validate:"min=0,max=5000"`
}

// DispatchBackfill triggers an on-demand backfill scan.
func DispatchBackfill(backfiller Backfiller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body backfillRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		opts := dispatch.BackfillOptions{Limit: body.Limit}
		for _, raw := range body.Statuses {
			status, err := enums.ParseRequestStatus(strings.TrimSpace(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"status": raw}))
				return
			}
			opts.Statuses = append(opts.Statuses, status)
		}
		res, err := backfiller.Backfill(r.Context(), opts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

func DispatchQueue(backfiller Backfiller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]int{"depth": backfiller.Len()})
	}
}
