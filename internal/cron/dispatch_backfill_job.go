package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/relief-dispatch/internal/dispatch"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

type backfiller interface {
	Backfill(ctx context.Context, opts dispatch.BackfillOptions) (dispatch.BackfillResult, error)
}

// DispatchBackfillJobParams configure the backfill job.
type DispatchBackfillJobParams struct {
	Logger     *logger.Logger
	Backfiller backfiller
	Options    dispatch.BackfillOptions
}

type dispatchBackfillJob struct {
	logg       *logger.Logger
	backfiller backfiller
	opts       dispatch.BackfillOptions
}

// NewDispatchBackfillJob builds the job that re-enqueues unassigned requests
// the scheduler lost, such as those queued before a restart.
func NewDispatchBackfillJob(params DispatchBackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Backfiller == nil {
		return nil, fmt.Errorf("backfiller required")
	}
	return &dispatchBackfillJob{
		logg:       params.Logger,
		backfiller: params.Backfiller,
		opts:       params.Options,
	}, nil
}

func (j *dispatchBackfillJob) Name() string { return "dispatch-backfill" }

func (j *dispatchBackfillJob) Run(ctx context.Context) error {
	res, err := j.backfiller.Backfill(ctx, j.opts)
	if err != nil {
		return fmt.Errorf("backfill dispatch queue: %w", err)
	}
	ctx = j.logg.WithFields(ctx, map[string]any{
		"scanned":  res.Scanned,
		"enqueued": res.Enqueued,
	})
	j.logg.Info(ctx, "dispatch backfill completed")
	return nil
}
