package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

type duplicateFlagger interface {
	FlagCandidates(ctx context.Context) (int, error)
}

// DuplicateScanJobParams configure the duplicate scan.
type DuplicateScanJobParams struct {
	Logger  *logger.Logger
	Flagger duplicateFlagger
}

type duplicateScanJob struct {
	logg    *logger.Logger
	flagger duplicateFlagger
}

// NewDuplicateScanJob builds the job that scores likely duplicate requests.
func NewDuplicateScanJob(params DuplicateScanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Flagger == nil {
		return nil, fmt.Errorf("duplicate flagger required")
	}
	return &duplicateScanJob{logg: params.Logger, flagger: params.Flagger}, nil
}

func (j *duplicateScanJob) Name() string { return "duplicate-scan" }

func (j *duplicateScanJob) Run(ctx context.Context) error {
	flagged, err := j.flagger.FlagCandidates(ctx)
	ctx = j.logg.WithField(ctx, "flagged", flagged)
	if err != nil {
		return fmt.Errorf("flag duplicate candidates: %w", err)
	}
	j.logg.Info(ctx, "duplicate scan completed")
	return nil
}
