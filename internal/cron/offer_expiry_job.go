package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

type offerExpirer interface {
	ExpireOffers(ctx context.Context, now time.Time) (int64, error)
}

// OfferExpiryJobParams configure the offer expiry job.
type OfferExpiryJobParams struct {
	Logger  *logger.Logger
	Offers  offerExpirer
	NowFunc func() time.Time
}

type offerExpiryJob struct {
	logg   *logger.Logger
	offers offerExpirer
	now    func() time.Time
}

// NewOfferExpiryJob builds the job that retires offers past valid_until.
func NewOfferExpiryJob(params OfferExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	now := params.NowFunc
	if now == nil {
		now = time.Now
	}
	return &offerExpiryJob{logg: params.Logger, offers: params.Offers, now: now}, nil
}

func (j *offerExpiryJob) Name() string { return "offer-expiry" }

func (j *offerExpiryJob) Run(ctx context.Context) error {
	expired, err := j.offers.ExpireOffers(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire offers: %w", err)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "offers expired")
	}
	return nil
}
