package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/relief-dispatch/internal/dispatch"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

type stubFlagger struct {
	flagged int
	err     error
	calls   int
}

func (s *stubFlagger) FlagCandidates(context.Context) (int, error) {
	s.calls++
	return s.flagged, s.err
}

type stubBackfiller struct {
	opts dispatch.BackfillOptions
	res  dispatch.BackfillResult
	err  error
}

func (s *stubBackfiller) Backfill(_ context.Context, opts dispatch.BackfillOptions) (dispatch.BackfillResult, error) {
	s.opts = opts
	return s.res, s.err
}

type stubExpirer struct {
	at      time.Time
	expired int64
}

func (s *stubExpirer) ExpireOffers(_ context.Context, now time.Time) (int64, error) {
	s.at = now
	return s.expired, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func TestDuplicateScanJob(t *testing.T) {
	flagger := &stubFlagger{flagged: 3}
	job, err := NewDuplicateScanJob(DuplicateScanJobParams{Logger: testLogger(), Flagger: flagger})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "duplicate-scan" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if flagger.calls != 1 {
		t.Fatalf("expected one scan, got %d", flagger.calls)
	}

	flagger.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected scan error to surface")
	}
}

func TestDispatchBackfillJobPassesOptions(t *testing.T) {
	backfiller := &stubBackfiller{res: dispatch.BackfillResult{Success: true, Scanned: 4, Enqueued: 2}}
	opts := dispatch.BackfillOptions{Limit: 25}
	job, err := NewDispatchBackfillJob(DispatchBackfillJobParams{
		Logger:     testLogger(),
		Backfiller: backfiller,
		Options:    opts,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if backfiller.opts.Limit != 25 {
		t.Fatalf("options not forwarded: %+v", backfiller.opts)
	}

	backfiller.err = errors.New("not running")
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected backfill error to surface")
	}
}

func TestOfferExpiryJobUsesClock(t *testing.T) {
	fixed := time.Date(2024, 2, 6, 9, 0, 0, 0, time.FixedZone("TRT", 3*3600))
	expirer := &stubExpirer{expired: 2}
	job, err := NewOfferExpiryJob(OfferExpiryJobParams{
		Logger:  testLogger(),
		Offers:  expirer,
		NowFunc: func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !expirer.at.Equal(fixed) || expirer.at.Location() != time.UTC {
		t.Fatalf("expected UTC clock reading, got %v", expirer.at)
	}
}

func TestJobConstructorsValidate(t *testing.T) {
	if _, err := NewDuplicateScanJob(DuplicateScanJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected flagger error")
	}
	if _, err := NewDispatchBackfillJob(DispatchBackfillJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected backfiller error")
	}
	if _, err := NewOfferExpiryJob(OfferExpiryJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected offer repository error")
	}
}
