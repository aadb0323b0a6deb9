// Package dispatch owns the in-memory priority queue and the single consumer
// that feeds it to the allocator.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/relief-dispatch/internal/allocation"
	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/metrics"
)

const idleWait = 30 * time.Second

var errNotRunning = pkgerrors.New(pkgerrors.CodeDependency, "dispatch scheduler not running")

type matcher interface {
	AutoMatch(ctx context.Context, requestID uuid.UUID) (*allocation.MatchResult, error)
	CancelAssignment(ctx context.Context, assignmentID uuid.UUID, status enums.AssignmentStatus) (*models.Assignment, error)
}

type requestSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.AidRequest, error)
	ListUnassigned(ctx context.Context, statuses []enums.RequestStatus, limit int) ([]models.AidRequest, error)
}

// BackfillOptions narrows a backfill scan. Zero values use the configured defaults.
type BackfillOptions struct {
	Statuses []enums.RequestStatus
	Limit    int
}

// BackfillResult reports one backfill scan.
type BackfillResult struct {
	Success  bool `json:"success"`
	Scanned  int  `json:"scanned"`
	Enqueued int  `json:"enqueued"`
}

// Params wires the scheduler dependencies.
type Params struct {
	Matcher  matcher
	Requests requestSource
	Config   config.DispatchConfig
	Metrics  *metrics.DispatchMetrics
	Logger   *logger.Logger
}

// Scheduler serializes every allocation through one consumer goroutine.
// Queued work and direct calls share that goroutine.
type Scheduler struct {
	matcher  matcher
	requests requestSource
	cfg      config.DispatchConfig
	orders   map[enums.Priority]int
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
	queue    *Queue
	now      func() time.Time

	calls chan func(context.Context)
	wake  chan struct{}

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler validates dependencies and returns an idle scheduler.
func NewScheduler(p Params) (*Scheduler, error) {
	if p.Matcher == nil {
		return nil, fmt.Errorf("matcher required")
	}
	if p.Requests == nil {
		return nil, fmt.Errorf("request source required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Config.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1")
	}
	return &Scheduler{
		matcher:  p.Matcher,
		requests: p.Requests,
		cfg:      p.Config,
		orders:   p.Config.OrderValues(),
		metrics:  p.Metrics,
		logg:     p.Logger,
		queue:    NewQueue(),
		now:      func() time.Time { return time.Now().UTC() },
		calls:    make(chan func(context.Context)),
		wake:     make(chan struct{}, 1),
	}, nil
}

// Start launches the consumer goroutine. It stops when ctx is canceled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return pkgerrors.New(pkgerrors.CodeConflict, "dispatch scheduler already running")
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ctx, s.stop, s.done)
	s.logg.Info(ctx, "dispatch scheduler started")
	return nil
}

// Stop signals the consumer and waits for the in-flight item to finish.
// Queued items are dropped; the next backfill recovers them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// Len is the number of queued requests.
func (s *Scheduler) Len() int {
	return s.queue.Len()
}

// OrderValue maps a priority to its queue rank. Unknown priorities get the default.
func (s *Scheduler) OrderValue(p enums.Priority) int {
	if v, ok := s.orders[p]; ok {
		return v
	}
	return s.cfg.OrderDefault
}

// Enqueue queues a request. Queuing an already-queued request keeps the
// existing entry and only ever raises its order value.
func (s *Scheduler) Enqueue(requestID uuid.UUID, priority enums.Priority) error {
	if requestID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if priority != "" && !priority.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown priority").
			WithDetails(map[string]any{"priority": priority})
	}

	now := s.now()
	res := s.queue.Push(QueueItem{
		RequestID:  requestID,
		Priority:   priority,
		OrderValue: s.OrderValue(priority),
		EnqueuedAt: now,
		ReadyAt:    now,
	}, now)
	if res != PushKept {
		s.metrics.IncEnqueued(priority.String())
		s.metrics.SetDepth(s.queue.Len())
		s.signal()
	}
	return nil
}

// AutoMatchRequest runs one allocation on the consumer goroutine and returns
// its result.
func (s *Scheduler) AutoMatchRequest(ctx context.Context, requestID uuid.UUID) (*allocation.MatchResult, error) {
	return call(ctx, s, func(ctx context.Context) (*allocation.MatchResult, error) {
		return s.matcher.AutoMatch(ctx, requestID)
	})
}

// CancelAssignment closes an assignment on the consumer goroutine.
func (s *Scheduler) CancelAssignment(ctx context.Context, assignmentID uuid.UUID, status enums.AssignmentStatus) (*models.Assignment, error) {
	return call(ctx, s, func(ctx context.Context) (*models.Assignment, error) {
		return s.matcher.CancelAssignment(ctx, assignmentID, status)
	})
}

type outcome[T any] struct {
	val T
	err error
}

func call[T any](ctx context.Context, s *Scheduler, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	s.mu.Lock()
	running, done := s.running, s.done
	s.mu.Unlock()
	if !running {
		return zero, errNotRunning
	}

	out := make(chan outcome[T], 1)
	job := func(context.Context) {
		v, err := fn(ctx)
		out <- outcome[T]{val: v, err: err}
	}
	select {
	case s.calls <- job:
	case <-done:
		return zero, errNotRunning
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case res := <-out:
		return res.val, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Backfill enqueues requests still waiting in the given statuses that hold
// no assignment, oldest first.
func (s *Scheduler) Backfill(ctx context.Context, opts BackfillOptions) (BackfillResult, error) {
	statuses := opts.Statuses
	if len(statuses) == 0 {
		parsed, err := s.cfg.Statuses()
		if err != nil {
			return BackfillResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "backfill statuses")
		}
		statuses = parsed
	}
	for _, st := range statuses {
		if !st.IsValid() {
			return BackfillResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown request status").
				WithDetails(map[string]any{"status": st})
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.BackfillLimit
	}

	rows, err := s.requests.ListUnassigned(ctx, statuses, limit)
	if err != nil {
		return BackfillResult{}, err
	}
	result := BackfillResult{Scanned: len(rows)}
	var errs error
	for _, row := range rows {
		before := s.queue.Contains(row.ID)
		if err := s.Enqueue(row.ID, row.Priority); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("request %s: %w", row.ID, err))
			continue
		}
		if !before {
			result.Enqueued++
		}
	}
	result.Success = errs == nil
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned":  result.Scanned,
		"enqueued": result.Enqueued,
	}), "dispatch backfill complete")
	return result, errs
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "dispatch scheduler context canceled")
			s.markStopped()
			return
		case <-stop:
			s.logg.Info(ctx, "dispatch scheduler stopped")
			return
		case job := <-s.calls:
			job(ctx)
			continue
		default:
		}

		if item, ok := s.queue.PopReady(s.now()); ok {
			s.metrics.SetDepth(s.queue.Len())
			s.process(ctx, item)
			continue
		}

		wait := idleWait
		if next, ok := s.queue.NextReadyAt(); ok {
			wait = next.Sub(s.now())
			if wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
		case <-stop:
		case job := <-s.calls:
			job(ctx)
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) process(ctx context.Context, item QueueItem) {
	ctx = s.logg.WithFields(s.logg.WithAidRequestID(ctx, item.RequestID.String()), map[string]any{
		"priority": item.Priority.String(),
		"attempts": item.Attempts,
	})
	priority := item.Priority.String()

	req, err := s.requests.FindByID(ctx, item.RequestID)
	if err != nil {
		s.failed(ctx, item, err)
		return
	}
	if !req.Status.IsDispatchable() {
		s.logg.Info(s.logg.WithField(ctx, "status", req.Status.String()), "request no longer dispatchable; skipped")
		s.metrics.IncOutcome(metrics.OutcomeSkipped, priority)
		return
	}

	start := time.Now()
	result, err := s.matcher.AutoMatch(ctx, item.RequestID)
	s.metrics.ObserveAttempt(priority, time.Since(start))
	if err != nil {
		s.failed(ctx, item, err)
		return
	}
	if result == nil || !result.Success {
		s.failed(ctx, item, errors.New("no assignment made"))
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "assignments", len(result.Assignments)), "request matched")
	s.metrics.IncOutcome(metrics.OutcomeMatched, priority)
}

// failed drops or requeues an item after an unsuccessful attempt.
func (s *Scheduler) failed(ctx context.Context, item QueueItem, cause error) {
	priority := item.Priority.String()
	switch {
	case pkgerrors.IsCode(cause, pkgerrors.CodeNotFound),
		pkgerrors.IsCode(cause, pkgerrors.CodeValidation),
		pkgerrors.IsCode(cause, pkgerrors.CodeStateConflict):
		s.logg.Error(ctx, "dispatch item dropped", cause)
		s.metrics.IncOutcome(metrics.OutcomeDropped, priority)
		return
	case item.Priority == enums.PriorityLow, item.Attempts >= s.cfg.MaxAttempts:
		s.logg.Warn(s.logg.WithField(ctx, "reason", cause.Error()), "dispatch retries exhausted; dropped")
		s.metrics.IncOutcome(metrics.OutcomeDropped, priority)
		return
	}

	item.Attempts++
	item.OrderValue -= s.cfg.RetryOrderPenalty
	delay := s.backoff(item.Attempts)
	item.ReadyAt = s.now().Add(delay)
	if res := s.queue.Push(item, s.now()); res == PushKept {
		// A fresh enqueue raced in; it already covers this request.
		s.metrics.IncOutcome(metrics.OutcomeSkipped, priority)
		return
	}
	s.metrics.SetDepth(s.queue.Len())
	s.metrics.IncOutcome(metrics.OutcomeRetried, priority)
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"reason":      cause.Error(),
		"retry_in_ms": delay.Milliseconds(),
		"order_value": item.OrderValue,
	}), "dispatch attempt failed; retrying")
}

func (s *Scheduler) backoff(attempt int) time.Duration {
	delay := s.cfg.RetryBaseDelay
	for i := 1; i < attempt && delay < s.cfg.RetryMaxDelay; i++ {
		delay *= 2
	}
	if s.cfg.RetryMaxDelay > 0 && delay > s.cfg.RetryMaxDelay {
		delay = s.cfg.RetryMaxDelay
	}
	return delay
}
