package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/relief-dispatch/internal/cron"
	"github.com/angelmondragon/relief-dispatch/internal/dispatch"
	"github.com/angelmondragon/relief-dispatch/pkg/db"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

type ServiceParams struct {
	Logger    *logger.Logger
	DB        *db.Client
	Redis     *redis.Client
	Scheduler *dispatch.Scheduler
	Backfill  *cron.Service
	Server    *http.Server
	Waiters   []func()
}

// Service runs the scheduler, its backfill loop and the operator API in one process.
type Service struct {
	logg      *logger.Logger
	db        *db.Client
	redis     *redis.Client
	scheduler *dispatch.Scheduler
	backfill  *cron.Service
	server    *http.Server
	waiters   []func()
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if params.Backfill == nil {
		return nil, errors.New("backfill service is required")
	}
	if params.Server == nil {
		return nil, errors.New("http server is required")
	}
	return &Service{
		logg:      params.Logger,
		db:        params.DB,
		redis:     params.Redis,
		scheduler: params.Scheduler,
		backfill:  params.Backfill,
		server:    params.Server,
		waiters:   params.Waiters,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if s.redis != nil {
		if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "dispatch worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or a component fails. Queued items are
// dropped on shutdown; the next start's backfill recovers them.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}
	defer s.shutdown()

	errCh := make(chan error, 2)
	go func() {
		// the first cycle runs immediately and doubles as the startup backfill
		errCh <- s.backfill.Run(ctx)
	}()
	go func() {
		s.logg.Info(s.logg.WithField(ctx, "addr", s.server.Addr), "starting operator api")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "dispatch worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "dispatch worker component stopped unexpectedly", err)
			return err
		}
		return err
	}
}

func (s *Service) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logg.Error(ctx, "http server shutdown failed", err)
	}
	s.scheduler.Stop()
	for _, wait := range s.waiters {
		wait()
	}
}
