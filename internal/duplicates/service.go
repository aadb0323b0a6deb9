package duplicates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// Timeline actions written by review decisions.
const (
	ActionMergedInto      = "duplicate_merged_into"
	ActionMergedDuplicate = "duplicate_merged"
	ActionNotDuplicate    = "duplicate_dismissed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the duplicate review service.
type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Config     config.DuplicatesConfig
	Logger     *logger.Logger
}

// Service exposes the human-reviewed duplicate workflow.
type Service struct {
	repo     Repository
	db       txRunner
	cfg      config.DuplicatesConfig
	detector *Detector
	logg     *logger.Logger
}

// NewService builds the duplicate review service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	detector, err := NewDetector(params.Repository, params.Config, params.Logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:     params.Repository,
		db:       params.DB,
		cfg:      params.Config,
		detector: detector,
		logg:     params.Logger,
	}, nil
}

// Find lists likely duplicate pairs for review.
func (s *Service) Find(ctx context.Context, opts Options) ([]Pair, error) {
	return s.detector.Find(ctx, opts)
}

// Merge folds discardID into keepID. The discarded request is closed and
// marked as a duplicate; the kept request keeps its status.
func (s *Service) Merge(ctx context.Context, keepID, discardID uuid.UUID, reviewer string) error {
	if keepID == uuid.Nil || discardID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "both request ids are required")
	}
	if keepID == discardID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot merge a request into itself")
	}

	now := time.Now().UTC()
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		keep, discard, err := loadPair(ctx, repo, keepID, discardID)
		if err != nil {
			return err
		}
		if keep.IsDuplicate || keep.MergedInto != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "kept request is itself a merged duplicate")
		}
		if discard.IsDuplicate || discard.MergedInto != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "request already merged")
		}

		score := Score(*keep, *discard, s.cfg.RadiusMeters).Total
		keepTimeline := keep.Timeline.Append(types.TimelineEntry{
			Action:    ActionMergedDuplicate,
			Note:      fmt.Sprintf("absorbed duplicate %s", discard.ID),
			Actor:     reviewer,
			RelatedID: discard.ID.String(),
			At:        now,
		})
		discardTimeline := discard.Timeline.Append(types.TimelineEntry{
			Action:    ActionMergedInto,
			Note:      fmt.Sprintf("merged into %s", keep.ID),
			Actor:     reviewer,
			RelatedID: keep.ID.String(),
			At:        now,
		})

		if err := repo.Update(ctx, discard.ID, map[string]any{
			"is_duplicate":    true,
			"merged_into":     keep.ID,
			"status":          enums.RequestStatusClosed,
			"duplicate_score": score,
			"timeline":        discardTimeline,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update discarded request")
		}
		if err := repo.Update(ctx, keep.ID, map[string]any{"timeline": keepTimeline}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update kept request")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"keep_id":    keepID.String(),
		"discard_id": discardID.String(),
		"reviewer":   reviewer,
	}), "duplicate merged")
	return nil
}

// MarkNotDuplicate records a reviewer's decision that two requests are
// distinct. Only timelines change.
func (s *Service) MarkNotDuplicate(ctx context.Context, aID, bID uuid.UUID, reviewer string) error {
	if aID == uuid.Nil || bID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "both request ids are required")
	}
	if aID == bID {
		return pkgerrors.New(pkgerrors.CodeValidation, "request ids must differ")
	}

	now := time.Now().UTC()
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		a, b, err := loadPair(ctx, repo, aID, bID)
		if err != nil {
			return err
		}
		for _, side := range []struct{ self, other *models.AidRequest }{{a, b}, {b, a}} {
			timeline := side.self.Timeline.Append(types.TimelineEntry{
				Action:    ActionNotDuplicate,
				Note:      fmt.Sprintf("reviewed against %s: not a duplicate", side.other.ID),
				Actor:     reviewer,
				RelatedID: side.other.ID.String(),
				At:        now,
			})
			if err := repo.Update(ctx, side.self.ID, map[string]any{"timeline": timeline}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record review note")
			}
		}
		return nil
	})
}

// FlagCandidates runs a scan and stores each flagged request's best pair
// score so reviewers can sort the queue. It returns how many requests were flagged.
func (s *Service) FlagCandidates(ctx context.Context) (int, error) {
	pairs, err := s.detector.Find(ctx, Options{})
	if err != nil {
		return 0, err
	}
	best := map[uuid.UUID]float64{}
	for _, p := range pairs {
		for _, id := range []uuid.UUID{p.RequestA, p.RequestB} {
			if p.Score.Total > best[id] {
				best[id] = p.Score.Total
			}
		}
	}

	var errs error
	flagged := 0
	for id, score := range best {
		if err := s.repo.SetDuplicateScore(ctx, id, score); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flag %s: %w", id, err))
			continue
		}
		flagged++
	}
	return flagged, errs
}

func loadPair(ctx context.Context, repo Repository, aID, bID uuid.UUID) (*models.AidRequest, *models.AidRequest, error) {
	a, err := load(ctx, repo, aID)
	if err != nil {
		return nil, nil, err
	}
	b, err := load(ctx, repo, bID)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func load(ctx context.Context, repo Repository, id uuid.UUID) (*models.AidRequest, error) {
	row, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("request %s not found", id))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	return row, nil
}
