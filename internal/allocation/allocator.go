// Package allocation turns ranked candidates into assignments. Offer quantity
// and organization load are only mutated here.
package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/internal/broadcast"
	"github.com/angelmondragon/relief-dispatch/internal/matching"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// Timeline actions written by the allocator.
const (
	ActionAssigned            = "assigned"
	ActionAssignmentCancelled = "assignment_cancelled"
	ActionNoCandidates        = "no_candidates"

	timelineActor = "dispatch"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type candidateScorer interface {
	ScoreOffers(ctx context.Context, req models.AidRequest, category enums.NeedCategory, quantity int) []matching.OfferCandidate
	ScoreOrganizations(ctx context.Context, req models.AidRequest, categories []enums.NeedCategory) []matching.OrganizationCandidate
}

// MatchResult summarises one AutoMatch run.
type MatchResult struct {
	Success     bool                `json:"success"`
	Assignments []models.Assignment `json:"assignments"`
	Message     string              `json:"message"`
}

// Params wires the allocator dependencies.
type Params struct {
	DB         txRunner
	Repository *Repository
	Scorer     candidateScorer
	Notifier   broadcast.Notifier
	Logger     *logger.Logger
}

// Allocator writes assignments transactionally.
type Allocator struct {
	tx       txRunner
	repo     *Repository
	scorer   candidateScorer
	notifier broadcast.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewAllocator validates dependencies. A nil notifier drops events.
func NewAllocator(p Params) (*Allocator, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Repository == nil {
		return nil, fmt.Errorf("allocation repository required")
	}
	if p.Scorer == nil {
		return nil, fmt.Errorf("candidate scorer required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = broadcast.NopNotifier{}
	}
	return &Allocator{
		tx:       p.DB,
		repo:     p.Repository,
		scorer:   p.Scorer,
		notifier: notifier,
		logg:     p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

type statusChange struct {
	from, to enums.RequestStatus
}

// AllocateFromOffer reserves qty units of the candidate offer for req. It
// returns false with no error, and no state change, when the offer can no
// longer cover qty.
func (a *Allocator) AllocateFromOffer(ctx context.Context, req models.AidRequest, cand matching.OfferCandidate, qty int) (*models.Assignment, bool, error) {
	if qty < 1 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ctx = a.logg.WithOfferID(a.logg.WithAidRequestID(ctx, req.ID.String()), cand.Offer.ID.String())

	offerID := cand.Offer.ID
	assignment := &models.Assignment{
		RequestID:      req.ID,
		OfferID:        &offerID,
		OrganizationID: cand.Offer.OrganizationID,
		Category:       cand.Offer.Category,
		Quantity:       qty,
		Status:         enums.AssignmentStatusPending,
		Priority:       req.Priority,
		Method:         enums.AssignmentMethodOfferMatch,
		Score:          cand.Score,
	}

	var (
		allocated bool
		change    statusChange
	)
	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.repo.WithTx(tx)
		ok, err := repo.DecrementOffer(ctx, offerID, qty)
		if err != nil || !ok {
			return err
		}
		if err := a.persistAssignment(ctx, repo, assignment, &change); err != nil {
			return err
		}
		allocated = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !allocated {
		a.logg.Info(a.logg.WithField(ctx, "quantity", qty), "offer could not cover quantity")
		return nil, false, nil
	}

	a.announce(ctx, *assignment, change)
	return assignment, true, nil
}

// AllocateFromOrganization assigns req to an organization without holding
// offer quantity. An empty category is recorded as general.
func (a *Allocator) AllocateFromOrganization(ctx context.Context, req models.AidRequest, cand matching.OrganizationCandidate, category enums.NeedCategory) (*models.Assignment, error) {
	if category == "" {
		category = enums.NeedCategoryGeneral
	}
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown need category")
	}
	ctx = a.logg.WithOrganizationID(a.logg.WithAidRequestID(ctx, req.ID.String()), cand.Organization.ID.String())

	assignment := &models.Assignment{
		RequestID:      req.ID,
		OrganizationID: cand.Organization.ID,
		Category:       category,
		Quantity:       req.Needs.QuantityFor(category),
		Status:         enums.AssignmentStatusPending,
		Priority:       req.Priority,
		Method:         enums.AssignmentMethodAuto,
		Score:          cand.Score,
	}

	var change statusChange
	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return a.persistAssignment(ctx, a.repo.WithTx(tx), assignment, &change)
	})
	if err != nil {
		return nil, err
	}

	a.announce(ctx, *assignment, change)
	return assignment, nil
}

func (a *Allocator) persistAssignment(ctx context.Context, repo *Repository, assignment *models.Assignment, change *statusChange) error {
	if err := repo.CreateAssignment(ctx, assignment); err != nil {
		return err
	}
	entry := types.TimelineEntry{
		Action:    ActionAssigned,
		Note:      fmt.Sprintf("%s x%d via %s", assignment.Category, assignment.Quantity, assignment.Method),
		Actor:     timelineActor,
		RelatedID: assignment.ID.String(),
		At:        a.now(),
	}
	from, to, err := repo.AttachAssignment(ctx, assignment.RequestID, assignment.ID, entry)
	if err != nil {
		return err
	}
	change.from, change.to = from, to
	return repo.AdjustOrganizationLoad(ctx, assignment.OrganizationID, 1)
}

func (a *Allocator) announce(ctx context.Context, assignment models.Assignment, change statusChange) {
	a.logg.Info(a.logg.WithFields(ctx, map[string]any{
		"assignment_id": assignment.ID.String(),
		"method":        assignment.Method.String(),
		"category":      assignment.Category.String(),
		"quantity":      assignment.Quantity,
	}), "assignment created")
	a.notifier.AssignmentCreated(ctx, assignment)
	if change.from != change.to {
		a.notifier.RequestStatusChanged(ctx, assignment.RequestID, change.from, change.to)
	}
}

// Release returns qty units to an offer. Releases that would push the
// available quantity above the total are rejected.
func (a *Allocator) Release(ctx context.Context, offerID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return release(ctx, a.repo.WithTx(tx), offerID, qty)
	})
}

func release(ctx context.Context, repo *Repository, offerID uuid.UUID, qty int) error {
	ok, err := repo.IncrementOffer(ctx, offerID, qty)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := repo.FindOffer(ctx, offerID); err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "release exceeds offer total")
}

// CancelAssignment ends a live assignment as cancelled or declined. Held
// offer quantity goes back to the offer and the organization load drops.
func (a *Allocator) CancelAssignment(ctx context.Context, assignmentID uuid.UUID, status enums.AssignmentStatus) (*models.Assignment, error) {
	if status != enums.AssignmentStatusCancelled && status != enums.AssignmentStatusDeclined {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be cancelled or declined")
	}

	var assignment *models.Assignment
	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.repo.WithTx(tx)
		found, err := repo.FindAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if found.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment already closed")
		}
		if err := repo.UpdateAssignmentStatus(ctx, found.ID, status); err != nil {
			return err
		}
		if found.OfferID != nil {
			if err := release(ctx, repo, *found.OfferID, found.Quantity); err != nil {
				return err
			}
		}
		if err := repo.AdjustOrganizationLoad(ctx, found.OrganizationID, -1); err != nil {
			return err
		}
		entry := types.TimelineEntry{
			Action:    ActionAssignmentCancelled,
			Note:      status.String(),
			Actor:     timelineActor,
			RelatedID: found.ID.String(),
			At:        a.now(),
		}
		if err := repo.AppendTimeline(ctx, found.RequestID, entry); err != nil {
			return err
		}
		found.Status = status
		assignment = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = a.logg.WithAidRequestID(ctx, assignment.RequestID.String())
	a.logg.Info(a.logg.WithFields(ctx, map[string]any{
		"assignment_id": assignment.ID.String(),
		"status":        status.String(),
	}), "assignment closed")
	a.notifier.AssignmentUpdated(ctx, *assignment)
	return assignment, nil
}

// AutoMatch allocates a request. Without required categories it makes one
// generic organization assignment. Otherwise each required category tries
// ranked offers first and falls back to the best organization.
func (a *Allocator) AutoMatch(ctx context.Context, requestID uuid.UUID) (*MatchResult, error) {
	req, err := a.repo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.IsDispatchable() || req.IsDuplicate || req.MergedInto != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request is not awaiting dispatch").
			WithDetails(map[string]any{
				"status":       req.Status,
				"is_duplicate": req.IsDuplicate,
			})
	}
	ctx = a.logg.WithAidRequestID(ctx, req.ID.String())

	categories := req.Needs.RequiredCategories()
	if len(categories) == 0 {
		return a.matchGeneric(ctx, *req)
	}

	result := &MatchResult{}
	var errs error
	for _, category := range categories {
		assignment, err := a.matchCategory(ctx, *req, category)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		if assignment != nil {
			result.Assignments = append(result.Assignments, *assignment)
		}
	}

	result.Success = len(result.Assignments) > 0
	switch {
	case result.Success:
		result.Message = fmt.Sprintf("matched %d of %d categories", len(result.Assignments), len(categories))
		if errs != nil {
			a.logg.Error(ctx, "partial match", errs)
		}
		return result, nil
	case errs != nil:
		result.Message = "allocation failed"
		return result, errs
	default:
		result.Message = "no candidates available"
		a.noteNoCandidates(ctx, req.ID)
		return result, nil
	}
}

func (a *Allocator) matchGeneric(ctx context.Context, req models.AidRequest) (*MatchResult, error) {
	cands := a.scorer.ScoreOrganizations(ctx, req, nil)
	if len(cands) == 0 {
		a.noteNoCandidates(ctx, req.ID)
		return &MatchResult{Message: "no candidates available"}, nil
	}
	assignment, err := a.AllocateFromOrganization(ctx, req, cands[0], enums.NeedCategoryGeneral)
	if err != nil {
		return &MatchResult{Message: "allocation failed"}, err
	}
	return &MatchResult{
		Success:     true,
		Assignments: []models.Assignment{*assignment},
		Message:     "matched generic request",
	}, nil
}

func (a *Allocator) matchCategory(ctx context.Context, req models.AidRequest, category enums.NeedCategory) (*models.Assignment, error) {
	ctx = a.logg.WithField(ctx, "category", category.String())
	qty := req.Needs.QuantityFor(category)

	var errs error
	for _, cand := range a.scorer.ScoreOffers(ctx, req, category, qty) {
		assignment, ok, err := a.AllocateFromOffer(ctx, req, cand, qty)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			return assignment, nil
		}
	}

	orgs := a.scorer.ScoreOrganizations(ctx, req, []enums.NeedCategory{category})
	if len(orgs) == 0 {
		a.logg.Info(ctx, "no offer or organization for category")
		return nil, errs
	}
	assignment, err := a.AllocateFromOrganization(ctx, req, orgs[0], category)
	if err != nil {
		return nil, multierr.Append(errs, err)
	}
	return assignment, nil
}

func (a *Allocator) noteNoCandidates(ctx context.Context, requestID uuid.UUID) {
	entry := types.TimelineEntry{Action: ActionNoCandidates, Actor: timelineActor, At: a.now()}
	if err := a.repo.AppendTimeline(ctx, requestID, entry); err != nil {
		a.logg.Warn(ctx, "could not record empty match on timeline")
	}
}

// Assignments lists the assignments recorded for a request.
func (a *Allocator) Assignments(ctx context.Context, requestID uuid.UUID) ([]models.Assignment, error) {
	if _, err := a.repo.FindRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return a.repo.AssignmentsForRequest(ctx, requestID)
}
