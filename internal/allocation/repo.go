package allocation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// Repository performs the guarded writes behind an allocation. Every method
// is expected to run inside the allocator's transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns an allocation repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindRequest loads an aid request by id.
func (r *Repository) FindRequest(ctx context.Context, id uuid.UUID) (*models.AidRequest, error) {
	var req models.AidRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "aid request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load aid request")
	}
	return &req, nil
}

// FindOffer loads an offer by id.
func (r *Repository) FindOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).First(&offer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offer")
	}
	return &offer, nil
}

// FindAssignment loads an assignment by id.
func (r *Repository) FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load assignment")
	}
	return &a, nil
}

// DecrementOffer takes qty units from an active offer. It reports false and
// changes nothing when the offer is not active or holds fewer than qty units.
func (r *Repository) DecrementOffer(ctx context.Context, offerID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Offer{}).
		Where("id = ? AND status = ? AND available_quantity >= ?", offerID, enums.OfferStatusActive, qty).
		Updates(map[string]any{
			"available_quantity": gorm.Expr("available_quantity - ?", qty),
			"allocated_quantity": gorm.Expr("allocated_quantity + ?", qty),
			"status":             gorm.Expr("CASE WHEN available_quantity = ? THEN ? ELSE status END", qty, enums.OfferStatusExhausted),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrement offer")
	}
	return res.RowsAffected == 1, nil
}

// IncrementOffer returns qty units to an offer and reopens it when it was
// exhausted. It reports false when the release would exceed the total.
func (r *Repository) IncrementOffer(ctx context.Context, offerID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Offer{}).
		Where("id = ? AND available_quantity + ? <= total_quantity", offerID, qty).
		Updates(map[string]any{
			"available_quantity": gorm.Expr("available_quantity + ?", qty),
			"allocated_quantity": gorm.Expr("CASE WHEN allocated_quantity >= ? THEN allocated_quantity - ? ELSE 0 END", qty, qty),
			"status":             gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", enums.OfferStatusExhausted, enums.OfferStatusActive),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "increment offer")
	}
	return res.RowsAffected == 1, nil
}

// ExpireOffers marks live offers whose valid_until has passed as expired.
func (r *Repository) ExpireOffers(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Offer{}).
		Where("status IN ? AND valid_until IS NOT NULL AND valid_until <= ?",
			[]enums.OfferStatus{enums.OfferStatusActive, enums.OfferStatusExhausted}, now).
		Update("status", enums.OfferStatusExpired)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "expire offers")
	}
	return res.RowsAffected, nil
}

// CreateAssignment inserts a new assignment row.
func (r *Repository) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create assignment")
	}
	return nil
}

// UpdateAssignmentStatus moves an assignment to status.
func (r *Repository) UpdateAssignmentStatus(ctx context.Context, id uuid.UUID, status enums.AssignmentStatus) error {
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update assignment status")
	}
	return nil
}

// AttachAssignment appends the assignment to the request and moves a new
// request to assigned. It returns the status before and after.
func (r *Repository) AttachAssignment(ctx context.Context, requestID, assignmentID uuid.UUID, entry types.TimelineEntry) (enums.RequestStatus, enums.RequestStatus, error) {
	req, err := r.FindRequest(ctx, requestID)
	if err != nil {
		return "", "", err
	}
	ids := append(req.AssignmentIDs, assignmentID)
	updates := map[string]any{
		"assignment_ids": ids,
		"timeline":       req.Timeline.Append(entry),
	}
	to := req.Status
	if req.Status == enums.RequestStatusNew {
		to = enums.RequestStatusAssigned
		updates["status"] = to
	}
	err = r.db.WithContext(ctx).Model(&models.AidRequest{}).
		Where("id = ?", requestID).
		Updates(updates).Error
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach assignment")
	}
	return req.Status, to, nil
}

// AppendTimeline adds one audit entry to a request.
func (r *Repository) AppendTimeline(ctx context.Context, requestID uuid.UUID, entry types.TimelineEntry) error {
	req, err := r.FindRequest(ctx, requestID)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Model(&models.AidRequest{}).
		Where("id = ?", requestID).
		Update("timeline", req.Timeline.Append(entry)).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append timeline")
	}
	return nil
}

// AdjustOrganizationLoad changes active_assignments by delta, never below zero.
func (r *Repository) AdjustOrganizationLoad(ctx context.Context, orgID uuid.UUID, delta int) error {
	expr := gorm.Expr("active_assignments + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN active_assignments >= ? THEN active_assignments - ? ELSE 0 END", -delta, -delta)
	}
	res := r.db.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ?", orgID).
		Update("active_assignments", expr)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "adjust organization load")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
	}
	return nil
}

// AssignmentsForRequest lists a request's assignments, oldest first.
func (r *Repository) AssignmentsForRequest(ctx context.Context, requestID uuid.UUID) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list assignments")
	}
	return rows, nil
}
