package requests

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/db"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
)

// Repository persists aid requests.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a request repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a request. A reused id yields a conflict.
func (r *Repository) Create(ctx context.Context, req *models.AidRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "aid request already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create aid request")
	}
	return nil
}

// FindByID loads a request by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AidRequest, error) {
	var req models.AidRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "aid request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load aid request")
	}
	return &req, nil
}

// UpdateStatus moves a request to status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.RequestStatus) error {
	res := r.db.WithContext(ctx).Model(&models.AidRequest{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "update aid request status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "aid request not found")
	}
	return nil
}

// SaveFollowUp persists the message log and the reclassified urgency.
func (r *Repository) SaveFollowUp(ctx context.Context, req *models.AidRequest) error {
	err := r.db.WithContext(ctx).Model(&models.AidRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]any{
			"messages":               req.Messages,
			"repeated_message_count": req.RepeatedMessageCount,
			"priority":               req.Priority,
			"sos_detected":           req.SOSDetected,
			"sos_indicators":         req.SOSIndicators,
			"timeline":               req.Timeline,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save follow-up")
	}
	return nil
}

// ListUnassigned returns requests in statuses that hold no assignment,
// oldest first.
func (r *Repository) ListUnassigned(ctx context.Context, statuses []enums.RequestStatus, limit int) ([]models.AidRequest, error) {
	var rows []models.AidRequest
	q := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Where("is_duplicate = ?", false).
		Where("assignment_ids IS NULL OR assignment_ids = '{}'").
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unassigned requests")
	}
	return rows, nil
}
