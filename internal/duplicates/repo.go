package duplicates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/geo"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// Repository reads and resolves requests for duplicate review.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Unresolved(ctx context.Context, since time.Time, limit int) ([]models.AidRequest, error)
	Near(ctx context.Context, center types.Point, radiusMeters float64, since time.Time) ([]models.AidRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.AidRequest, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	SetDuplicateScore(ctx context.Context, id uuid.UUID, score float64) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a duplicate-review repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) unresolved(ctx context.Context, since time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.AidRequest{}).
		Where("is_duplicate = ? AND merged_into IS NULL", false).
		Where("status IN ?", enums.ActiveRequestStatuses).
		Where("created_at >= ?", since)
}

func (r *repositoryImpl) Unresolved(ctx context.Context, since time.Time, limit int) ([]models.AidRequest, error) {
	var rows []models.AidRequest
	err := r.unresolved(ctx, since).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) Near(ctx context.Context, center types.Point, radiusMeters float64, since time.Time) ([]models.AidRequest, error) {
	var rows []models.AidRequest
	box := geo.BoundingBox(center, radiusMeters/1000)
	if err := r.unresolved(ctx, since).Scopes(box.Scope).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if geo.DistanceMeters(center, row.Location) <= radiusMeters {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.AidRequest, error) {
	var row models.AidRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.AidRequest{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repositoryImpl) SetDuplicateScore(ctx context.Context, id uuid.UUID, score float64) error {
	return r.db.WithContext(ctx).
		Model(&models.AidRequest{}).
		Where("id = ? AND is_duplicate = ?", id, false).
		Update("duplicate_score", score).Error
}
