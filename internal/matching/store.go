package matching

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

// Store is the read surface the scorer needs. Reads are unlocked snapshots.
type Store interface {
	OffersNear(ctx context.Context, center types.Point, radiusKm float64, category enums.NeedCategory, minQuantity int, at time.Time) ([]models.Offer, error)
	OrganizationsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Organization, error)
	OrganizationsNear(ctx context.Context, center types.Point, radiusKm float64) ([]models.Organization, error)
	OffersByOrganizations(ctx context.Context, orgIDs []uuid.UUID) ([]models.Offer, error)
	ActiveBlockedRoutes(ctx context.Context, at time.Time) ([]models.BlockedRoute, error)
}

// Repository implements Store over gorm. Near queries prefilter with a
// bounding box and confirm with haversine distance.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a matching repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) OffersNear(ctx context.Context, center types.Point, radiusKm float64, category enums.NeedCategory, minQuantity int, at time.Time) ([]models.Offer, error) {
	var rows []models.Offer
	err := r.db.WithContext(ctx).
		Scopes(geo.BoundingBox(center, radiusKm).Scope).
		Where("status = ? AND category = ? AND available_quantity >= ?", enums.OfferStatusActive, category, minQuantity).
		Where("valid_until IS NULL OR valid_until > ?", at).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if geo.DistanceKm(center, row.Location) <= radiusKm {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *Repository) OrganizationsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Organization, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Organization
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *Repository) OrganizationsNear(ctx context.Context, center types.Point, radiusKm float64) ([]models.Organization, error) {
	var rows []models.Organization
	err := r.db.WithContext(ctx).
		Scopes(geo.BoundingBox(center, radiusKm).Scope).
		Where("is_active = ? AND is_verified = ?", true, true).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if geo.DistanceKm(center, row.Location) <= radiusKm {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *Repository) OffersByOrganizations(ctx context.Context, orgIDs []uuid.UUID) ([]models.Offer, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	var rows []models.Offer
	err := r.db.WithContext(ctx).
		Where("organization_id IN ?", orgIDs).
		Where("status IN ?", []enums.OfferStatus{enums.OfferStatusActive, enums.OfferStatusExhausted}).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ActiveBlockedRoutes(ctx context.Context, at time.Time) ([]models.BlockedRoute, error) {
	var rows []models.BlockedRoute
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND active_from <= ?", true, at).
		Where("active_until IS NULL OR active_until > ?", at).
		Find(&rows).Error
	return rows, err
}
