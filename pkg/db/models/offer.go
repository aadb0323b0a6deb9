package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// Offer is a quantity-bounded resource listing published by an organization.
// AvailableQuantity stays within [0, TotalQuantity]; only the allocator mutates it.
type Offer struct {
	ID                uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID    uuid.UUID          `gorm:"column:organization_id;type:uuid;not null"`
	Category          enums.NeedCategory `gorm:"column:category;type:need_category;not null"`
	TotalQuantity     int                `gorm:"column:total_quantity;not null"`
	AvailableQuantity int                `gorm:"column:available_quantity;not null"`
	AllocatedQuantity int                `gorm:"column:allocated_quantity;not null;default:0"`
	Location          types.Point        `gorm:"embedded"`
	CoverageRadiusKm  float64            `gorm:"column:coverage_radius_km;not null;default:0"`
	Status            enums.OfferStatus  `gorm:"column:status;type:offer_status;not null;default:'active'"`
	ValidUntil        *time.Time         `gorm:"column:valid_until"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Offer) TableName() string { return "offers" }

// BeforeCreate assigns an id client-side so inserts do not depend on DB defaults.
func (o *Offer) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
