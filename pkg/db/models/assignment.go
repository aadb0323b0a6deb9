package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/enums"
)

// Assignment binds a request to an offer and/or organization. One row is
// written per successful allocation attempt.
type Assignment struct {
	ID             uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID      uuid.UUID              `gorm:"column:request_id;type:uuid;not null"`
	OfferID        *uuid.UUID             `gorm:"column:offer_id;type:uuid"`
	OrganizationID uuid.UUID              `gorm:"column:organization_id;type:uuid;not null"`
	Category       enums.NeedCategory     `gorm:"column:category;type:need_category;not null"`
	Quantity       int                    `gorm:"column:quantity;not null"`
	Status         enums.AssignmentStatus `gorm:"column:status;type:assignment_status;not null;default:'pending'"`
	Priority       enums.Priority         `gorm:"column:priority;type:request_priority;not null"`
	Method         enums.AssignmentMethod `gorm:"column:method;type:assignment_method;not null"`
	Score          float64                `gorm:"column:score;not null;default:0"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Assignment) TableName() string { return "assignments" }

// BeforeCreate assigns an id client-side so inserts do not depend on DB defaults.
func (a *Assignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
