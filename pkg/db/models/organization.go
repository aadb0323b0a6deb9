package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// Organization is an NGO that fulfils requests. Its capabilities are derived
// from its active offers and are deliberately not stored here.
type Organization struct {
	ID                     uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name                   string      `gorm:"column:name;not null"`
	Location               types.Point `gorm:"embedded"`
	IsActive               bool        `gorm:"column:is_active;not null;default:true"`
	IsVerified             bool        `gorm:"column:is_verified;not null;default:false"`
	ActiveAssignments      int         `gorm:"column:active_assignments;not null;default:0"`
	MaxActiveAssignments   int         `gorm:"column:max_active_assignments;not null;default:10"`
	Rating                 float64     `gorm:"column:rating;not null;default:0"`
	AverageResponseMinutes float64     `gorm:"column:average_response_minutes;not null;default:0"`
	IsOnline               bool        `gorm:"column:is_online;not null;default:false"`
	Available24x7          bool        `gorm:"column:available_24x7;not null;default:false"`
	CreatedAt              time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Organization) TableName() string { return "organizations" }

// BeforeCreate assigns an id client-side so inserts do not depend on DB defaults.
func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
