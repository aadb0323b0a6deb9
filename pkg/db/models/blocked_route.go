package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// BlockedRoute marks an obstructed road. It only ever lowers a score.
type BlockedRoute struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Path        types.LineString    `gorm:"column:path;type:jsonb;not null"`
	Severity    enums.RouteSeverity `gorm:"column:severity;type:route_severity;not null"`
	IsActive    bool                `gorm:"column:is_active;not null;default:true"`
	ActiveFrom  time.Time           `gorm:"column:active_from;not null"`
	ActiveUntil *time.Time          `gorm:"column:active_until"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name.
func (BlockedRoute) TableName() string { return "blocked_routes" }

// BeforeCreate assigns an id client-side so inserts do not depend on DB defaults.
func (b *BlockedRoute) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// ActiveAt reports whether the closure applies at t.
func (b BlockedRoute) ActiveAt(t time.Time) bool {
	if !b.IsActive || t.Before(b.ActiveFrom) {
		return false
	}
	return b.ActiveUntil == nil || t.Before(*b.ActiveUntil)
}
