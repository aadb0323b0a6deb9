package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/relief-dispatch/pkg/db/types"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// AidRequest is a victim-submitted request for help.
type AidRequest struct {
	ID                   uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Description          string              `gorm:"column:description;not null;default:''"`
	Language             string              `gorm:"column:language;not null;default:'en'"`
	Location             types.Point         `gorm:"embedded"`
	Needs                types.Needs         `gorm:"column:needs;type:jsonb"`
	Beneficiaries        types.Beneficiaries `gorm:"column:beneficiaries;type:jsonb"`
	Medical              types.MedicalInfo   `gorm:"column:medical;type:jsonb"`
	Device               types.DeviceSignals `gorm:"column:device;type:jsonb"`
	Messages             types.Messages      `gorm:"column:messages;type:jsonb"`
	RepeatedMessageCount int                 `gorm:"column:repeated_message_count;not null;default:0"`
	SelfDeclaredUrgency  enums.Priority      `gorm:"column:self_declared_urgency;type:request_priority;not null;default:'medium'"`
	Priority             enums.Priority      `gorm:"column:priority;type:request_priority;not null;default:'medium'"`
	SOSDetected          bool                `gorm:"column:sos_detected;not null;default:false"`
	SOSIndicators        pq.StringArray      `gorm:"column:sos_indicators;type:text[]"`
	Status               enums.RequestStatus `gorm:"column:status;type:request_status;not null;default:'new'"`
	IsDuplicate          bool                `gorm:"column:is_duplicate;not null;default:false"`
	MergedInto           *uuid.UUID          `gorm:"column:merged_into;type:uuid"`
	DuplicateScore       *float64            `gorm:"column:duplicate_score"`
	AssignmentIDs        dbtypes.UUIDArray   `gorm:"column:assignment_ids;type:uuid[]"`
	Timeline             types.Timeline      `gorm:"column:timeline;type:jsonb"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (AidRequest) TableName() string { return "aid_requests" }

// BeforeCreate assigns an id client-side so inserts do not depend on DB defaults.
func (r *AidRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
