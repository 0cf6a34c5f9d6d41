package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Import job statuses
const (
	ImportStatusPending    = "pending"
	ImportStatusProcessing = "processing"
	ImportStatusPaused     = "paused"
	ImportStatusCompleted  = "completed"
	ImportStatusFailed     = "failed"
	ImportStatusCancelled  = "cancelled"
)

// ImportJob is the durable record of one bulk product import run.
// success_log and error_log hold JSON arrays of row outcomes.
type ImportJob struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FileName          string         `gorm:"column:filename;not null" json:"filename"`
	TotalProducts     int            `gorm:"not null;default:0" json:"total_products"`
	ProcessedProducts int            `gorm:"not null;default:0" json:"processed_products"`
	SuccessCount      int            `gorm:"not null;default:0" json:"success_count"`
	ErrorCount        int            `gorm:"not null;default:0" json:"error_count"`
	Status            string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	MappingConfig     datatypes.JSON `gorm:"type:jsonb" json:"mapping_config"`
	SuccessLog        datatypes.JSON `gorm:"type:jsonb" json:"success_log"`
	ErrorLog          datatypes.JSON `gorm:"type:jsonb" json:"error_log"`
	StartedAt         *time.Time     `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (j *ImportJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = ImportStatusPending
	}
	return nil
}

// IsTerminal reports whether the job can no longer change.
func (j *ImportJob) IsTerminal() bool {
	return IsTerminalImportStatus(j.Status)
}

func IsTerminalImportStatus(status string) bool {
	switch status {
	case ImportStatusCompleted, ImportStatusFailed, ImportStatusCancelled:
		return true
	}
	return false
}

// ActiveImportStatuses are the statuses in which the orchestrator may still write progress.
var ActiveImportStatuses = []string{ImportStatusProcessing, ImportStatusPaused}
