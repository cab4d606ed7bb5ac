package models

import (
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

// ProductionRun is one logged manufacturing event. Runs are never physically
// deleted: undoing a run flips is_deleted and appends reversal transactions,
// preserving the audit trail.
type ProductionRun struct {
	ID            int       `gorm:"primary_key" json:"id"`
	RunDate       time.Time `gorm:"not null;index" json:"run_date"`
	UnitsProduced int       `gorm:"not null;check:chk_run_units,units_produced > 0" json:"units_produced"`
	Notes         string    `gorm:"type:text" json:"notes"`
	IsDeleted     bool      `gorm:"not null;default:false;index" json:"is_deleted"`
	CreatedBy     int       `gorm:"index" json:"created_by"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewProductionRun struct {
	RunDate       *time.Time `json:"run_date"`
	UnitsProduced int        `json:"units_produced" binding:"required"`
	Notes         string     `json:"notes"`
}

func (input NewProductionRun) Validate() error {
	if input.UnitsProduced <= 0 {
		return utils.ValidationErrorf("units produced must be greater than zero")
	}
	return nil
}
