package models

import (
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// RawMaterial is the current inventory position of one raw good.
// Quantity is never mutated directly: every change goes through a posting
// transaction that also appends a MaterialTransaction row, so the ledger and
// the stored quantity cannot drift apart.
type RawMaterial struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null;unique;index" json:"name" binding:"required"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0;check:chk_material_qty,quantity >= 0" json:"quantity"`
	Unit      string          `gorm:"size:20;not null" json:"unit" binding:"required"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0;check:chk_material_price,unit_price >= 0" json:"unit_price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRawMaterial struct {
	Name      string          `json:"name" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// UpdateRawMaterial carries the mutable descriptive fields. Quantity is
// deliberately absent: stock moves only via restock/adjust/production postings.
type UpdateRawMaterial struct {
	Name      *string          `json:"name"`
	Unit      *string          `json:"unit"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// LowStockDefaultThreshold is the quantity under which a material counts as
// low for the notification collaborators.
var LowStockDefaultThreshold = decimal.NewFromInt(20)

var stockLevelMediumThreshold = decimal.NewFromInt(50)

// StockLevel bands the current quantity for inventory screens:
// under 20 is low, under 50 is medium, everything else good.
func (m RawMaterial) StockLevel() StockLevel {
	if m.Quantity.LessThan(LowStockDefaultThreshold) {
		return StockLevelLow
	}
	if m.Quantity.LessThan(stockLevelMediumThreshold) {
		return StockLevelMedium
	}
	return StockLevelGood
}

func (input NewRawMaterial) Validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.ValidationErrorf("material name is required")
	}
	if input.Quantity.IsNegative() {
		return utils.ValidationErrorf("opening quantity cannot be negative")
	}
	if input.UnitPrice.IsNegative() {
		return utils.ValidationErrorf("unit price cannot be negative")
	}
	return nil
}
