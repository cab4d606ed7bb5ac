package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipeItem configures how much of one material a single unit of finished
// output consumes. Rows are versioned by the is_active flag: superseding a
// requirement deactivates the old row and inserts a new one, so at most one
// row per material is active and the history stays queryable. Undo never
// reads this table; it re-derives amounts from the transaction ledger.
type RecipeItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	MaterialId int             `gorm:"index;not null" json:"material_id" binding:"required"`
	Material   RawMaterial     `gorm:"foreignKey:MaterialId" json:"material"`
	QtyPerUnit decimal.Decimal `gorm:"type:decimal(20,4);not null;check:chk_recipe_qty,qty_per_unit > 0" json:"qty_per_unit"`
	IsActive   bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRecipeRequirement struct {
	MaterialId int             `json:"material_id" binding:"required"`
	QtyPerUnit decimal.Decimal `json:"qty_per_unit" binding:"required"`
}

// RecipeRequirement is one line of the active recipe as returned to callers.
type RecipeRequirement struct {
	MaterialId   int             `json:"material_id"`
	MaterialName string          `json:"material_name"`
	Unit         string          `json:"unit"`
	QtyPerUnit   decimal.Decimal `json:"qty_per_unit"`
}
