package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaterialTransaction is the append-only inventory ledger. One row per signed
// quantity change, with before/after snapshots so the ledger is auditable
// without replaying it.
//
// IMPORTANT:
// - Rows are immutable once written; undo appends Reversal rows instead of
//   touching the originals.
// - UnitPrice is the material's price at commit time. Cost reports must read
//   it from here, never from the current raw_materials.unit_price, so that a
//   later price edit cannot change a historical report.
// Invariant: qty_after = qty_before + qty_change, and qty_after equals the
// material's stored quantity at the moment the transaction committed.
type MaterialTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	MaterialId      int             `gorm:"index:idx_mat_txn_material_date,priority:1;not null" json:"material_id"`
	Material        RawMaterial     `gorm:"foreignKey:MaterialId" json:"material"`
	TransactionType TransactionType `gorm:"type:enum('Restock','Production','Reversal','Adjustment');not null;index" json:"transaction_type"`
	QtyChange       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_change"`
	QtyBefore       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_before"`
	QtyAfter        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_after"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	ProductionRunId *int            `gorm:"index" json:"production_run_id"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CorrelationId   string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedBy       int             `gorm:"index" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index:idx_mat_txn_material_date,priority:2" json:"created_at"`
}

// Consumed returns the positive magnitude of a deduction row.
func (t MaterialTransaction) Consumed() decimal.Decimal {
	return t.QtyChange.Abs()
}
