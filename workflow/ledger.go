package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockMaterialForUpdate loads one material row under a FOR UPDATE lock.
// Callers must be inside a transaction; the lock closes the check/act race
// between reading a quantity and deducting from it.
func lockMaterialForUpdate(tx *gorm.DB, materialId int) (*models.RawMaterial, error) {
	var material models.RawMaterial
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", materialId).
		First(&material).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.NotFoundErrorf("material %d not found", materialId)
	}
	if err != nil {
		return nil, err
	}
	return &material, nil
}

// applyQuantityChange moves a locked material's quantity and appends the
// matching ledger row in the same transaction. The returned transaction row
// carries the before/after snapshot taken under the row lock.
func applyQuantityChange(
	ctx context.Context,
	tx *gorm.DB,
	material *models.RawMaterial,
	txnType models.TransactionType,
	change decimal.Decimal,
	productionRunId *int,
	notes string,
) (*models.MaterialTransaction, error) {

	before := material.Quantity
	after := before.Add(change)

	if err := tx.Model(&models.RawMaterial{}).
		Where("id = ?", material.ID).
		Update("quantity", after).Error; err != nil {
		return nil, err
	}
	material.Quantity = after

	userId, _ := utils.GetUserIdFromContext(ctx)
	txn := models.MaterialTransaction{
		MaterialId:      material.ID,
		TransactionType: txnType,
		QtyChange:       change,
		QtyBefore:       before,
		QtyAfter:        after,
		UnitPrice:       material.UnitPrice,
		ProductionRunId: productionRunId,
		Notes:           notes,
		CorrelationId:   correlationIdFromContextOrNew(ctx),
		CreatedBy:       userId,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
