package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InventoryService owns the material ledger and the recipe table. It is
// constructed once at startup with an explicit DB handle; nothing in this
// package reaches for process-global state.
type InventoryService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewInventoryService(db *gorm.DB, logger *logrus.Logger) *InventoryService {
	return &InventoryService{db: db, logger: logger}
}

func (s *InventoryService) CreateMaterial(ctx context.Context, input *models.NewRawMaterial) (*models.RawMaterial, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	material := models.RawMaterial{
		Name:      strings.TrimSpace(input.Name),
		Quantity:  decimal.Zero,
		Unit:      input.Unit,
		UnitPrice: input.UnitPrice,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&material).Error; err != nil {
			return translateDuplicateName(err, material.Name)
		}
		// Opening quantity is posted as a regular restock row so the ledger
		// covers the material's entire life.
		if input.Quantity.IsPositive() {
			if _, err := applyQuantityChange(ctx, tx, &material, models.TransactionTypeRestock, input.Quantity, nil, "Opening stock"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "inventory", "CreateMaterial", "create", input, err)
		return nil, err
	}
	return &material, nil
}

func (s *InventoryService) UpdateMaterial(ctx context.Context, materialId int, input *models.UpdateRawMaterial) (*models.RawMaterial, error) {
	updates := map[string]interface{}{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, utils.ValidationErrorf("material name is required")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Unit != nil {
		updates["unit"] = *input.Unit
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, utils.ValidationErrorf("unit price cannot be negative")
		}
		updates["unit_price"] = *input.UnitPrice
	}
	if len(updates) == 0 {
		return nil, utils.ValidationErrorf("nothing to update")
	}

	res := s.db.WithContext(ctx).Model(&models.RawMaterial{}).Where("id = ?", materialId).Updates(updates)
	if res.Error != nil {
		return nil, translateDuplicateName(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return nil, utils.NotFoundErrorf("material %d not found", materialId)
	}
	return s.GetMaterial(ctx, materialId)
}

func (s *InventoryService) GetMaterial(ctx context.Context, materialId int) (*models.RawMaterial, error) {
	var material models.RawMaterial
	err := s.db.WithContext(ctx).First(&material, materialId).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.NotFoundErrorf("material %d not found", materialId)
	}
	if err != nil {
		return nil, err
	}
	return &material, nil
}

func (s *InventoryService) ListMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	var materials []models.RawMaterial
	if err := s.db.WithContext(ctx).Order("name").Find(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

// Restock increases a material's quantity and appends a Restock ledger row.
func (s *InventoryService) Restock(ctx context.Context, materialId int, amount decimal.Decimal, notes string) (*models.MaterialTransaction, error) {
	if !amount.IsPositive() {
		return nil, utils.ValidationErrorf("restock amount must be greater than zero")
	}

	var txn *models.MaterialTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		material, err := lockMaterialForUpdate(tx, materialId)
		if err != nil {
			return err
		}
		if notes == "" {
			notes = fmt.Sprintf("Restocked %s %s", amount, material.Unit)
		}
		txn, err = applyQuantityChange(ctx, tx, material, models.TransactionTypeRestock, amount, nil, notes)
		return err
	})
	if err != nil {
		config.LogError(s.logger, "inventory", "Restock", "post", materialId, err)
		return nil, err
	}
	return txn, nil
}

// Adjust posts an administrative correction. Delta may be negative but the
// resulting quantity must stay non-negative.
func (s *InventoryService) Adjust(ctx context.Context, materialId int, delta decimal.Decimal, notes string) (*models.MaterialTransaction, error) {
	if delta.IsZero() {
		return nil, utils.ValidationErrorf("adjustment delta cannot be zero")
	}

	var txn *models.MaterialTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		material, err := lockMaterialForUpdate(tx, materialId)
		if err != nil {
			return err
		}
		after := material.Quantity.Add(delta)
		if after.IsNegative() {
			return &utils.InsufficientStockError{Deficits: []utils.MaterialDeficit{{
				MaterialId:   material.ID,
				MaterialName: material.Name,
				Required:     delta.Abs(),
				Available:    material.Quantity,
				Shortage:     after.Abs(),
			}}}
		}
		txn, err = applyQuantityChange(ctx, tx, material, models.TransactionTypeAdjustment, delta, nil, notes)
		return err
	})
	if err != nil {
		config.LogError(s.logger, "inventory", "Adjust", "post", materialId, err)
		return nil, err
	}
	return txn, nil
}

// MaterialTransactions returns one material's ledger, newest first.
func (s *InventoryService) MaterialTransactions(ctx context.Context, materialId int, limit int) ([]models.MaterialTransaction, error) {
	if _, err := s.GetMaterial(ctx, materialId); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var txns []models.MaterialTransaction
	if err := s.db.WithContext(ctx).
		Where("material_id = ?", materialId).
		Order("id DESC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// LowStockMaterials returns materials under the threshold, for notification
// collaborators. Pass nil for the default threshold.
func (s *InventoryService) LowStockMaterials(ctx context.Context, threshold *decimal.Decimal) ([]models.RawMaterial, error) {
	limit := models.LowStockDefaultThreshold
	if threshold != nil {
		if threshold.IsNegative() {
			return nil, utils.ValidationErrorf("threshold cannot be negative")
		}
		limit = *threshold
	}
	var materials []models.RawMaterial
	if err := s.db.WithContext(ctx).
		Where("quantity < ?", limit).
		Order("quantity").
		Find(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

// ActiveRecipe returns the current consumption rate per material.
func (s *InventoryService) ActiveRecipe(ctx context.Context) ([]models.RecipeRequirement, error) {
	var rows []models.RecipeRequirement
	err := s.db.WithContext(ctx).
		Model(&models.RecipeItem{}).
		Select("recipe_items.material_id, raw_materials.name AS material_name, raw_materials.unit, recipe_items.qty_per_unit").
		Joins("JOIN raw_materials ON raw_materials.id = recipe_items.material_id").
		Where("recipe_items.is_active = ?", true).
		Order("raw_materials.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetRequirement upserts the active recipe entry for a material. The previous
// active row (if any) is deactivated, not mutated, so old requirements stay
// on record.
func (s *InventoryService) SetRequirement(ctx context.Context, input *models.NewRecipeRequirement) (*models.RecipeItem, error) {
	if !input.QtyPerUnit.IsPositive() {
		return nil, utils.ValidationErrorf("quantity per unit must be greater than zero")
	}

	var item models.RecipeItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RawMaterial{}).Where("id = ?", input.MaterialId).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return utils.NotFoundErrorf("material %d not found", input.MaterialId)
		}

		if err := tx.Model(&models.RecipeItem{}).
			Where("material_id = ? AND is_active = ?", input.MaterialId, true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		item = models.RecipeItem{
			MaterialId: input.MaterialId,
			QtyPerUnit: input.QtyPerUnit,
			IsActive:   true,
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		config.LogError(s.logger, "inventory", "SetRequirement", "upsert", input, err)
		return nil, err
	}
	return &item, nil
}

// translateDuplicateName maps the MySQL duplicate-key error on the material
// name unique index to a validation error the caller can act on.
func translateDuplicateName(err error, name string) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		if name != "" {
			return utils.ValidationErrorf("material %q already exists", name)
		}
		return utils.ValidationErrorf("material name already exists")
	}
	return err
}
