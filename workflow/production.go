package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductionService posts and undoes production runs. Both operations are
// all-or-nothing: either every touched material is updated together with its
// ledger rows and the run record, or nothing is written at all.
type ProductionService struct {
	db     *gorm.DB
	logger *logrus.Logger
	locker *redislock.Client
}

// NewProductionService constructs the service. locker may be nil; the redis
// lock only reduces contention between instances, correctness comes from the
// MySQL advisory lock plus FOR UPDATE row locks inside the posting transaction.
func NewProductionService(db *gorm.DB, logger *logrus.Logger, locker *redislock.Client) *ProductionService {
	return &ProductionService{db: db, logger: logger, locker: locker}
}

// MaterialRequirement is the computed consumption of one material for a run.
type MaterialRequirement struct {
	MaterialId int
	Required   decimal.Decimal
}

// RequiredAmounts expands the active recipe for a given output quantity.
func RequiredAmounts(recipe []models.RecipeRequirement, unitsProduced int) []MaterialRequirement {
	units := decimal.NewFromInt(int64(unitsProduced))
	requirements := make([]MaterialRequirement, 0, len(recipe))
	for _, item := range recipe {
		requirements = append(requirements, MaterialRequirement{
			MaterialId: item.MaterialId,
			Required:   item.QtyPerUnit.Mul(units),
		})
	}
	return requirements
}

// LogProduction records one manufacturing event: it verifies that every
// material in the active recipe can cover the run, then deducts all of them,
// appends one Production ledger row per material and creates the run record,
// all inside a single transaction.
func (s *ProductionService) LogProduction(ctx context.Context, input *models.NewProductionRun) (*models.ProductionRun, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	release := s.obtainRedisLock(ctx)
	defer release()

	runDate := time.Now().UTC()
	if input.RunDate != nil {
		runDate = utils.StartOfDayUTC(*input.RunDate)
	}

	var run models.ProductionRun
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx); err != nil {
			return err
		}
		defer ReleasePostingLock(tx)

		// Recipe rows are read inside the transaction and materials are
		// locked in id order, so two concurrent runs cannot interleave their
		// checks and deductions.
		var recipe []models.RecipeRequirement
		if err := tx.Model(&models.RecipeItem{}).
			Select("recipe_items.material_id, raw_materials.name AS material_name, raw_materials.unit, recipe_items.qty_per_unit").
			Joins("JOIN raw_materials ON raw_materials.id = recipe_items.material_id").
			Where("recipe_items.is_active = ?", true).
			Order("recipe_items.material_id").
			Scan(&recipe).Error; err != nil {
			return err
		}
		if len(recipe) == 0 {
			return utils.ValidationErrorf("no active recipe configured")
		}

		requirements := RequiredAmounts(recipe, input.UnitsProduced)

		materials := make([]*models.RawMaterial, len(requirements))
		var deficits []utils.MaterialDeficit
		for i, req := range requirements {
			material, err := lockMaterialForUpdate(tx, req.MaterialId)
			if err != nil {
				return err
			}
			materials[i] = material
			if material.Quantity.LessThan(req.Required) {
				deficits = append(deficits, utils.MaterialDeficit{
					MaterialId:   material.ID,
					MaterialName: material.Name,
					Required:     req.Required,
					Available:    material.Quantity,
					Shortage:     req.Required.Sub(material.Quantity),
				})
			}
		}
		if len(deficits) > 0 {
			// Abort before any write: no material may be partially deducted.
			return &utils.InsufficientStockError{Deficits: deficits}
		}

		userId, _ := utils.GetUserIdFromContext(ctx)
		run = models.ProductionRun{
			RunDate:       runDate,
			UnitsProduced: input.UnitsProduced,
			Notes:         input.Notes,
			CreatedBy:     userId,
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}

		notes := fmt.Sprintf("Production of %d units", input.UnitsProduced)
		for i, req := range requirements {
			if _, err := applyQuantityChange(ctx, tx, materials[i], models.TransactionTypeProduction, req.Required.Neg(), &run.ID, notes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !utils.IsInsufficientStock(err) {
			config.LogError(s.logger, "production", "LogProduction", "post", input, err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"module":         "production",
		"production_run": run.ID,
		"units":          run.UnitsProduced,
	}).Info("production run posted")
	return &run, nil
}

// UndoProduction reverses one run. Restore amounts come from the stored
// Production ledger rows of that run, never from the live recipe: the recipe
// may have changed since the run was posted and the ledger is authoritative.
func (s *ProductionService) UndoProduction(ctx context.Context, productionRunId int) (*models.ProductionRun, error) {
	release := s.obtainRedisLock(ctx)
	defer release()

	var run models.ProductionRun
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx); err != nil {
			return err
		}
		defer ReleasePostingLock(tx)

		// The run row is locked so a concurrent undo of the same run blocks
		// here and then fails the is_deleted check instead of double-restoring.
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", productionRunId).
			First(&run).Error
		if err == gorm.ErrRecordNotFound {
			return utils.NotFoundErrorf("production run %d not found", productionRunId)
		}
		if err != nil {
			return err
		}
		if run.IsDeleted {
			return utils.NotFoundErrorf("production run %d already undone", productionRunId)
		}

		var consumptions []models.MaterialTransaction
		if err := tx.
			Where("production_run_id = ? AND transaction_type = ?", productionRunId, models.TransactionTypeProduction).
			Order("material_id").
			Find(&consumptions).Error; err != nil {
			return err
		}

		notes := fmt.Sprintf("Reversal of production run #%d", productionRunId)
		for _, consumption := range consumptions {
			material, err := lockMaterialForUpdate(tx, consumption.MaterialId)
			if err != nil {
				return err
			}
			if _, err := applyQuantityChange(ctx, tx, material, models.TransactionTypeReversal, consumption.Consumed(), &run.ID, notes); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.ProductionRun{}).
			Where("id = ?", productionRunId).
			Update("is_deleted", true).Error; err != nil {
			return err
		}
		run.IsDeleted = true
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "production", "UndoProduction", "post", productionRunId, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"module":         "production",
		"production_run": run.ID,
	}).Info("production run undone")
	return &run, nil
}

// GetRun returns one production run, deleted or not.
func (s *ProductionService) GetRun(ctx context.Context, productionRunId int) (*models.ProductionRun, error) {
	var run models.ProductionRun
	err := s.db.WithContext(ctx).First(&run, productionRunId).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.NotFoundErrorf("production run %d not found", productionRunId)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RunTransactions returns the ledger rows tied to one run, oldest first.
func (s *ProductionService) RunTransactions(ctx context.Context, productionRunId int) ([]models.MaterialTransaction, error) {
	var txns []models.MaterialTransaction
	if err := s.db.WithContext(ctx).
		Where("production_run_id = ?", productionRunId).
		Order("id").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// obtainRedisLock is a best-effort cross-instance mutex around posting.
// Reliability must not depend on Redis: posting is also serialized via the
// MySQL advisory lock, so lock failures fall through silently.
func (s *ProductionService) obtainRedisLock(ctx context.Context) func() {
	if s.locker == nil {
		return func() {}
	}
	lock, err := s.locker.Obtain(ctx, "factory:stock-posting", 30*time.Second, nil)
	if err != nil {
		return func() {}
	}
	return func() { _ = lock.Release(context.Background()) }
}
