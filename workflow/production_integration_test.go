package workflow_test

import (
	"context"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/shopspring/decimal"
)

type testEnv struct {
	ctx        context.Context
	inventory  *workflow.InventoryService
	production *workflow.ProductionService
	reports    *workflow.ReportService
}

func setupIntegration(t *testing.T) *testEnv {
	t.Helper()
	skipUnlessIntegration(t)

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "factory_test")

	db := config.ConnectDatabaseWithRetry()
	_, locker := config.ConnectRedisWithRetry()
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	logger := config.NewLogger()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	return &testEnv{
		ctx:        ctx,
		inventory:  workflow.NewInventoryService(db, logger),
		production: workflow.NewProductionService(db, logger, locker),
		reports:    workflow.NewReportService(db),
	}
}

func (env *testEnv) mustCreateMaterial(t *testing.T, name, qty, unit, price string) *models.RawMaterial {
	t.Helper()
	material, err := env.inventory.CreateMaterial(env.ctx, &models.NewRawMaterial{
		Name:      name,
		Quantity:  dec(t, qty),
		Unit:      unit,
		UnitPrice: dec(t, price),
	})
	if err != nil {
		t.Fatalf("CreateMaterial(%s): %v", name, err)
	}
	return material
}

func (env *testEnv) mustSetRequirement(t *testing.T, materialId int, qtyPerUnit string) {
	t.Helper()
	if _, err := env.inventory.SetRequirement(env.ctx, &models.NewRecipeRequirement{
		MaterialId: materialId,
		QtyPerUnit: dec(t, qtyPerUnit),
	}); err != nil {
		t.Fatalf("SetRequirement(%d): %v", materialId, err)
	}
}

func (env *testEnv) quantity(t *testing.T, materialId int) decimal.Decimal {
	t.Helper()
	material, err := env.inventory.GetMaterial(env.ctx, materialId)
	if err != nil {
		t.Fatalf("GetMaterial(%d): %v", materialId, err)
	}
	return material.Quantity
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func requireEqual(t *testing.T, got, want decimal.Decimal, what string) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s: got %s, want %s", what, got, want)
	}
}

func TestProductionRoundTripRestoresStock(t *testing.T) {
	env := setupIntegration(t)

	wood := env.mustCreateMaterial(t, "Wood Splints", "500", "kg", "1.20")
	paste := env.mustCreateMaterial(t, "Chemical Paste", "100", "kg", "8.50")
	env.mustSetRequirement(t, wood.ID, "0.5")
	env.mustSetRequirement(t, paste.ID, "0.1")

	run, err := env.production.LogProduction(env.ctx, &models.NewProductionRun{UnitsProduced: 10})
	if err != nil {
		t.Fatalf("LogProduction: %v", err)
	}

	requireEqual(t, env.quantity(t, wood.ID), dec(t, "495"), "wood after production")
	requireEqual(t, env.quantity(t, paste.ID), dec(t, "99"), "paste after production")

	// Each consumption row must carry a consistent before/after snapshot and
	// the price at posting time.
	txns, err := env.production.RunTransactions(env.ctx, run.ID)
	if err != nil {
		t.Fatalf("RunTransactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 consumption rows, got %d", len(txns))
	}
	for _, txn := range txns {
		if txn.TransactionType != models.TransactionTypeProduction {
			t.Fatalf("unexpected transaction type %s", txn.TransactionType)
		}
		requireEqual(t, txn.QtyAfter, txn.QtyBefore.Add(txn.QtyChange), "ledger snapshot invariant")
		if !txn.QtyChange.IsNegative() {
			t.Fatalf("production row must be a deduction, got %s", txn.QtyChange)
		}
		if txn.UnitPrice.IsZero() {
			t.Fatalf("production row must persist the price at posting time")
		}
	}

	undone, err := env.production.UndoProduction(env.ctx, run.ID)
	if err != nil {
		t.Fatalf("UndoProduction: %v", err)
	}
	if !undone.IsDeleted {
		t.Fatalf("undone run must be marked deleted")
	}

	requireEqual(t, env.quantity(t, wood.ID), dec(t, "500"), "wood after undo")
	requireEqual(t, env.quantity(t, paste.ID), dec(t, "100"), "paste after undo")

	// The run now carries matched consumption + reversal pairs.
	txns, err = env.production.RunTransactions(env.ctx, run.ID)
	if err != nil {
		t.Fatalf("RunTransactions after undo: %v", err)
	}
	var reversals int
	for _, txn := range txns {
		if txn.TransactionType == models.TransactionTypeReversal {
			reversals++
			if !txn.QtyChange.IsPositive() {
				t.Fatalf("reversal row must restore stock, got %s", txn.QtyChange)
			}
		}
	}
	if reversals != 2 {
		t.Fatalf("expected 2 reversal rows, got %d", reversals)
	}
}

func TestUndoUsesStoredAmountsNotLiveRecipe(t *testing.T) {
	env := setupIntegration(t)

	wood := env.mustCreateMaterial(t, "Wood Splints", "500", "kg", "1.20")
	env.mustSetRequirement(t, wood.ID, "0.5")

	run, err := env.production.LogProduction(env.ctx, &models.NewProductionRun{UnitsProduced: 10})
	if err != nil {
		t.Fatalf("LogProduction: %v", err)
	}
	requireEqual(t, env.quantity(t, wood.ID), dec(t, "495"), "wood after production")

	// Changing the recipe between posting and undo must not change what the
	// undo restores.
	env.mustSetRequirement(t, wood.ID, "2")

	if _, err := env.production.UndoProduction(env.ctx, run.ID); err != nil {
		t.Fatalf("UndoProduction: %v", err)
	}
	requireEqual(t, env.quantity(t, wood.ID), dec(t, "500"), "wood after undo")
}

func TestUndoTwiceFailsCleanly(t *testing.T) {
	env := setupIntegration(t)

	wood := env.mustCreateMaterial(t, "Wood Splints", "500", "kg", "1.20")
	env.mustSetRequirement(t, wood.ID, "0.5")

	run, err := env.production.LogProduction(env.ctx, &models.NewProductionRun{UnitsProduced: 4})
	if err != nil {
		t.Fatalf("LogProduction: %v", err)
	}
	if _, err := env.production.UndoProduction(env.ctx, run.ID); err != nil {
		t.Fatalf("first UndoProduction: %v", err)
	}

	_, err = env.production.UndoProduction(env.ctx, run.ID)
	if !utils.IsNotFound(err) {
		t.Fatalf("second undo must fail with not-found, got %v", err)
	}
	// Stock must not move again.
	requireEqual(t, env.quantity(t, wood.ID), dec(t, "500"), "wood after double undo")
}

func TestInsufficientStockLeavesEverythingUnchanged(t *testing.T) {
	env := setupIntegration(t)

	wood := env.mustCreateMaterial(t, "Wood Splints", "100", "kg", "1.20")
	paste := env.mustCreateMaterial(t, "Chemical Paste", "3", "kg", "8.50")
	glue := env.mustCreateMaterial(t, "Glue", "1", "kg", "4.00")
	env.mustSetRequirement(t, wood.ID, "0.5")
	env.mustSetRequirement(t, paste.ID, "0.1")
	env.mustSetRequirement(t, glue.ID, "0.05")

	// 50 units needs 25 wood (ok), 5 paste (short), 2.5 glue (short).
	_, err := env.production.LogProduction(env.ctx, &models.NewProductionRun{UnitsProduced: 50})
	var stockErr *utils.InsufficientStockError
	if !utils.AsInsufficientStock(err, &stockErr) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	// Every deficient material is reported, not just the first.
	if len(stockErr.Deficits) != 2 {
		t.Fatalf("expected 2 deficits, got %d: %v", len(stockErr.Deficits), stockErr.Deficits)
	}

	requireEqual(t, env.quantity(t, wood.ID), dec(t, "100"), "wood untouched")
	requireEqual(t, env.quantity(t, paste.ID), dec(t, "3"), "paste untouched")
	requireEqual(t, env.quantity(t, glue.ID), dec(t, "1"), "glue untouched")

	// No run or ledger rows may exist for the failed posting.
	runs, err := env.reports.ProductionsInRange(env.ctx, today(), today())
	if err != nil {
		t.Fatalf("ProductionsInRange: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("failed posting must not create a run, got %d", len(runs))
	}
}

func TestRestockAndAdjustValidation(t *testing.T) {
	env := setupIntegration(t)

	wood := env.mustCreateMaterial(t, "Wood Splints", "10", "kg", "1.20")

	if _, err := env.inventory.Restock(env.ctx, wood.ID, dec(t, "-5"), ""); !utils.IsValidation(err) {
		t.Fatalf("negative restock must be a validation error, got %v", err)
	}
	if _, err := env.inventory.Restock(env.ctx, wood.ID, decimal.Zero, ""); !utils.IsValidation(err) {
		t.Fatalf("zero restock must be a validation error, got %v", err)
	}

	// Adjust below zero is rejected and leaves the quantity alone.
	if _, err := env.inventory.Adjust(env.ctx, wood.ID, dec(t, "-11"), "shrinkage"); !utils.IsInsufficientStock(err) {
		t.Fatalf("over-adjustment must be an insufficient stock error, got %v", err)
	}
	requireEqual(t, env.quantity(t, wood.ID), dec(t, "10"), "wood after rejected adjust")

	txn, err := env.inventory.Restock(env.ctx, wood.ID, dec(t, "40"), "")
	if err != nil {
		t.Fatalf("Restock: %v", err)
	}
	requireEqual(t, txn.QtyAfter, dec(t, "50"), "restock qty_after")
	requireEqual(t, env.quantity(t, wood.ID), dec(t, "50"), "wood after restock")
}

func TestLowStockQueryAndStockoutPrediction(t *testing.T) {
	env := setupIntegration(t)

	wood := env.mustCreateMaterial(t, "Wood Splints", "500", "kg", "1.20")
	glue := env.mustCreateMaterial(t, "Glue", "5", "kg", "4.00")
	env.mustSetRequirement(t, wood.ID, "0.5")

	low, err := env.inventory.LowStockMaterials(env.ctx, nil)
	if err != nil {
		t.Fatalf("LowStockMaterials: %v", err)
	}
	if len(low) != 1 || low[0].ID != glue.ID {
		t.Fatalf("expected only glue below default threshold, got %v", low)
	}

	// No consumption yet: prediction must report no trend rather than divide
	// by zero.
	prediction, err := env.reports.StockoutPrediction(env.ctx, wood.ID)
	if err != nil {
		t.Fatalf("StockoutPrediction: %v", err)
	}
	if prediction.HasTrend {
		t.Fatalf("expected no trend without consumption, got %+v", prediction)
	}

	if _, err := env.production.LogProduction(env.ctx, &models.NewProductionRun{UnitsProduced: 60}); err != nil {
		t.Fatalf("LogProduction: %v", err)
	}

	prediction, err = env.reports.StockoutPrediction(env.ctx, wood.ID)
	if err != nil {
		t.Fatalf("StockoutPrediction after production: %v", err)
	}
	if !prediction.HasTrend {
		t.Fatalf("expected a trend after consumption")
	}
	// 30 kg over a 30 day window = 1 kg/day; 470 kg left.
	requireEqual(t, prediction.AvgDailyConsumption, dec(t, "1"), "avg daily consumption")
	requireEqual(t, prediction.DaysRemaining, dec(t, "470"), "days remaining")
	if prediction.EstimatedStockout == nil {
		t.Fatalf("expected an estimated stockout date")
	}
}

func TestProductionSummaryUsesPostedPrices(t *testing.T) {
	env := setupIntegration(t)

	wood := env.mustCreateMaterial(t, "Wood Splints", "500", "kg", "2.00")
	env.mustSetRequirement(t, wood.ID, "0.5")

	if _, err := env.production.LogProduction(env.ctx, &models.NewProductionRun{UnitsProduced: 10}); err != nil {
		t.Fatalf("LogProduction: %v", err)
	}

	// Repricing the material after posting must not change the report.
	newPrice := dec(t, "99")
	if _, err := env.inventory.UpdateMaterial(env.ctx, wood.ID, &models.UpdateRawMaterial{UnitPrice: &newPrice}); err != nil {
		t.Fatalf("UpdateMaterial: %v", err)
	}

	summary, err := env.reports.ProductionSummary(env.ctx, today(), today())
	if err != nil {
		t.Fatalf("ProductionSummary: %v", err)
	}
	if summary.TotalRuns != 1 || summary.TotalUnits != 10 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// 5 kg at the posted price of 2.00.
	requireEqual(t, summary.TotalCost, dec(t, "10"), "total cost at posted price")
}
