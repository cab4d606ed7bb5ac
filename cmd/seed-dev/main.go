// seed-dev loads a development database with the standard match factory
// materials and the default recipe. It is idempotent: materials that already
// exist are left alone.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedMaterial struct {
	name       string
	quantity   string
	unit       string
	unitPrice  string
	qtyPerUnit string
}

// Default bill of materials for one box of matches.
var seedMaterials = []seedMaterial{
	{"Wood Splints", "500", "kg", "1.20", "0.5"},
	{"Chemical Paste", "100", "kg", "8.50", "0.1"},
	{"Cardboard Sheets", "5000", "pcs", "0.15", "5"},
	{"Glue", "50", "kg", "4.00", "0.05"},
}

func main() {
	ctx := context.Background()
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	db := config.ConnectDatabaseWithRetry()
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger()
	inventory := workflow.NewInventoryService(db, logger)

	for _, m := range seedMaterials {
		var existing models.RawMaterial
		err := db.WithContext(ctx).Where("name = ?", m.name).First(&existing).Error
		if err == nil {
			fmt.Printf("material %q already exists, skipping\n", m.name)
			continue
		}
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup material %q: %v\n", m.name, err)
			os.Exit(1)
		}

		material, err := inventory.CreateMaterial(ctx, &models.NewRawMaterial{
			Name:      m.name,
			Quantity:  mustDecimal(m.quantity),
			Unit:      m.unit,
			UnitPrice: mustDecimal(m.unitPrice),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create material %q: %v\n", m.name, err)
			os.Exit(1)
		}

		if _, err := inventory.SetRequirement(ctx, &models.NewRecipeRequirement{
			MaterialId: material.ID,
			QtyPerUnit: mustDecimal(m.qtyPerUnit),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to set requirement for %q: %v\n", m.name, err)
			os.Exit(1)
		}
		fmt.Printf("seeded %q: qty=%s %s, %s per unit\n", m.name, m.quantity, m.unit, m.qtyPerUnit)
	}

	fmt.Println("Seed complete")
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("bad seed decimal %q: %v", s, err))
	}
	return d
}
