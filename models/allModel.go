package models

import "gorm.io/gorm"

// MigrateTable auto-migrates the full schema. Safe to run repeatedly.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&RawMaterial{},
		&RecipeItem{},
		&ProductionRun{},
		&MaterialTransaction{},
		&User{},
	)
}
