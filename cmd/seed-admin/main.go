// seed-admin creates or updates the admin console user (username: factoryAdmin).
// Admin users have role = 'A'; the backend returns role "Admin" for login.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "factoryAdmin"
	adminName     = "Factory Admin"
)

func main() {
	ctx := context.Background()

	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(1)
	}

	db := config.ConnectDatabaseWithRetry()
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin)\n", adminUsername)
		return
	}

	// Update existing user: ensure password and admin role.
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":  hashedStr,
		"name":      adminName,
		"is_active": utils.NewTrue(),
		"role":      models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: username=%q (role=Admin)\n", adminUsername)
}
