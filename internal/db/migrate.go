package db

import (
	"fmt"

	"github.com/hexfoundry/herald/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model herald persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.BroadcastMessage{},
	}
}

// AutoMigrate creates or updates all tables. The unique indexes on
// accounts.channel_id and accounts.phone are integrity constraints the
// onboarding code depends on, not optional performance indexes.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops and recreates all tables. Destructive; CLI-only.
func Reset(gdb *gorm.DB) error {
	if err := gdb.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return AutoMigrate(gdb)
}
