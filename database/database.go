package database

import (
	"fmt"

	"catalog-backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=catalog port=5432 sslmode=disable"

// Connect opens the database for the given driver ("postgres" or "sqlite").
func Connect(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "", "postgres":
		if dsn == "" {
			dsn = defaultDSN
		}
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer; share one connection between import goroutines.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		return CreateSQLiteSchema(db)
	}

	// Ensure PostgreSQL has gen_random_uuid() available (pgcrypto extension).
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	return db.AutoMigrate(
		&models.Category{},
		&models.Material{},
		&models.Product{},
		&models.ProductImage{},
		&models.ProductVariant{},
		&models.Warehouse{},
		&models.Inventory{},
		&models.ImportJob{},
	)
}

// CreateDefaultWarehouse makes sure imports have somewhere to put stock.
// It reports whether a warehouse had to be created.
func CreateDefaultWarehouse(db *gorm.DB, name, code string) (bool, error) {
	var count int64
	if err := db.Model(&models.Warehouse{}).Where("active = ?", true).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	warehouse := models.Warehouse{
		Name:   name,
		Code:   code,
		Active: true,
	}
	if err := db.Create(&warehouse).Error; err != nil {
		return false, err
	}
	return true, nil
}
