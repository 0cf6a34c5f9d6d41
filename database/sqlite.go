package database

import (
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the GORM models with SQLite-compatible DDL, because the
// model tags carry PostgreSQL defaults like gen_random_uuid().
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS "categories" (
		"id" TEXT PRIMARY KEY,
		"name" TEXT NOT NULL,
		"description" TEXT,
		"active" INTEGER DEFAULT 1,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name ON "categories"("name")`,
	`CREATE INDEX IF NOT EXISTS idx_categories_deleted_at ON "categories"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "materials" (
		"id" TEXT PRIMARY KEY,
		"name" TEXT NOT NULL,
		"description" TEXT,
		"active" INTEGER DEFAULT 1,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_materials_name ON "materials"("name")`,
	`CREATE INDEX IF NOT EXISTS idx_materials_deleted_at ON "materials"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "products" (
		"id" TEXT PRIMARY KEY,
		"name" TEXT NOT NULL,
		"description" TEXT,
		"sku" TEXT,
		"base_price" REAL NOT NULL,
		"weight" REAL,
		"category_id" TEXT,
		"active" INTEGER DEFAULT 1,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku ON "products"("sku")`,
	`CREATE INDEX IF NOT EXISTS idx_products_category_id ON "products"("category_id")`,
	`CREATE INDEX IF NOT EXISTS idx_products_deleted_at ON "products"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "product_images" (
		"id" TEXT PRIMARY KEY,
		"product_id" TEXT NOT NULL,
		"image_url" TEXT NOT NULL,
		"is_primary" INTEGER DEFAULT 0,
		"display_order" INTEGER NOT NULL DEFAULT 0,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_images_product_id ON "product_images"("product_id")`,
	`CREATE INDEX IF NOT EXISTS idx_product_images_deleted_at ON "product_images"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "product_variants" (
		"id" TEXT PRIMARY KEY,
		"product_id" TEXT NOT NULL,
		"size" TEXT,
		"color" TEXT,
		"width" TEXT,
		"material_id" TEXT,
		"active" INTEGER DEFAULT 1,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_variants_product_id ON "product_variants"("product_id")`,
	`CREATE INDEX IF NOT EXISTS idx_product_variants_deleted_at ON "product_variants"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "warehouses" (
		"id" TEXT PRIMARY KEY,
		"name" TEXT NOT NULL,
		"code" TEXT,
		"active" INTEGER DEFAULT 1,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_warehouses_code ON "warehouses"("code")`,
	`CREATE INDEX IF NOT EXISTS idx_warehouses_deleted_at ON "warehouses"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "inventories" (
		"id" TEXT PRIMARY KEY,
		"product_id" TEXT NOT NULL,
		"warehouse_id" TEXT NOT NULL,
		"quantity_available" INTEGER NOT NULL DEFAULT 0,
		"quantity_reserved" INTEGER NOT NULL DEFAULT 0,
		"minimum_stock" INTEGER NOT NULL DEFAULT 0,
		"created_at" DATETIME,
		"updated_at" DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_inventory_product_warehouse ON "inventories"("product_id", "warehouse_id")`,

	`CREATE TABLE IF NOT EXISTS "import_jobs" (
		"id" TEXT PRIMARY KEY,
		"filename" TEXT NOT NULL,
		"total_products" INTEGER NOT NULL DEFAULT 0,
		"processed_products" INTEGER NOT NULL DEFAULT 0,
		"success_count" INTEGER NOT NULL DEFAULT 0,
		"error_count" INTEGER NOT NULL DEFAULT 0,
		"status" TEXT NOT NULL DEFAULT 'pending',
		"mapping_config" TEXT,
		"success_log" TEXT,
		"error_log" TEXT,
		"started_at" DATETIME,
		"completed_at" DATETIME,
		"created_at" DATETIME,
		"updated_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_jobs_status ON "import_jobs"("status")`,
}

// CreateSQLiteSchema creates every table on a SQLite database.
func CreateSQLiteSchema(db *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

// ResetSQLiteData deletes every row, children first.
func ResetSQLiteData(db *gorm.DB) {
	for _, table := range []string{
		"inventories",
		"product_variants",
		"product_images",
		"products",
		"materials",
		"categories",
		"warehouses",
		"import_jobs",
	} {
		db.Exec(`DELETE FROM "` + table + `"`)
	}
}
