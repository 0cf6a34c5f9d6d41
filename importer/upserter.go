package importer

import (
	"context"
	"errors"
	"fmt"

	"catalog-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMinimumStock is written on every inventory row the import touches.
const DefaultMinimumStock = 5

// Row outcome statuses shown in the success log.
const (
	StatusCreated = "Criado"
	StatusUpdated = "Atualizado"
	StatusSkipped = "Pulado (duplicata)"
)

// References holds the entity ids resolved for a row.
type References struct {
	CategoryID *uuid.UUID
	MaterialID *uuid.UUID
}

type UpsertResult struct {
	ProductID uuid.UUID
	Status    string
}

// Upserter writes a validated row as a product with its images, variant and inventory.
type Upserter struct {
	DB     *gorm.DB
	Images ImageRehoster // optional
	Logger *logrus.Entry
}

func NewUpserter(db *gorm.DB, images ImageRehoster, logger *logrus.Entry) *Upserter {
	return &Upserter{DB: db, Images: images, Logger: logger}
}

// Upsert applies the duplicate policy against the row's SKU and materializes the product.
func (u *Upserter) Upsert(ctx context.Context, rec *ProductRecord, refs References, policy DuplicatePolicy) (UpsertResult, error) {
	existing, err := u.findBySKU(ctx, rec.SKU)
	if err != nil {
		return UpsertResult{}, &RowError{Message: "Falha ao consultar SKU", Err: err}
	}

	// A soft-deleted product still owns its SKU; it is revived rather than duplicated.
	if existing != nil && !existing.DeletedAt.Valid {
		switch policy {
		case DuplicateSkip:
			return UpsertResult{ProductID: existing.ID, Status: StatusSkipped}, nil
		case DuplicateError:
			return UpsertResult{}, &RowError{Message: fmt.Sprintf("Produto com SKU %s já existe", rec.SKU)}
		}
	}

	result, err := u.writeProduct(ctx, existing, rec, refs)
	if err != nil {
		return UpsertResult{}, &RowError{Message: "Falha ao gravar produto", Err: err}
	}

	u.writeImages(ctx, result.ProductID, rec.Images, existing != nil)

	if err := u.writeVariant(ctx, result.ProductID, rec, refs.MaterialID); err != nil {
		return UpsertResult{}, &RowError{Message: "Falha ao criar variante", Err: err}
	}

	if rec.StockQuantity != nil {
		if err := u.upsertInventory(ctx, result.ProductID, *rec.StockQuantity); err != nil {
			return UpsertResult{}, &RowError{Message: "Falha ao atualizar estoque", Err: err}
		}
	}

	return result, nil
}

func (u *Upserter) findBySKU(ctx context.Context, sku string) (*models.Product, error) {
	if sku == "" {
		return nil, nil
	}
	var product models.Product
	err := u.DB.WithContext(ctx).Unscoped().Where("sku = ?", sku).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (u *Upserter) writeProduct(ctx context.Context, existing *models.Product, rec *ProductRecord, refs References) (UpsertResult, error) {
	var sku *string
	if rec.SKU != "" {
		sku = &rec.SKU
	}

	db := u.DB.WithContext(ctx)
	if existing == nil {
		product := models.Product{
			Name:        rec.Name,
			Description: rec.Description,
			SKU:         sku,
			BasePrice:   rec.BasePrice,
			Weight:      rec.Weight,
			CategoryID:  refs.CategoryID,
			Active:      true,
		}
		if err := db.Create(&product).Error; err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{ProductID: product.ID, Status: StatusCreated}, nil
	}

	status := StatusUpdated
	updates := map[string]interface{}{
		"name":        rec.Name,
		"description": rec.Description,
		"sku":         sku,
		"base_price":  rec.BasePrice,
		"weight":      rec.Weight,
		"category_id": refs.CategoryID,
		"active":      true,
	}
	if existing.DeletedAt.Valid {
		updates["deleted_at"] = nil
		status = StatusCreated
	}
	if err := db.Unscoped().Model(existing).Updates(updates).Error; err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{ProductID: existing.ID, Status: status}, nil
}

// writeImages never fails the row; each image is best effort.
func (u *Upserter) writeImages(ctx context.Context, productID uuid.UUID, raw string, replace bool) {
	urls := SplitImageURLs(raw)
	if len(urls) == 0 {
		return
	}

	log := u.logger().WithField("product_id", productID)
	db := u.DB.WithContext(ctx)

	if replace {
		if err := db.Where("product_id = ?", productID).Delete(&models.ProductImage{}).Error; err != nil {
			log.WithError(err).Warn("Failed to clear previous product images")
		}
	}

	for i, src := range urls {
		imageURL := src
		if u.Images != nil {
			hosted, err := u.Images.RehostImage(ctx, src, productID)
			if err != nil {
				log.WithError(err).WithField("url", src).Warn("Image rehost failed, keeping source URL")
			} else {
				imageURL = hosted
			}
		}

		image := models.ProductImage{
			ProductID:    productID,
			ImageURL:     imageURL,
			IsPrimary:    i == 0,
			DisplayOrder: i,
		}
		if err := db.Create(&image).Error; err != nil {
			log.WithError(err).WithField("url", imageURL).Warn("Failed to save product image")
		}
	}
}

func (u *Upserter) writeVariant(ctx context.Context, productID uuid.UUID, rec *ProductRecord, materialID *uuid.UUID) error {
	if !rec.HasVariant() && materialID == nil {
		return nil
	}
	variant := models.ProductVariant{
		ProductID:  productID,
		Size:       rec.Size,
		Color:      rec.Color,
		Width:      rec.Width,
		MaterialID: materialID,
		Active:     true,
	}
	return u.DB.WithContext(ctx).Create(&variant).Error
}

// upsertInventory stocks the product in the oldest active warehouse. Without
// an active warehouse there is nothing to do.
func (u *Upserter) upsertInventory(ctx context.Context, productID uuid.UUID, quantity int) error {
	db := u.DB.WithContext(ctx)

	var warehouse models.Warehouse
	err := db.Where("active = ?", true).Order("created_at ASC").First(&warehouse).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	inventory := models.Inventory{
		ProductID:         productID,
		WarehouseID:       warehouse.ID,
		QuantityAvailable: quantity,
		QuantityReserved:  0,
		MinimumStock:      DefaultMinimumStock,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "warehouse_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity_available", "quantity_reserved", "minimum_stock", "updated_at"}),
	}).Create(&inventory).Error
}

func (u *Upserter) logger() *logrus.Entry {
	if u.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return u.Logger
}
