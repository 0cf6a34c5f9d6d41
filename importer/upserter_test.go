package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"catalog-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRehoster rewrites URLs into a fake bucket and fails for URLs containing "broken".
type fakeRehoster struct {
	calls []string
}

func (f *fakeRehoster) RehostImage(_ context.Context, imageURL string, productID uuid.UUID) (string, error) {
	f.calls = append(f.calls, imageURL)
	if strings.Contains(imageURL, "broken") {
		return "", errors.New("download failed")
	}
	return "https://storage.googleapis.com/bucket/products/" + productID.String() + "_" + imageURL[len(imageURL)-5:], nil
}

func record(name, sku string, price float64) *ProductRecord {
	return &ProductRecord{Name: name, SKU: sku, BasePrice: price}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestUpsertCreate(t *testing.T) {
	db := freshDB(t)
	u := NewUpserter(db, nil, quietLogger())

	weight := 3.5
	rec := record("Poltrona", "POL-1", 899.9)
	rec.Description = "Veludo"
	rec.Weight = &weight

	res, err := u.Upsert(context.Background(), rec, References{}, DuplicateSkip)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", res.ProductID).Error)
	assert.Equal(t, "Poltrona", product.Name)
	assert.Equal(t, "POL-1", *product.SKU)
	assert.True(t, product.Active)
	assert.InDelta(t, 3.5, *product.Weight, 0.001)
}

func TestUpsertWithoutSKUAlwaysCreates(t *testing.T) {
	db := freshDB(t)
	u := NewUpserter(db, nil, quietLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := u.Upsert(ctx, record("Banqueta", "", 50), References{}, DuplicateError)
		require.NoError(t, err)
		assert.Equal(t, StatusCreated, res.Status)
	}
	assert.EqualValues(t, 2, countRows(t, db, &models.Product{}, "sku IS NULL"))
}

func TestUpsertDuplicatePolicies(t *testing.T) {
	db := freshDB(t)
	u := NewUpserter(db, nil, quietLogger())
	ctx := context.Background()

	created, err := u.Upsert(ctx, record("Mesa", "MESA-1", 100), References{}, DuplicateSkip)
	require.NoError(t, err)

	skipped, err := u.Upsert(ctx, record("Mesa Nova", "MESA-1", 200), References{}, DuplicateSkip)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, skipped.Status)
	assert.Equal(t, created.ProductID, skipped.ProductID)

	_, err = u.Upsert(ctx, record("Mesa Nova", "MESA-1", 200), References{}, DuplicateError)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "Produto com SKU MESA-1 já existe", rowErr.Message)

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", created.ProductID).Error)
	assert.Equal(t, "Mesa", product.Name)
	assert.InDelta(t, 100, product.BasePrice, 0.001)

	catID := uuid.New()
	updated, err := u.Upsert(ctx, record("Mesa Nova", "MESA-1", 200), References{CategoryID: &catID}, DuplicateUpdate)
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, updated.Status)
	assert.Equal(t, created.ProductID, updated.ProductID)

	require.NoError(t, db.First(&product, "id = ?", created.ProductID).Error)
	assert.Equal(t, "Mesa Nova", product.Name)
	assert.InDelta(t, 200, product.BasePrice, 0.001)
	require.NotNil(t, product.CategoryID)
	assert.Equal(t, catID, *product.CategoryID)
	assert.EqualValues(t, 1, countRows(t, db, &models.Product{}, ""))
}

func TestUpsertImages(t *testing.T) {
	db := freshDB(t)
	images := &fakeRehoster{}
	u := NewUpserter(db, images, quietLogger())
	ctx := context.Background()

	rec := record("Luminária", "LUM-1", 80)
	rec.Images = "https://x.com/a.jpg; https://x.com/broken.png, nope"
	res, err := u.Upsert(ctx, rec, References{}, DuplicateUpdate)
	require.NoError(t, err)
	assert.Len(t, images.calls, 2)

	var saved []models.ProductImage
	require.NoError(t, db.Where("product_id = ?", res.ProductID).Order("display_order").Find(&saved).Error)
	require.Len(t, saved, 2)
	assert.True(t, saved[0].IsPrimary)
	assert.True(t, strings.HasPrefix(saved[0].ImageURL, "https://storage.googleapis.com/bucket/"))
	assert.False(t, saved[1].IsPrimary)
	assert.Equal(t, "https://x.com/broken.png", saved[1].ImageURL)

	// An update with images replaces the previous set.
	rec.Images = "https://x.com/c.jpg"
	_, err = u.Upsert(ctx, rec, References{}, DuplicateUpdate)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, db, &models.ProductImage{}, "product_id = ?", res.ProductID))
}

func TestUpsertImagesWithoutRehoster(t *testing.T) {
	db := freshDB(t)
	u := NewUpserter(db, nil, quietLogger())

	rec := record("Vaso", "", 20)
	rec.Images = "https://x.com/v.jpg"
	res, err := u.Upsert(context.Background(), rec, References{}, DuplicateSkip)
	require.NoError(t, err)

	var image models.ProductImage
	require.NoError(t, db.First(&image, "product_id = ?", res.ProductID).Error)
	assert.Equal(t, "https://x.com/v.jpg", image.ImageURL)
}

func TestUpsertVariant(t *testing.T) {
	db := freshDB(t)
	u := NewUpserter(db, nil, quietLogger())
	ctx := context.Background()

	plain, err := u.Upsert(ctx, record("Tapete", "", 10), References{}, DuplicateSkip)
	require.NoError(t, err)
	assert.EqualValues(t, 0, countRows(t, db, &models.ProductVariant{}, "product_id = ?", plain.ProductID))

	rec := record("Cama", "", 1500)
	rec.Size = "Queen"
	rec.Color = "Cinza"
	matID := uuid.New()
	res, err := u.Upsert(ctx, rec, References{MaterialID: &matID}, DuplicateSkip)
	require.NoError(t, err)

	var variant models.ProductVariant
	require.NoError(t, db.First(&variant, "product_id = ?", res.ProductID).Error)
	assert.Equal(t, "Queen", variant.Size)
	assert.Equal(t, "Cinza", variant.Color)
	require.NotNil(t, variant.MaterialID)
	assert.Equal(t, matID, *variant.MaterialID)

	// A resolved material alone still yields a variant.
	onlyMaterial, err := u.Upsert(ctx, record("Estante", "", 300), References{MaterialID: &matID}, DuplicateSkip)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, db, &models.ProductVariant{}, "product_id = ?", onlyMaterial.ProductID))
}

func TestUpsertInventory(t *testing.T) {
	db := freshDB(t)
	u := NewUpserter(db, nil, quietLogger())
	ctx := context.Background()

	stock := 12
	rec := record("Rack", "RACK-1", 700)
	rec.StockQuantity = &stock
	res, err := u.Upsert(ctx, rec, References{}, DuplicateUpdate)
	require.NoError(t, err)

	var inv models.Inventory
	require.NoError(t, db.First(&inv, "product_id = ?", res.ProductID).Error)
	assert.Equal(t, 12, inv.QuantityAvailable)
	assert.Equal(t, 0, inv.QuantityReserved)
	assert.Equal(t, DefaultMinimumStock, inv.MinimumStock)

	stock = 4
	_, err = u.Upsert(ctx, rec, References{}, DuplicateUpdate)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, db, &models.Inventory{}, "product_id = ?", res.ProductID))
	require.NoError(t, db.First(&inv, "product_id = ?", res.ProductID).Error)
	assert.Equal(t, 4, inv.QuantityAvailable)
}

func TestUpsertInventoryWithoutWarehouse(t *testing.T) {
	db := freshDB(t)
	require.NoError(t, db.Exec(`DELETE FROM "warehouses"`).Error)
	u := NewUpserter(db, nil, quietLogger())

	stock := 3
	rec := record("Biombo", "", 90)
	rec.StockQuantity = &stock
	_, err := u.Upsert(context.Background(), rec, References{}, DuplicateSkip)
	require.NoError(t, err)
	assert.EqualValues(t, 0, countRows(t, db, &models.Inventory{}, ""))
}

func TestRowImporterResolvesEntities(t *testing.T) {
	db := freshDB(t)
	ri := NewRowImporter(NewResolver(db), NewUpserter(db, nil, quietLogger()))
	ctx := context.Background()

	row := templateRow(map[Field]string{
		FieldName:      "Aparador",
		FieldBasePrice: "450",
		FieldCategory:  "Salas",
		FieldMaterial:  "Nogueira",
	})

	cfg := standardConfig(DuplicateSkip)
	res, err := ri.ImportRow(ctx, templateHeaders(), row, cfg)
	require.NoError(t, err)

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", res.ProductID).Error)
	require.NotNil(t, product.CategoryID)
	assert.EqualValues(t, 1, countRows(t, db, &models.Material{}, "name = ?", "Nogueira"))

	cfg.CreateCategories = false
	cfg.CreateMaterials = false
	res, err = ri.ImportRow(ctx, templateHeaders(), row, cfg)
	require.NoError(t, err)
	var uncategorized models.Product
	require.NoError(t, db.First(&uncategorized, "id = ?", res.ProductID).Error)
	assert.Nil(t, uncategorized.CategoryID)
	assert.EqualValues(t, 1, countRows(t, db, &models.Category{}, ""))
}

func TestUpsertRevivesSoftDeletedSKU(t *testing.T) {
	ctx := context.Background()

	for _, policy := range []DuplicatePolicy{DuplicateSkip, DuplicateUpdate, DuplicateError} {
		t.Run(string(policy), func(t *testing.T) {
			db := freshDB(t)
			u := NewUpserter(db, nil, quietLogger())

			first, err := u.Upsert(ctx, record("Cômoda", "COM-1", 300), References{}, policy)
			require.NoError(t, err)
			require.NoError(t, db.Delete(&models.Product{}, "id = ?", first.ProductID).Error)

			again, err := u.Upsert(ctx, record("Cômoda Nova", "COM-1", 350), References{}, policy)
			require.NoError(t, err)
			assert.Equal(t, StatusCreated, again.Status)
			assert.Equal(t, first.ProductID, again.ProductID)

			var product models.Product
			require.NoError(t, db.First(&product, "sku = ?", "COM-1").Error)
			assert.Equal(t, "Cômoda Nova", product.Name)
			assert.InDelta(t, 350, product.BasePrice, 0.001)
			assert.False(t, product.DeletedAt.Valid)
			assert.EqualValues(t, 1, countRows(t, db.Unscoped(), &models.Product{}, "sku = ?", "COM-1"))

			// Once revived, the SKU is a live duplicate again.
			dup, err := u.Upsert(ctx, record("Cômoda", "COM-1", 300), References{}, DuplicateSkip)
			require.NoError(t, err)
			assert.Equal(t, StatusSkipped, dup.Status)
		})
	}
}
