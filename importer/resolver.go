package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalog-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntityKind names a catalog entity that rows reference by name.
type EntityKind string

const (
	EntityCategory EntityKind = "category"
	EntityMaterial EntityKind = "material"
)

// Resolver finds or creates named catalog entities. Every call queries the
// store; nothing is cached between rows.
type Resolver struct {
	DB *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{DB: db}
}

// Resolve returns the id of the entity of the given kind named name, creating
// an active one when none exists. It returns nil for an empty name.
func (r *Resolver) Resolve(ctx context.Context, kind EntityKind, name string) (*uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var (
		id  uuid.UUID
		err error
	)
	switch kind {
	case EntityCategory:
		id, err = firstOrInsert(ctx, r.DB, name,
			func() *models.Category { return &models.Category{Name: name, Active: true} },
			func(c *models.Category) (uuid.UUID, bool) { return c.ID, c.DeletedAt.Valid },
		)
	case EntityMaterial:
		id, err = firstOrInsert(ctx, r.DB, name,
			func() *models.Material { return &models.Material{Name: name, Active: true} },
			func(m *models.Material) (uuid.UUID, bool) { return m.ID, m.DeletedAt.Valid },
		)
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// firstOrInsert relies on the unique index on name: concurrent inserts of the
// same name collapse into one row and the losers read the winner back. The
// index also covers soft-deleted rows, so lookups are unscoped and a deleted
// match is restored as an active entity.
func firstOrInsert[T any](ctx context.Context, db *gorm.DB, name string, build func() *T, idOf func(*T) (uuid.UUID, bool)) (uuid.UUID, error) {
	db = db.WithContext(ctx)

	found, err := firstByName[T](db, name)
	if err == nil {
		return restore(db, found, idOf)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, err
	}

	row := build()
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(row)
	if result.Error != nil {
		return uuid.Nil, result.Error
	}
	if result.RowsAffected == 1 {
		id, _ := idOf(row)
		return id, nil
	}

	winner, err := firstByName[T](db, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve %q after conflict: %w", name, err)
	}
	return restore(db, winner, idOf)
}

func firstByName[T any](db *gorm.DB, name string) (*T, error) {
	var row T
	if err := db.Unscoped().Where("name = ?", name).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func restore[T any](db *gorm.DB, row *T, idOf func(*T) (uuid.UUID, bool)) (uuid.UUID, error) {
	id, deleted := idOf(row)
	if !deleted {
		return id, nil
	}
	err := db.Unscoped().Model(row).Updates(map[string]interface{}{
		"deleted_at": nil,
		"active":     true,
	}).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("restore deleted entity: %w", err)
	}
	return id, nil
}
