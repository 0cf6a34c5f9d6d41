package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Code      string         `gorm:"uniqueIndex" json:"code"`
	Active    bool           `gorm:"default:true" json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (w *Warehouse) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Inventory holds the stock of one product in one warehouse.
type Inventory struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProductID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_product_warehouse" json:"product_id"`
	WarehouseID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_product_warehouse" json:"warehouse_id"`
	QuantityAvailable int       `gorm:"not null;default:0" json:"quantity_available"`
	QuantityReserved  int       `gorm:"not null;default:0" json:"quantity_reserved"`
	MinimumStock      int       `gorm:"not null;default:0" json:"minimum_stock"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (i *Inventory) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
