package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID          uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name        string           `gorm:"size:255;not null" json:"name"`
	Description string           `json:"description"`
	SKU         *string          `gorm:"column:sku;size:100;uniqueIndex" json:"sku,omitempty"`
	BasePrice   float64          `gorm:"not null" json:"base_price"`
	Weight      *float64         `json:"weight,omitempty"`
	CategoryID  *uuid.UUID       `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category    *Category        `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Active      bool             `gorm:"default:true" json:"active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`
	Images      []ProductImage   `gorm:"foreignKey:ProductID" json:"images,omitempty"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
