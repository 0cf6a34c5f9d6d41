package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductVariant struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProductID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"product_id"`
	Size       string         `json:"size,omitempty"`
	Color      string         `json:"color,omitempty"`
	Width      string         `json:"width,omitempty"`
	MaterialID *uuid.UUID     `gorm:"type:uuid;index" json:"material_id,omitempty"`
	Material   *Material      `gorm:"foreignKey:MaterialID" json:"material,omitempty"`
	Active     bool           `gorm:"default:true" json:"active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
