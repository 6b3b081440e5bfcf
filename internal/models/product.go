package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. Soft-deleted products disappear from listings
// but stay referenceable by historical order items.
type Product struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	Name     string          `gorm:"size:255;not null" json:"name"`
	Category string          `gorm:"size:100;not null" json:"category"`
	Quantity int             `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	Price    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.Quantity > 0
}

// IsDeleted reports whether the product has been soft-deleted.
func (p *Product) IsDeleted() bool {
	return p.DeletedAt.Valid
}
