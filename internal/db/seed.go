package db

import (
	"fmt"

	"github.com/diewo77/sellhub/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var demoProducts = []struct {
	name, category, price string
	quantity              int
}{
	{"Wireless Headphones", "Electronics", "79.99", 25},
	{"USB-C Charger", "Electronics", "19.99", 40},
	{"Ceramic Mug", "Kitchen", "9.99", 60},
	{"Chef's Knife", "Kitchen", "49.50", 8},
	{"Cotton T-Shirt", "Apparel", "14.00", 3},
	{"Running Shoes", "Apparel", "89.00", 0},
}

// Seed inserts the demo catalog when no product exists yet, soft-deleted
// rows included. Running it twice is a no-op.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Unscoped().Model(&models.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return nil
	}
	products := make([]models.Product, 0, len(demoProducts))
	for _, p := range demoProducts {
		products = append(products, models.Product{
			Name:     p.name,
			Category: p.category,
			Quantity: p.quantity,
			Price:    decimal.RequireFromString(p.price),
		})
	}
	if err := db.Create(&products).Error; err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	return nil
}
