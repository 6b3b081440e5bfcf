package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is an order header. It stores no totals; they are derived from Items.
type Order struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"-"`
}

// OrderItem is one product line of an order. PriceAtOrder is frozen at
// creation and is independent of the product's current price.
//
// ProductID deliberately carries no foreign key: a line item keeps pointing
// at its product id even if that row is gone.
type OrderItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	OrderID      uint            `gorm:"index;not null" json:"order_id"`
	ProductID    uint            `gorm:"index;not null" json:"product_id"`
	Quantity     int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	PriceAtOrder decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price_at_order"`
}

func (OrderItem) TableName() string { return "order_products" }

// LineTotal returns PriceAtOrder × Quantity.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.PriceAtOrder.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// TotalAmount sums the frozen line totals.
func (o *Order) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// TotalItems sums the line quantities.
func (o *Order) TotalItems() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
