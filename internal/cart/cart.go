// Package cart implements the storefront shopping cart. A Cart is an explicit
// state object: AddItem, RemoveItem, UpdateQuantity and Clear are its customer
// mutators, and Settle removes what a checkout ordered. It never reserves
// inventory.
package cart

import (
	"errors"
	"sync"

	"github.com/diewo77/sellhub/internal/services"
	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 10

var (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = decimal.RequireFromString("50.00")
	// FlatShipping is charged when the subtotal does not exceed the threshold.
	FlatShipping = decimal.RequireFromString("5.99")
)

var (
	ErrLineLimit    = errors.New("line_quantity_limit")
	ErrItemNotFound = errors.New("item_not_in_cart")
	ErrInvalidItem  = errors.New("invalid_item")
)

// Item is a product snapshot taken when it is put in the cart. Price is the
// price shown to the customer and the one sent at checkout.
type Item struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns Price × Quantity.
func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Cart is safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	lines []Item
}

func New() *Cart { return &Cart{} }

// AddItem puts one unit of item in the cart: a new line with quantity 1, or
// one more unit on the existing line.
func (c *Cart) AddItem(item Item) error {
	if item.ProductID == 0 || !item.Price.IsPositive() {
		return ErrInvalidItem
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(item.ProductID); i >= 0 {
		if c.lines[i].Quantity >= MaxLineQuantity {
			return ErrLineLimit
		}
		c.lines[i].Quantity++
		return nil
	}
	item.Quantity = 1
	c.lines = append(c.lines, item)
	return nil
}

// RemoveItem drops the line of productID and reports whether it existed.
func (c *Cart) RemoveItem(productID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (c *Cart) UpdateQuantity(productID uint, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	if quantity > MaxLineQuantity {
		return ErrLineLimit
	}
	c.lines[i].Quantity = quantity
	return nil
}

// Settle takes the ordered snapshot out of the cart. Units added after the
// snapshot was taken stay in the cart.
func (c *Cart) Settle(ordered []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range ordered {
		i := c.index(o.ProductID)
		if i < 0 {
			continue
		}
		if c.lines[i].Quantity <= o.Quantity {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			continue
		}
		c.lines[i].Quantity -= o.Quantity
	}
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) index(productID uint) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) TotalItems() int {
	return Totals(c.Lines()).TotalItems
}

func (c *Cart) Subtotal() decimal.Decimal {
	return Totals(c.Lines()).Subtotal
}

func (c *Cart) Shipping() decimal.Decimal {
	return Totals(c.Lines()).Shipping
}

func (c *Cart) Total() decimal.Decimal {
	return Totals(c.Lines()).Total
}

// Summary is the priced view of a cart.
type Summary struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Total      decimal.Decimal `json:"total"`
}

// Summary prices the current cart content.
func (c *Cart) Summary() Summary {
	return Totals(c.Lines())
}

// Totals prices lines with the flat shipping rule.
func Totals(lines []Item) Summary {
	s := Summary{Items: lines, Subtotal: decimal.Zero}
	if s.Items == nil {
		s.Items = []Item{}
	}
	for _, l := range lines {
		s.TotalItems += l.Quantity
		s.Subtotal = s.Subtotal.Add(l.Subtotal())
	}
	s.Shipping = ShippingFor(s.Subtotal, s.TotalItems)
	s.Total = s.Subtotal.Add(s.Shipping)
	return s
}

// ShippingFor returns the shipping fee: nothing for an empty cart, free above
// FreeShippingThreshold, FlatShipping otherwise.
func ShippingFor(subtotal decimal.Decimal, items int) decimal.Decimal {
	if items == 0 || subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShipping
}

// CheckoutItems converts the cart to an order request.
func (c *Cart) CheckoutItems() []services.OrderItemInput {
	return OrderItems(c.Lines())
}

// OrderItems converts a snapshot of cart lines to an order request.
func OrderItems(lines []Item) []services.OrderItemInput {
	out := make([]services.OrderItemInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, services.OrderItemInput{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	return out
}
