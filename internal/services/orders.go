package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/diewo77/sellhub/internal/events"
	"github.com/diewo77/sellhub/internal/models"
	"github.com/diewo77/sellhub/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// publishTimeout bounds event delivery after an order has committed.
const publishTimeout = 5 * time.Second

// OrderItemInput is one requested line of an order. Price is the unit price
// the caller displayed and is stored as-is.
type OrderItemInput struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// ValidateOrderItems reports field-level problems of an order request.
func ValidateOrderItems(items []OrderItemInput) validation.Violations {
	v := validation.Violations{}
	if len(items) == 0 {
		v["items"] = "required"
		return v
	}
	for i, it := range items {
		prefix := fmt.Sprintf("items[%d].", i)
		if it.ProductID == 0 {
			v[prefix+"product_id"] = "required"
		}
		validation.PositiveInt(prefix+"quantity", it.Quantity, v)
		validation.Price(prefix+"price", it.Price, v)
	}
	return v
}

// OrderService places orders and projects them back with derived totals.
type OrderService struct {
	db        *gorm.DB
	publisher events.Publisher
	topic     string
}

// NewOrderService wires the service. A nil publisher discards events.
func NewOrderService(db *gorm.DB, publisher events.Publisher, topic string) *OrderService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if topic == "" {
		topic = events.DefaultOrdersTopic
	}
	return &OrderService{db: db, publisher: publisher, topic: topic}
}

// Create persists the order header, its line items and the stock decrements
// in one transaction, then returns the header alone.
func (s *OrderService) Create(ctx context.Context, items []OrderItemInput) (*models.Order, error) {
	if err := ValidateOrderItems(items).Err(); err != nil {
		return nil, err
	}
	s.warnOnPriceDrift(ctx, items)

	var order models.Order
	lines := make([]models.OrderItem, 0, len(items))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, in := range items {
			line := models.OrderItem{
				OrderID:      order.ID,
				ProductID:    in.ProductID,
				Quantity:     in.Quantity,
				PriceAtOrder: in.Price.Round(2),
			}
			if err := tx.Create(&line).Error; err != nil {
				return fmt.Errorf("insert item %d: %w", i, err)
			}
			lines = append(lines, line)
		}

		// Rows are locked in ascending id order so concurrent orders cannot deadlock.
		for _, adj := range stockAdjustments(items) {
			adjusted, err := decrementStock(tx, adj.productID, adj.quantity)
			if err != nil {
				return fmt.Errorf("adjust stock of product %d: %w", adj.productID, err)
			}
			if !adjusted {
				slog.WarnContext(ctx, "order item references unknown product, stock left untouched",
					"order_id", order.ID, "product_id", adj.productID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	slog.InfoContext(ctx, "order placed", "order_id", order.ID, "lines", len(lines))
	s.publishPlaced(ctx, order, lines)
	return &order, nil
}

type stockAdjustment struct {
	productID uint
	quantity  int
}

// stockAdjustments merges the requested quantities per product, sorted by
// product id. Clamping at zero makes one merged decrement equal to several.
func stockAdjustments(items []OrderItemInput) []stockAdjustment {
	byID := make(map[uint]int, len(items))
	for _, it := range items {
		byID[it.ProductID] += it.Quantity
	}
	out := make([]stockAdjustment, 0, len(byID))
	for id, qty := range byID {
		out = append(out, stockAdjustment{productID: id, quantity: qty})
	}
	slices.SortFunc(out, func(a, b stockAdjustment) int { return cmp.Compare(a.productID, b.productID) })
	return out
}

// decrementStock lowers a product's quantity by n, clamping at zero, in a
// single statement. Soft-deleted products are adjusted too. It reports false
// when no product row has that id.
func decrementStock(tx *gorm.DB, productID uint, n int) (bool, error) {
	res := tx.Unscoped().Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"quantity":   gorm.Expr("CASE WHEN quantity > ? THEN quantity - ? ELSE 0 END", n, n),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// warnOnPriceDrift logs lines whose supplied price differs from the catalog.
// The supplied price is still the one recorded.
func (s *OrderService) warnOnPriceDrift(ctx context.Context, items []OrderItemInput) {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Unscoped().Select("id", "price").Where("id IN ?", ids).Find(&products).Error; err != nil {
		slog.WarnContext(ctx, "price check skipped", "err", err)
		return
	}
	current := make(map[uint]decimal.Decimal, len(products))
	for _, p := range products {
		current[p.ID] = p.Price
	}
	for _, it := range items {
		if price, ok := current[it.ProductID]; ok && !price.Equal(it.Price) {
			slog.WarnContext(ctx, "order price differs from catalog price",
				"product_id", it.ProductID,
				"catalog_price", price.String(),
				"order_price", it.Price.String())
		}
	}
}

func (s *OrderService) publishPlaced(ctx context.Context, order models.Order, lines []models.OrderItem) {
	items := make([]events.OrderPlacedItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, events.OrderPlacedItem{ProductID: l.ProductID, Quantity: l.Quantity, PriceAtOrder: l.PriceAtOrder})
	}
	evt := events.NewOrderPlaced(order.ID, items, order.CreatedAt)

	// The order is committed; a cancelled request must not drop the event.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, s.topic, strconv.FormatUint(uint64(order.ID), 10), evt); err != nil {
		slog.ErrorContext(ctx, "publish order placed", "order_id", order.ID, "topic", s.topic, "err", err)
	}
}

// Header returns the bare order row, as Create does.
func (s *OrderService) Header(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &order, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Projection
// ─────────────────────────────────────────────────────────────────────────────

// Product status values of a projected line item.
const (
	ProductActive  = "active"
	ProductDeleted = "deleted"
	ProductMissing = "missing"
)

// OrderItemView is a line item enriched with its current product. Soft-deleted
// products are still attached; Product is nil only when no row has the id.
type OrderItemView struct {
	models.OrderItem
	Subtotal      decimal.Decimal `json:"subtotal"`
	Product       *models.Product `json:"product"`
	ProductStatus string          `json:"product_status"`
}

// OrderView is an order with its enriched items and derived totals.
type OrderView struct {
	ID          uint            `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Items       []OrderItemView `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalItems  int             `json:"total_items"`
}

func itemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// List returns every non-deleted order, newest first.
func (s *OrderService) List(ctx context.Context) ([]OrderView, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items", itemsByID).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.project(ctx, orders)
}

// Get returns one non-deleted order.
func (s *OrderService) Get(ctx context.Context, id uint) (*OrderView, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items", itemsByID).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	views, err := s.project(ctx, []models.Order{order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *OrderService) project(ctx context.Context, orders []models.Order) ([]OrderView, error) {
	seen := map[uint]bool{}
	var ids []uint
	for _, o := range orders {
		for _, it := range o.Items {
			if !seen[it.ProductID] {
				seen[it.ProductID] = true
				ids = append(ids, it.ProductID)
			}
		}
	}
	products := make(map[uint]*models.Product, len(ids))
	if len(ids) > 0 {
		var found []models.Product
		if err := s.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&found).Error; err != nil {
			return nil, fmt.Errorf("load order products: %w", err)
		}
		for i := range found {
			products[found[i].ID] = &found[i]
		}
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		v := OrderView{
			ID:          o.ID,
			CreatedAt:   o.CreatedAt,
			UpdatedAt:   o.UpdatedAt,
			Items:       make([]OrderItemView, 0, len(o.Items)),
			TotalAmount: o.TotalAmount(),
			TotalItems:  o.TotalItems(),
		}
		for _, it := range o.Items {
			iv := OrderItemView{OrderItem: it, Subtotal: it.LineTotal(), ProductStatus: ProductMissing}
			if p, ok := products[it.ProductID]; ok {
				iv.Product = p
				iv.ProductStatus = ProductActive
				if p.IsDeleted() {
					iv.ProductStatus = ProductDeleted
				}
			}
			v.Items = append(v.Items, iv)
		}
		views = append(views, v)
	}
	return views, nil
}
