// Package events publishes domain events to a message broker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultOrdersTopic is the topic OrderPlaced events are written to.
const DefaultOrdersTopic = "orders.placed"

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

// OrderPlacedItem is one line of an OrderPlaced event.
type OrderPlacedItem struct {
	ProductID    uint            `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"price_at_order"`
}

// OrderPlaced is emitted once an order transaction has committed.
type OrderPlaced struct {
	EventID     string            `json:"event_id"`
	OrderID     uint              `json:"order_id"`
	Items       []OrderPlacedItem `json:"items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	TotalItems  int               `json:"total_items"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// NewOrderPlaced builds the event and computes its totals from items.
func NewOrderPlaced(orderID uint, items []OrderPlacedItem, at time.Time) OrderPlaced {
	total := decimal.Zero
	count := 0
	for _, it := range items {
		total = total.Add(it.PriceAtOrder.Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}
	return OrderPlaced{
		EventID:     uuid.NewString(),
		OrderID:     orderID,
		Items:       items,
		TotalAmount: total,
		TotalItems:  count,
		OccurredAt:  at.UTC(),
	}
}

// NoopPublisher discards every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
