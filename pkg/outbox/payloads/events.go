package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedItem is the line snapshot carried on order events.
type OrderCreatedItem struct {
	ProductID    *uuid.UUID      `json:"product_id,omitempty"`
	ProductTitle string          `json:"product_title"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent signals a cart converted into an order at checkout.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID          `json:"order_id"`
	CartID      uuid.UUID          `json:"cart_id"`
	UserID      uuid.UUID          `json:"user_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Address     string             `json:"address"`
	Items       []OrderCreatedItem `json:"items"`
}

// CartCompletedEvent is emitted alongside order creation for cart consumers.
type CartCompletedEvent struct {
	CartID      uuid.UUID `json:"cart_id"`
	UserID      uuid.UUID `json:"user_id"`
	OrderID     uuid.UUID `json:"order_id"`
	CompletedAt time.Time `json:"completed_at"`
}
