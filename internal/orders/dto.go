package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avilesdev/storefront-backend/pkg/db/models"
)

// OrderItemDTO is the denormalized line snapshot returned to clients.
type OrderItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    *uuid.UUID      `json:"product_id,omitempty"`
	ProductTitle string          `json:"product_title"`
	ProductImage string          `json:"product_image"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// OrderDTO is the order transport shape.
type OrderDTO struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	CartID      uuid.UUID       `json:"cart_id"`
	Address     string          `json:"address"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemDTO  `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderListDTO wraps a page of orders plus the cursor for the next page.
type OrderListDTO struct {
	Items      []OrderDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:           item.ID,
			ProductID:    item.ProductID,
			ProductTitle: item.ProductTitle,
			ProductImage: item.ProductImage,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}
	return &OrderDTO{
		ID:          o.ID,
		UserID:      o.UserID,
		CartID:      o.CartID,
		Address:     o.Address,
		TotalAmount: o.TotalAmount,
		Items:       items,
		CreatedAt:   o.CreatedAt,
	}
}

func fromModels(rows []models.Order) []OrderDTO {
	items := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return items
}
