package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avilesdev/storefront-backend/internal/products"
	"github.com/avilesdev/storefront-backend/pkg/db/models"
	"github.com/avilesdev/storefront-backend/pkg/enums"
)

// CartItemDTO is a single line of the active cart. UnitPrice is the price
// snapshotted when the item was first added, not the product's live price.
type CartItemDTO struct {
	ID        uuid.UUID            `json:"id"`
	ProductID uuid.UUID            `json:"product_id"`
	Quantity  int                  `json:"quantity"`
	UnitPrice decimal.Decimal      `json:"unit_price"`
	LineTotal decimal.Decimal      `json:"line_total"`
	Product   *products.ProductDTO `json:"product,omitempty"`
}

// CartDTO is the cart transport shape.
type CartDTO struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	Status      enums.CartStatus `json:"status"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Items       []CartItemDTO    `json:"items"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// AddItemRequest carries the add-to-cart payload. Quantity applies only when
// the product is not yet in the cart; existing lines always increment by one.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"omitempty,min=1"`
}

// UpdateItemRequest sets the absolute quantity of an existing cart line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CheckoutRequest carries the shipping address for cart conversion.
type CheckoutRequest struct {
	Address string `json:"address"`
}

// FromModel maps a cart row (optionally with preloaded items and products)
// into its transport shape.
func FromModel(c *models.Cart) *CartDTO {
	if c == nil {
		return nil
	}
	items := make([]CartItemDTO, 0, len(c.Items))
	for i := range c.Items {
		item := &c.Items[i]
		items = append(items, CartItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
			Product:   products.FromModel(item.Product),
		})
	}
	return &CartDTO{
		ID:          c.ID,
		UserID:      c.UserID,
		Status:      c.Status,
		TotalAmount: c.TotalAmount,
		Items:       items,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
