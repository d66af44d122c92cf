package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avilesdev/storefront-backend/pkg/db/models"
)

// Rating is the denormalized review aggregate carried on product responses.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// ProductDTO is the catalog transport shape.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Brand       *string         `json:"brand,omitempty"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Rating      Rating          `json:"rating"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductListDTO wraps a page of products plus the cursor for the next page.
type ProductListDTO struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// CreateProductRequest carries the admin create payload.
type CreateProductRequest struct {
	Title       string          `json:"title" validate:"required,min=2"`
	Description string          `json:"description"`
	Brand       *string         `json:"brand,omitempty"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	Stock       *int            `json:"stock,omitempty" validate:"omitempty,min=0"`
}

// UpdateProductRequest carries the admin patch payload; nil fields are untouched.
type UpdateProductRequest struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,min=2"`
	Description *string          `json:"description,omitempty"`
	Brand       *string          `json:"brand,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
}

func FromModel(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Brand:       p.Brand,
		Category:    p.Category,
		Image:       p.Image,
		Price:       p.Price,
		Stock:       p.Stock,
		Rating:      Rating{Rate: p.RatingRate, Count: p.RatingCount},
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromModels(rows []models.Product) []ProductDTO {
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return items
}
