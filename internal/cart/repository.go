package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avilesdev/storefront-backend/internal/repo"
	"github.com/avilesdev/storefront-backend/pkg/db/models"
	"github.com/avilesdev/storefront-backend/pkg/enums"
)

// CartRepository abstracts cart persistence so the engine can rebind it to a
// transaction during checkout.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByUser(ctx context.Context, userID uuid.UUID, includeProducts bool) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	CreateItem(ctx context.Context, item *models.CartItem) error
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	UpdateTotal(ctx context.Context, cartID uuid.UUID, total decimal.Decimal) error
	Complete(ctx context.Context, cartID uuid.UUID, completedAt time.Time) error
}

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{Base: repo.NewBase(tx)}
}

// FindActiveByUser loads the user's active cart with its items, oldest line
// first so cart rendering is stable across mutations.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID, includeProducts bool) (*models.Cart, error) {
	query := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.created_at ASC")
		})
	if includeProducts {
		query = query.Preload("Items.Product")
	}

	var cart models.Cart
	err := query.
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	if cart.Status == "" {
		cart.Status = enums.CartStatusActive
	}
	return r.DB(ctx).Create(cart).Error
}

// CreateItem inserts a new cart line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.DB(ctx).Create(item).Error
}

// SaveItem persists quantity changes on an existing line.
func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.DB(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		Update("quantity", item.Quantity).Error
}

// DeleteItem removes a single line from the cart.
func (r *Repository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return r.DB(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{}).Error
}

// DeleteItems removes every line from the cart.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.DB(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// UpdateTotal persists a freshly recomputed cart total.
func (r *Repository) UpdateTotal(ctx context.Context, cartID uuid.UUID, total decimal.Decimal) error {
	return r.DB(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("total_amount", total).Error
}

// Complete flips the cart to completed. The partial unique index on active
// carts frees the user for a fresh cart on next access.
func (r *Repository) Complete(ctx context.Context, cartID uuid.UUID, completedAt time.Time) error {
	return r.DB(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive).
		Updates(map[string]any{
			"status":       enums.CartStatusCompleted,
			"completed_at": completedAt,
		}).Error
}
