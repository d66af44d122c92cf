package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avilesdev/storefront-backend/pkg/enums"
)

// Cart holds a user's in-progress selection. A user has at most one active
// cart; completed carts are retained for audit.
type Cart struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status      enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	TotalAmount decimal.Decimal  `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	CompletedAt *time.Time       `gorm:"column:completed_at"`
	Items       []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
