package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the catalog, cart, order and user repositories so they
// share one way of binding queries to the request context. Transaction-aware
// repositories rebind by constructing a new Base around the tx handle.
type Base struct {
	db *gorm.DB
}

// NewBase wraps a GORM connection (or transaction) for embedding.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to the supplied context. A nil context
// yields the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
