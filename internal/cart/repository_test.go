package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avilesdev/storefront-backend/internal/products"
	"github.com/avilesdev/storefront-backend/pkg/db/models"
	"github.com/avilesdev/storefront-backend/pkg/enums"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  brand TEXT,
  category TEXT NOT NULL DEFAULT '',
  image TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL,
  stock INTEGER NOT NULL DEFAULT 10,
  rating_rate REAL NOT NULL DEFAULT 0,
  rating_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	carts := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  total_amount TEXT NOT NULL DEFAULT '0',
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartItems := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(carts).Error)
	require.NoError(t, db.Exec(cartItems).Error)
	require.NoError(t, db.Exec("DELETE FROM cart_items").Error)
	require.NoError(t, db.Exec("DELETE FROM carts").Error)
	require.NoError(t, db.Exec("DELETE FROM products").Error)
	return db
}

func createCartWithItem(t *testing.T, db *gorm.DB, repo *Repository, userID uuid.UUID) (*models.Cart, *models.Product) {
	t.Helper()
	ctx := context.Background()

	product := &models.Product{
		ID:    uuid.New(),
		Title: "Cotton Jacket",
		Image: "https://cdn.storefront.dev/img/jacket.jpg",
		Price: decimal.RequireFromString("55.99"),
		Stock: 10,
	}
	require.NoError(t, db.Create(product).Error)

	cart := &models.Cart{ID: uuid.New(), UserID: userID, Status: enums.CartStatusActive, TotalAmount: decimal.Zero}
	require.NoError(t, repo.Create(ctx, cart))

	item := &models.CartItem{
		ID:        uuid.New(),
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  2,
		UnitPrice: product.Price,
	}
	require.NoError(t, repo.CreateItem(ctx, item))
	return cart, product
}

func TestCartRepositoryFindActivePreloadsItems(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	_, product := createCartWithItem(t, db, repo, userID)

	loaded, err := repo.FindActiveByUser(context.Background(), userID, true)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, product.ID, loaded.Items[0].ProductID)
	require.NotNil(t, loaded.Items[0].Product)
	assert.Equal(t, "Cotton Jacket", loaded.Items[0].Product.Title)
}

func TestCartRepositoryFindActiveSkipsCompleted(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	cart, _ := createCartWithItem(t, db, repo, userID)

	require.NoError(t, repo.Complete(context.Background(), cart.ID, time.Now().UTC()))

	_, err := repo.FindActiveByUser(context.Background(), userID, false)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestCartRepositoryUpdateTotal(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	cart, _ := createCartWithItem(t, db, repo, userID)

	require.NoError(t, repo.UpdateTotal(context.Background(), cart.ID, decimal.RequireFromString("111.98")))

	loaded, err := repo.FindActiveByUser(context.Background(), userID, false)
	require.NoError(t, err)
	assert.True(t, loaded.TotalAmount.Equal(decimal.RequireFromString("111.98")))
}

func TestCartRepositoryDeleteItemAndItems(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	cart, product := createCartWithItem(t, db, repo, userID)

	require.NoError(t, repo.DeleteItem(ctx, cart.ID, product.ID))
	loaded, err := repo.FindActiveByUser(ctx, userID, false)
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)

	// Clearing an already-empty cart is a no-op.
	require.NoError(t, repo.DeleteItems(ctx, cart.ID))
}

func TestCartRepositoryCompleteOnlyFlipsActive(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	cart, _ := createCartWithItem(t, db, repo, userID)

	completedAt := time.Now().UTC()
	require.NoError(t, repo.Complete(ctx, cart.ID, completedAt))

	var reloaded models.Cart
	require.NoError(t, db.First(&reloaded, "id = ?", cart.ID).Error)
	assert.Equal(t, enums.CartStatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)

	// A second complete finds no active row and changes nothing.
	require.NoError(t, repo.Complete(ctx, cart.ID, completedAt.Add(time.Hour)))
	var again models.Cart
	require.NoError(t, db.First(&again, "id = ?", cart.ID).Error)
	assert.Equal(t, reloaded.CompletedAt.Unix(), again.CompletedAt.Unix())
}

func TestCartRepositoryProductDeletableWhileInCart(t *testing.T) {
	db := setupCartTestDB(t)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	_, product := createCartWithItem(t, db, repo, userID)

	// product_id is a weak reference: removing the catalog row must not
	// touch the cart line or its snapshot price.
	require.NoError(t, products.NewRepository(db).Delete(ctx, product.ID))

	loaded, err := repo.FindActiveByUser(ctx, userID, true)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, product.ID, loaded.Items[0].ProductID)
	assert.True(t, loaded.Items[0].UnitPrice.Equal(decimal.RequireFromString("55.99")))
	assert.Nil(t, loaded.Items[0].Product)
}
