package cart

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avilesdev/storefront-backend/internal/orders"
	"github.com/avilesdev/storefront-backend/pkg/config"
	"github.com/avilesdev/storefront-backend/pkg/db/models"
	"github.com/avilesdev/storefront-backend/pkg/enums"
	pkgerrors "github.com/avilesdev/storefront-backend/pkg/errors"
	"github.com/avilesdev/storefront-backend/pkg/outbox"
	"github.com/avilesdev/storefront-backend/pkg/pagination"
)

type fakeCartRepo struct {
	carts map[uuid.UUID]*models.Cart
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: map[uuid.UUID]*models.Cart{}}
}

func (f *fakeCartRepo) WithTx(_ *gorm.DB) CartRepository { return f }

func (f *fakeCartRepo) activeFor(userID uuid.UUID) *models.Cart {
	for _, cart := range f.carts {
		if cart.UserID == userID && cart.Status == enums.CartStatusActive {
			return cart
		}
	}
	return nil
}

func cloneCart(cart *models.Cart) *models.Cart {
	clone := *cart
	clone.Items = append([]models.CartItem(nil), cart.Items...)
	return &clone
}

func (f *fakeCartRepo) FindActiveByUser(_ context.Context, userID uuid.UUID, _ bool) (*models.Cart, error) {
	if cart := f.activeFor(userID); cart != nil {
		return cloneCart(cart), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartRepo) Create(_ context.Context, cart *models.Cart) error {
	if f.activeFor(cart.UserID) != nil {
		return fmt.Errorf("duplicate active cart for user %s", cart.UserID)
	}
	cart.ID = uuid.New()
	f.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (f *fakeCartRepo) CreateItem(_ context.Context, item *models.CartItem) error {
	cart, ok := f.carts[item.CartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	item.ID = uuid.New()
	cart.Items = append(cart.Items, *item)
	return nil
}

func (f *fakeCartRepo) SaveItem(_ context.Context, item *models.CartItem) error {
	for _, cart := range f.carts {
		for i := range cart.Items {
			if cart.Items[i].ID == item.ID {
				cart.Items[i].Quantity = item.Quantity
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeCartRepo) DeleteItem(_ context.Context, cartID, productID uuid.UUID) error {
	cart, ok := f.carts[cartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	remaining := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			remaining = append(remaining, item)
		}
	}
	cart.Items = remaining
	return nil
}

func (f *fakeCartRepo) DeleteItems(_ context.Context, cartID uuid.UUID) error {
	cart, ok := f.carts[cartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cart.Items = nil
	return nil
}

func (f *fakeCartRepo) UpdateTotal(_ context.Context, cartID uuid.UUID, total decimal.Decimal) error {
	cart, ok := f.carts[cartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cart.TotalAmount = total
	return nil
}

func (f *fakeCartRepo) Complete(_ context.Context, cartID uuid.UUID, completedAt time.Time) error {
	cart, ok := f.carts[cartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	when := completedAt
	cart.Status = enums.CartStatusCompleted
	cart.CompletedAt = &when
	return nil
}

type fakeProductStore struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeProductStore) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *product
	return &clone, nil
}

func (f *fakeProductStore) add(price string, stock int) *models.Product {
	product := &models.Product{
		ID:    uuid.New(),
		Title: fmt.Sprintf("product-%d", len(f.products)+1),
		Image: "https://cdn.storefront.dev/img/test.jpg",
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	f.products[product.ID] = product
	return product
}

type fakeOrdersRepo struct {
	created []*models.Order
}

func (f *fakeOrdersRepo) WithTx(_ *gorm.DB) orders.OrdersRepository { return f }

func (f *fakeOrdersRepo) Create(_ context.Context, order *models.Order) error {
	order.ID = uuid.New()
	f.created = append(f.created, order)
	return nil
}

func (f *fakeOrdersRepo) ListByUser(_ context.Context, _ uuid.UUID, _ int, _ *pagination.Cursor) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) FindByIDForUser(_ context.Context, _, _ uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, queued := range f.events {
		if queued.EventType == event.EventType &&
			queued.AggregateType == event.AggregateType &&
			queued.AggregateID == event.AggregateID {
			return nil
		}
	}
	return f.Emit(ctx, tx, event)
}

type fakeLocker struct {
	acquired bool
	released int
}

func (f *fakeLocker) AcquireLock(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, bool, error) {
	if !f.acquired {
		return nil, false, nil
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, true, nil
}

type cartFixture struct {
	svc      Service
	repo     *fakeCartRepo
	products *fakeProductStore
	orders   *fakeOrdersRepo
	outbox   *fakeOutbox
}

func newCartFixture(t *testing.T, cfg config.CartConfig) *cartFixture {
	t.Helper()

	fx := &cartFixture{
		repo:     newFakeCartRepo(),
		products: &fakeProductStore{products: map[uuid.UUID]*models.Product{}},
		orders:   &fakeOrdersRepo{},
		outbox:   &fakeOutbox{},
	}
	svc, err := NewService(ServiceParams{
		Repo:     fx.repo,
		Products: fx.products,
		Orders:   fx.orders,
		Tx:       fakeTxRunner{},
		Outbox:   fx.outbox,
		Config:   cfg,
	})
	require.NoError(t, err)
	fx.svc = svc
	return fx
}

func requireValidationError(t *testing.T, err error, message string) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, message, typed.Message())
}

func TestGetActiveCartLazyCreates(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()

	first, err := fx.svc.GetActiveCart(context.Background(), userID, false)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusActive, first.Status)
	assert.Empty(t, first.Items)
	assert.True(t, first.TotalAmount.IsZero())

	second, err := fx.svc.GetActiveCart(context.Background(), userID, true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "a second access must reuse the existing active cart")
	assert.Len(t, fx.repo.carts, 1)
}

func TestClearCartIdempotent(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	product := fx.products.add("10.00", 10)

	_, err := fx.svc.AddItem(context.Background(), userID, AddItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	cleared, err := fx.svc.ClearCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)
	assert.True(t, cleared.TotalAmount.IsZero())
	assert.Equal(t, enums.CartStatusActive, cleared.Status)

	again, err := fx.svc.ClearCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, again.Items)
	assert.True(t, again.TotalAmount.IsZero())
}

func TestTotalMatchesLinesAfterEveryMutation(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	ctx := context.Background()
	p1 := fx.products.add("10.00", 100)
	p2 := fx.products.add("3.50", 100)

	checkTotal := func(dto *CartDTO) {
		t.Helper()
		expected := decimal.Zero
		for _, item := range dto.Items {
			expected = expected.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		assert.True(t, dto.TotalAmount.Equal(expected),
			"total %s != sum of lines %s", dto.TotalAmount, expected)
	}

	dto, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: p1.ID, Quantity: 2})
	require.NoError(t, err)
	checkTotal(dto)
	assert.True(t, dto.TotalAmount.Equal(decimal.RequireFromString("20.00")))

	dto, err = fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: p2.ID, Quantity: 3})
	require.NoError(t, err)
	checkTotal(dto)

	// Increment branch must recompute too.
	dto, err = fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: p1.ID, Quantity: 99})
	require.NoError(t, err)
	checkTotal(dto)
	assert.True(t, dto.TotalAmount.Equal(decimal.RequireFromString("40.50")))

	dto, err = fx.svc.UpdateItem(ctx, userID, p1.ID, UpdateItemRequest{Quantity: 5})
	require.NoError(t, err)
	checkTotal(dto)

	dto, err = fx.svc.DeleteItem(ctx, userID, p2.ID)
	require.NoError(t, err)
	checkTotal(dto)
	assert.True(t, dto.TotalAmount.Equal(decimal.RequireFromString("50.00")))
}

func TestAddExistingItemIncrementsByOne(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	ctx := context.Background()
	product := fx.products.add("10.00", 10)

	_, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	dto, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: product.ID, Quantity: 5})
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, 3, dto.Items[0].Quantity, "existing lines grow by exactly one, whatever quantity was sent")
}

func TestAddItemUnknownProduct(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})

	_, err := fx.svc.AddItem(context.Background(), uuid.New(), AddItemRequest{ProductID: uuid.New(), Quantity: 1})
	requireValidationError(t, err, "product not found")
}

func TestAddItemStockNotEnforcedByDefault(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	product := fx.products.add("10.00", 2)

	dto, err := fx.svc.AddItem(context.Background(), uuid.New(), AddItemRequest{ProductID: product.ID, Quantity: 50})
	require.NoError(t, err)
	assert.Equal(t, 50, dto.Items[0].Quantity)
}

func TestAddItemStockEnforcedWhenConfigured(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{EnforceStockOnAdd: true})
	product := fx.products.add("10.00", 2)

	_, err := fx.svc.AddItem(context.Background(), uuid.New(), AddItemRequest{ProductID: product.ID, Quantity: 50})
	requireValidationError(t, err, "low stock")
}

func TestUpdateItemValidationOrder(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	ctx := context.Background()
	inCart := fx.products.add("10.00", 10)
	notInCart := fx.products.add("5.00", 10)

	_, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: inCart.ID, Quantity: 1})
	require.NoError(t, err)

	// A catalog product that is not a cart line is still "not in cart".
	_, err = fx.svc.UpdateItem(ctx, userID, notInCart.ID, UpdateItemRequest{Quantity: 1})
	requireValidationError(t, err, "item does not exist in cart")

	_, err = fx.svc.UpdateItem(ctx, userID, inCart.ID, UpdateItemRequest{Quantity: 999})
	requireValidationError(t, err, "low stock")
}

func TestUpdateItemDanglingProduct(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	ctx := context.Background()
	product := fx.products.add("10.00", 10)

	_, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	delete(fx.products.products, product.ID)
	_, err = fx.svc.UpdateItem(ctx, userID, product.ID, UpdateItemRequest{Quantity: 2})
	requireValidationError(t, err, "product not found")
}

func TestUpdateItemKeepsSnapshotPrice(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	ctx := context.Background()
	product := fx.products.add("10.00", 10)

	_, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	// Catalog price changes must not rewrite existing lines.
	fx.products.products[product.ID].Price = decimal.RequireFromString("99.99")

	dto, err := fx.svc.UpdateItem(ctx, userID, product.ID, UpdateItemRequest{Quantity: 4})
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.True(t, dto.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, dto.TotalAmount.Equal(decimal.RequireFromString("40.00")))
}

func TestDeleteItemNotInCart(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})

	_, err := fx.svc.DeleteItem(context.Background(), uuid.New(), uuid.New())
	requireValidationError(t, err, "item does not exist in cart")
}

func TestCheckoutSnapshot(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	ctx := context.Background()
	product := fx.products.add("10.00", 10)

	cartDTO, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	order, err := fx.svc.Checkout(ctx, userID, CheckoutRequest{Address: "123 Main St"})
	require.NoError(t, err)

	assert.Equal(t, userID, order.UserID)
	assert.Equal(t, cartDTO.ID, order.CartID)
	assert.Equal(t, "123 Main St", order.Address)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("20.00")))
	require.Len(t, order.Items, 1)
	assert.Equal(t, product.Title, order.Items[0].ProductTitle)
	assert.Equal(t, product.Image, order.Items[0].ProductImage)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))

	source := fx.repo.carts[cartDTO.ID]
	require.NotNil(t, source)
	assert.Equal(t, enums.CartStatusCompleted, source.Status)
	assert.NotNil(t, source.CompletedAt)

	require.Len(t, fx.outbox.events, 2)
	assert.Equal(t, enums.EventOrderCreated, fx.outbox.events[0].EventType)
	assert.Equal(t, enums.EventCartCompleted, fx.outbox.events[1].EventType)

	// A fresh active cart appears lazily on next access.
	next, err := fx.svc.GetActiveCart(ctx, userID, false)
	require.NoError(t, err)
	assert.NotEqual(t, cartDTO.ID, next.ID)
	assert.Empty(t, next.Items)
}

func TestCheckoutMissingAddress(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	ctx := context.Background()
	product := fx.products.add("10.00", 10)

	cartDTO, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = fx.svc.Checkout(ctx, userID, CheckoutRequest{Address: "   "})
	requireValidationError(t, err, "please enter address")

	assert.Empty(t, fx.orders.created, "no order may be written on a rejected checkout")
	assert.Empty(t, fx.outbox.events)
	assert.Equal(t, enums.CartStatusActive, fx.repo.carts[cartDTO.ID].Status)
}

func TestCheckoutDanglingProduct(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	userID := uuid.New()
	ctx := context.Background()
	product := fx.products.add("10.00", 10)

	cartDTO, err := fx.svc.AddItem(ctx, userID, AddItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	delete(fx.products.products, product.ID)

	_, err = fx.svc.Checkout(ctx, userID, CheckoutRequest{Address: "123 Main St"})
	requireValidationError(t, err, "product not found")

	assert.Empty(t, fx.orders.created)
	assert.Empty(t, fx.outbox.events)
	assert.Equal(t, enums.CartStatusActive, fx.repo.carts[cartDTO.ID].Status)
}

func TestMutationLeaseBlocksConcurrentWriter(t *testing.T) {
	fx := newCartFixture(t, config.CartConfig{})
	locker := &fakeLocker{acquired: false}

	svc, err := NewService(ServiceParams{
		Repo:     fx.repo,
		Products: fx.products,
		Orders:   fx.orders,
		Tx:       fakeTxRunner{},
		Outbox:   fx.outbox,
		Locker:   locker,
		Config:   config.CartConfig{MutationLockTTL: time.Second},
	})
	require.NoError(t, err)

	product := fx.products.add("10.00", 10)
	_, err = svc.AddItem(context.Background(), uuid.New(), AddItemRequest{ProductID: product.ID, Quantity: 1})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	locker.acquired = true
	_, err = svc.AddItem(context.Background(), uuid.New(), AddItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released, "the lease must be released after the mutation")
}
