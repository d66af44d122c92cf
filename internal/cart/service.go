package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avilesdev/storefront-backend/internal/orders"
	"github.com/avilesdev/storefront-backend/pkg/config"
	"github.com/avilesdev/storefront-backend/pkg/db/models"
	"github.com/avilesdev/storefront-backend/pkg/enums"
	pkgerrors "github.com/avilesdev/storefront-backend/pkg/errors"
	"github.com/avilesdev/storefront-backend/pkg/logger"
	"github.com/avilesdev/storefront-backend/pkg/outbox"
	"github.com/avilesdev/storefront-backend/pkg/outbox/payloads"
)

// Fixed client-facing failure strings. The HTTP layer maps all of them to 400.
const (
	productNotFoundMessage = "product not found"
	itemNotInCartMessage   = "item does not exist in cart"
	lowStockMessage        = "low stock"
	missingAddressMessage  = "please enter address"
	cartBusyMessage        = "cart is being modified, retry shortly"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type mutationLocker interface {
	AcquireLock(ctx context.Context, scope string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Service is the cart engine: the single writer of cart items and totals.
type Service interface {
	GetActiveCart(ctx context.Context, userID uuid.UUID, includeProducts bool) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, req UpdateItemRequest) (*CartDTO, error)
	DeleteItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	ClearCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*orders.OrderDTO, error)
}

type service struct {
	repo     CartRepository
	products productLoader
	orders   orders.OrdersRepository
	tx       txRunner
	outbox   outboxPublisher
	locker   mutationLocker
	cfg      config.CartConfig
	logg     *logger.Logger
}

// ServiceParams bundles the dependencies required to build the cart engine.
type ServiceParams struct {
	Repo     CartRepository
	Products productLoader
	Orders   orders.OrdersRepository
	Tx       txRunner
	Outbox   outboxPublisher
	Locker   mutationLocker
	Config   config.CartConfig
	Logger   *logger.Logger
}

// NewService builds the cart engine. Locker is optional; without it mutations
// run unguarded, which single-instance tests rely on.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher is required")
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		orders:   params.Orders,
		tx:       params.Tx,
		outbox:   params.Outbox,
		locker:   params.Locker,
		cfg:      params.Config,
		logg:     params.Logger,
	}, nil
}

func (s *service) GetActiveCart(ctx context.Context, userID uuid.UUID, includeProducts bool) (*CartDTO, error) {
	cart, err := s.ensureActiveCart(ctx, userID, includeProducts)
	if err != nil {
		return nil, err
	}
	return FromModel(cart), nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error) {
	var dto *CartDTO
	err := s.withMutationLease(ctx, userID, func() error {
		cart, err := s.ensureActiveCart(ctx, userID, false)
		if err != nil {
			return err
		}

		if existing := findItem(cart, req.ProductID); existing != nil {
			// Existing lines always grow by one; the request quantity only
			// sizes brand-new lines.
			existing.Quantity++
			if err := s.repo.SaveItem(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment cart item")
			}
		} else {
			quantity := req.Quantity
			if quantity <= 0 {
				quantity = 1
			}
			product, err := s.products.FindByID(ctx, req.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, productNotFoundMessage)
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup product")
			}
			if s.cfg.EnforceStockOnAdd && quantity > product.Stock {
				return pkgerrors.New(pkgerrors.CodeValidation, lowStockMessage)
			}
			item := &models.CartItem{
				CartID:    cart.ID,
				ProductID: product.ID,
				Quantity:  quantity,
				UnitPrice: product.Price,
			}
			if err := s.repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
			}
			cart.Items = append(cart.Items, *item)
		}

		if err := s.persistTotal(ctx, cart); err != nil {
			return err
		}
		dto, err = s.GetActiveCart(ctx, userID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, req UpdateItemRequest) (*CartDTO, error) {
	var dto *CartDTO
	err := s.withMutationLease(ctx, userID, func() error {
		cart, err := s.ensureActiveCart(ctx, userID, false)
		if err != nil {
			return err
		}

		item := findItem(cart, productID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, itemNotInCartMessage)
		}

		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, productNotFoundMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup product")
		}
		if req.Quantity > product.Stock {
			return pkgerrors.New(pkgerrors.CodeValidation, lowStockMessage)
		}

		// Quantity changes keep the snapshot unit price; the live product
		// price never rewrites an existing line.
		item.Quantity = req.Quantity
		if err := s.repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}

		if err := s.persistTotal(ctx, cart); err != nil {
			return err
		}
		dto, err = s.GetActiveCart(ctx, userID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) DeleteItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	var dto *CartDTO
	err := s.withMutationLease(ctx, userID, func() error {
		cart, err := s.ensureActiveCart(ctx, userID, false)
		if err != nil {
			return err
		}

		if findItem(cart, productID) == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, itemNotInCartMessage)
		}
		if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}

		remaining := cart.Items[:0]
		for _, item := range cart.Items {
			if item.ProductID != productID {
				remaining = append(remaining, item)
			}
		}
		cart.Items = remaining

		if err := s.persistTotal(ctx, cart); err != nil {
			return err
		}
		dto, err = s.GetActiveCart(ctx, userID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	var dto *CartDTO
	err := s.withMutationLease(ctx, userID, func() error {
		cart, err := s.ensureActiveCart(ctx, userID, false)
		if err != nil {
			return err
		}

		if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		cart.Items = nil

		if err := s.persistTotal(ctx, cart); err != nil {
			return err
		}
		dto, err = s.GetActiveCart(ctx, userID, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*orders.OrderDTO, error) {
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, missingAddressMessage)
	}

	var dto *orders.OrderDTO
	err := s.withMutationLease(ctx, userID, func() error {
		cart, err := s.ensureActiveCart(ctx, userID, false)
		if err != nil {
			return err
		}

		// Products are re-read only to denormalize title and image onto the
		// order lines. A deleted product aborts the whole checkout; no
		// partial order is ever written.
		orderItems := make([]models.OrderItem, 0, len(cart.Items))
		eventItems := make([]payloads.OrderCreatedItem, 0, len(cart.Items))
		for _, item := range cart.Items {
			product, err := s.products.FindByID(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, productNotFoundMessage)
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup product")
			}
			productID := item.ProductID
			orderItems = append(orderItems, models.OrderItem{
				ProductID:    &productID,
				ProductTitle: product.Title,
				ProductImage: product.Image,
				Quantity:     item.Quantity,
				UnitPrice:    item.UnitPrice,
			})
			eventItems = append(eventItems, payloads.OrderCreatedItem{
				ProductID:    &productID,
				ProductTitle: product.Title,
				Quantity:     item.Quantity,
				UnitPrice:    item.UnitPrice,
			})
		}

		completedAt := time.Now().UTC()
		order := &models.Order{
			UserID:      userID,
			CartID:      cart.ID,
			Address:     address,
			TotalAmount: cart.TotalAmount,
			Items:       orderItems,
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			cartRepo := s.repo.WithTx(tx)
			ordersRepo := s.orders.WithTx(tx)

			if err := ordersRepo.Create(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
			}
			if err := cartRepo.Complete(ctx, cart.ID, completedAt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete cart")
			}

			orderEvent := outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleUser.String()},
				Data: payloads.OrderCreatedEvent{
					OrderID:     order.ID,
					CartID:      cart.ID,
					UserID:      userID,
					TotalAmount: order.TotalAmount,
					Address:     address,
					Items:       eventItems,
				},
				Version: 1,
			}
			// Lifecycle events fire once per aggregate; the dedupe check plus
			// the unique outbox index keep a replayed checkout from queueing
			// duplicates.
			if err := s.outbox.EmitIfNotExists(ctx, tx, orderEvent); err != nil {
				return err
			}

			cartEvent := outbox.DomainEvent{
				EventType:     enums.EventCartCompleted,
				AggregateType: enums.AggregateCart,
				AggregateID:   cart.ID,
				Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleUser.String()},
				Data: payloads.CartCompletedEvent{
					CartID:      cart.ID,
					UserID:      userID,
					OrderID:     order.ID,
					CompletedAt: completedAt,
				},
				Version: 1,
			}
			return s.outbox.EmitIfNotExists(ctx, tx, cartEvent)
		})
		if err != nil {
			return err
		}

		if s.logg != nil {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID.String(),
				"cart_id":  cart.ID.String(),
				"total":    order.TotalAmount.String(),
			}), "cart checked out")
		}
		dto = orders.FromModel(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// ensureActiveCart loads the active cart, lazily creating one. The partial
// unique index on (user_id) WHERE status='active' backstops a create race:
// the loser re-reads the winner's cart.
func (s *service) ensureActiveCart(ctx context.Context, userID uuid.UUID, includeProducts bool) (*models.Cart, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID, includeProducts)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	fresh := &models.Cart{
		UserID:      userID,
		Status:      enums.CartStatusActive,
		TotalAmount: decimal.Zero,
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		if cart, loadErr := s.repo.FindActiveByUser(ctx, userID, includeProducts); loadErr == nil {
			return cart, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return fresh, nil
}

// persistTotal recomputes the derived total from the in-memory lines and
// writes it back, so the invariant holds on every mutation branch.
func (s *service) persistTotal(ctx context.Context, cart *models.Cart) error {
	total := recomputeTotal(cart.Items)
	if err := s.repo.UpdateTotal(ctx, cart.ID, total); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist cart total")
	}
	cart.TotalAmount = total
	return nil
}

func (s *service) withMutationLease(ctx context.Context, userID uuid.UUID, fn func() error) error {
	if s.locker == nil {
		return fn()
	}

	ttl := s.cfg.MutationLockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	release, acquired, err := s.locker.AcquireLock(ctx, "cart:"+userID.String(), ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cart lease")
	}
	if !acquired {
		return pkgerrors.New(pkgerrors.CodeConflict, cartBusyMessage)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "release cart lease failed")
		}
	}()
	return fn()
}

func findItem(cart *models.Cart, productID uuid.UUID) *models.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			return &cart.Items[i]
		}
	}
	return nil
}

func recomputeTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
