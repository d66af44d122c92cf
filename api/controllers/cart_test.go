package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/avilesdev/storefront-backend/api/middleware"
	cartsvc "github.com/avilesdev/storefront-backend/internal/cart"
	ordersvc "github.com/avilesdev/storefront-backend/internal/orders"
	"github.com/avilesdev/storefront-backend/pkg/enums"
	pkgerrors "github.com/avilesdev/storefront-backend/pkg/errors"
)

type stubCartService struct {
	cart    *cartsvc.CartDTO
	order   *ordersvc.OrderDTO
	err     error
	lastAdd cartsvc.AddItemRequest
}

func (s *stubCartService) GetActiveCart(ctx context.Context, userID uuid.UUID, includeProducts bool) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID uuid.UUID, req cartsvc.AddItemRequest) (*cartsvc.CartDTO, error) {
	s.lastAdd = req
	return s.cart, s.err
}

func (s *stubCartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, req cartsvc.UpdateItemRequest) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) DeleteItem(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) ClearCart(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) Checkout(ctx context.Context, userID uuid.UUID, req cartsvc.CheckoutRequest) (*ordersvc.OrderDTO, error) {
	return s.order, s.err
}

func authedRequest(method, target string, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, enums.UserRoleUser.String())
	return req.WithContext(ctx)
}

func decodeErrorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Message
}

func TestCartGetSuccess(t *testing.T) {
	userID := uuid.New()
	cart := &cartsvc.CartDTO{ID: uuid.New(), UserID: userID, Status: enums.CartStatusActive}
	handler := CartGet(&stubCartService{cart: cart}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/cart", "", userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != cart.ID {
		t.Fatalf("unexpected cart id: %s", envelope.Data.ID)
	}
}

func TestCartGetMissingUserContext(t *testing.T) {
	handler := CartGet(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemUnknownProduct(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "product not found")}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":2}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if msg := decodeErrorMessage(t, resp); msg != "product not found" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestCartAddItemRejectsUnknownFields(t *testing.T) {
	handler := CartAddItem(&stubCartService{}, nil)

	body := `{"product_id":"` + uuid.NewString() + `","bogus":true}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartUpdateItemInvalidProductID(t *testing.T) {
	handler := CartUpdateItem(&stubCartService{}, nil)

	req := authedRequest(http.MethodPut, "/api/v1/cart/items/not-a-uuid", `{"quantity":3}`, uuid.New())
	req = withURLParam(req, "productId", "not-a-uuid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartDeleteItemNotInCart(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "item does not exist in cart")}
	handler := CartDeleteItem(svc, nil)

	productID := uuid.NewString()
	req := authedRequest(http.MethodDelete, "/api/v1/cart/items/"+productID, "", uuid.New())
	req = withURLParam(req, "productId", productID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if msg := decodeErrorMessage(t, resp); msg != "item does not exist in cart" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestCartCheckoutMissingAddress(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "please enter address")}
	handler := CartCheckout(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/checkout", `{"address":""}`, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if msg := decodeErrorMessage(t, resp); msg != "please enter address" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestCartCheckoutSuccess(t *testing.T) {
	userID := uuid.New()
	order := &ordersvc.OrderDTO{ID: uuid.New(), UserID: userID, Address: "1 Main St"}
	handler := CartCheckout(&stubCartService{order: order}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/checkout", `{"address":"1 Main St"}`, userID))

	// Conversion responds 200 with the order payload, not 201.
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data ordersvc.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != order.ID {
		t.Fatalf("unexpected order id: %s", envelope.Data.ID)
	}
}

func TestCartBusyMapsToConflict(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeConflict, "cart is being modified, retry shortly")}
	handler := CartClear(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodDelete, "/api/v1/cart", "", uuid.New()))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}
