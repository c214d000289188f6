package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/sweet-shop/internal/app/handlers"
	"github.com/linemk/sweet-shop/internal/domain/models"
	"github.com/linemk/sweet-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/sweet-shop/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeAuthService — фиктивная реализация для тестирования.
type fakeAuthService struct {
	token string
	user  *models.User
	users []*models.User
	err   error
}

func (f *fakeAuthService) Register(ctx context.Context, email, password string) (string, *models.User, error) {
	return f.token, f.user, f.err
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	return f.token, f.user, f.err
}

func (f *fakeAuthService) Me(ctx context.Context, caller models.Caller) (*models.User, error) {
	return f.user, f.err
}

func (f *fakeAuthService) ListUsers(ctx context.Context, caller models.Caller) ([]*models.User, error) {
	return f.users, f.err
}

// fakeOrderService запоминает последний вызов
type fakeOrderService struct {
	order   *models.Order
	orders  []*models.Order
	err     error
	caller  models.Caller
	items   []service.LineRequest
	orderID int64
	status  string
}

func (f *fakeOrderService) PlaceOrder(ctx context.Context, caller models.Caller, items []service.LineRequest) (*models.Order, error) {
	f.caller, f.items = caller, items
	return f.order, f.err
}

func (f *fakeOrderService) ListOrders(ctx context.Context, caller models.Caller) ([]*models.Order, error) {
	f.caller = caller
	return f.orders, f.err
}

func (f *fakeOrderService) GetOrder(ctx context.Context, caller models.Caller, orderID int64) (*models.Order, error) {
	f.caller, f.orderID = caller, orderID
	return f.order, f.err
}

func (f *fakeOrderService) SetOrderStatus(ctx context.Context, caller models.Caller, orderID int64, status string) (*models.Order, error) {
	f.caller, f.orderID, f.status = caller, orderID, status
	return f.order, f.err
}

type fakeCatalogService struct {
	sweet *models.Sweet
	err   error
	patch service.SweetPatch
}

func (f *fakeCatalogService) ListSweets(ctx context.Context) ([]*models.Sweet, error) {
	if f.sweet == nil {
		return []*models.Sweet{}, f.err
	}
	return []*models.Sweet{f.sweet}, f.err
}

func (f *fakeCatalogService) GetSweet(ctx context.Context, id int64) (*models.Sweet, error) {
	return f.sweet, f.err
}

func (f *fakeCatalogService) CreateSweet(ctx context.Context, caller models.Caller, in service.SweetInput) (*models.Sweet, error) {
	return f.sweet, f.err
}

func (f *fakeCatalogService) UpdateSweet(ctx context.Context, caller models.Caller, id int64, patch service.SweetPatch) (*models.Sweet, error) {
	f.patch = patch
	return f.sweet, f.err
}

func (f *fakeCatalogService) DeleteSweet(ctx context.Context, caller models.Caller, id int64) error {
	return f.err
}

// withCaller эмулирует JWT middleware и chi роутер
func withCaller(req *http.Request, caller models.Caller, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, jwtmiddleware.CallerKey, caller)
	return req.WithContext(ctx)
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handlers.ErrorResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Detail
}

func TestRegisterHandler_Success(t *testing.T) {
	fakeSvc := &fakeAuthService{token: "test-token", user: &models.User{ID: 1, IsAdmin: true}}
	handler := handlers.RegisterHandler(logger, fakeSvc)

	reqBody := `{"email": "test@example.com", "password": "password123"}`
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp handlers.TokenResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "test-token", resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "admin", resp.UserRole)
}

func TestRegisterHandler_ValidationError(t *testing.T) {
	handler := handlers.RegisterHandler(logger, &fakeAuthService{})

	for _, body := range []string{
		`{"email": "test@example.com", "password": "short"}`,
		`{"email": "not-an-email", "password": "password123"}`,
		`{"email": "test@example.com", "password":`,
	} {
		req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestRegisterHandler_EmailTaken(t *testing.T) {
	fakeSvc := &fakeAuthService{err: fmt.Errorf("auth.Register: %w", service.ErrUserExists)}
	handler := handlers.RegisterHandler(logger, fakeSvc)

	req := httptest.NewRequest("POST", "/api/auth/register",
		bytes.NewBufferString(`{"email": "test@example.com", "password": "password123"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, service.ErrUserExists.Error(), decodeDetail(t, rr))
}

func TestTokenHandler_Form(t *testing.T) {
	fakeSvc := &fakeAuthService{token: "test-token", user: &models.User{ID: 2}}
	handler := handlers.TokenHandler(logger, fakeSvc)

	form := url.Values{"username": {"user@example.com"}, "password": {"password123"}}
	req := httptest.NewRequest("POST", "/api/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp handlers.TokenResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "user", resp.UserRole)
}

func TestTokenHandler_WrongPassword(t *testing.T) {
	fakeSvc := &fakeAuthService{err: fmt.Errorf("auth.Login: %w", service.ErrInvalidCredentials)}
	handler := handlers.TokenHandler(logger, fakeSvc)

	req := httptest.NewRequest("POST", "/api/auth/token",
		bytes.NewBufferString(`{"email": "test@example.com", "password": "password123"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
}

func TestMeHandler(t *testing.T) {
	fakeSvc := &fakeAuthService{user: &models.User{ID: 3, Email: "me@example.com", IsActive: true}}
	handler := handlers.MeHandler(logger, fakeSvc)

	req := withCaller(httptest.NewRequest("GET", "/api/user/me", nil), models.Caller{UserID: 3}, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp handlers.UserResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "me@example.com", resp.Email)
}

func TestListUsersHandler(t *testing.T) {
	fakeSvc := &fakeAuthService{users: []*models.User{
		{ID: 1, Email: "admin@example.com", PassHash: []byte("secret-hash"), IsAdmin: true, IsActive: true},
		{ID: 2, Email: "user@example.com", PassHash: []byte("secret-hash"), IsActive: true},
	}}
	handler := handlers.ListUsersHandler(logger, fakeSvc)

	req := withCaller(httptest.NewRequest("GET", "/api/user/all", nil), models.Caller{UserID: 1, IsAdmin: true}, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
	var resp []handlers.UserResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp, 2)
	assert.True(t, resp[0].IsAdmin)
	assert.Equal(t, "user@example.com", resp[1].Email)
}

func TestListUsersHandler_Forbidden(t *testing.T) {
	fakeSvc := &fakeAuthService{err: fmt.Errorf("auth.ListUsers: %w", service.ErrForbidden)}
	handler := handlers.ListUsersHandler(logger, fakeSvc)

	req := withCaller(httptest.NewRequest("GET", "/api/user/all", nil), models.Caller{UserID: 2}, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeDetail(t, rr))
}

func TestCreateOrderHandler_Success(t *testing.T) {
	order := &models.Order{
		ID:         5,
		OwnerID:    10,
		Status:     models.StatusPending,
		TotalPrice: decimal.RequireFromString("55.00"),
		Items: []models.OrderItem{
			{ID: 1, OrderID: 5, SweetID: 1, SweetName: "Fudge", Quantity: 10, PriceAtPurchase: decimal.RequireFromString("5.50")},
		},
	}
	fakeSvc := &fakeOrderService{order: order}
	handler := handlers.CreateOrderHandler(logger, fakeSvc)

	body := `{"items": [{"sweet_id": 1, "quantity": 10}]}`
	req := withCaller(httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(body)), models.Caller{UserID: 10}, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int64(10), fakeSvc.caller.UserID)
	assert.Equal(t, []service.LineRequest{{SweetID: 1, Quantity: 10}}, fakeSvc.items)

	var resp models.Order
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, models.StatusPending, resp.Status)
	assert.True(t, order.TotalPrice.Equal(resp.TotalPrice))
	assert.Equal(t, "Fudge", resp.Items[0].SweetName)
}

func TestCreateOrderHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "empty order",
			body:       `{"items": []}`,
			err:        fmt.Errorf("op: %w", service.ErrEmptyOrder),
			wantStatus: http.StatusBadRequest,
			wantDetail: service.ErrEmptyOrder.Error(),
		},
		{
			name:       "zero quantity rejected by validator",
			body:       `{"items": [{"sweet_id": 1, "quantity": 0}]}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "validation error",
		},
		{
			name:       "insufficient stock",
			body:       `{"items": [{"sweet_id": 1, "quantity": 6}]}`,
			err:        fmt.Errorf("op: %w", &service.InsufficientStockError{SweetID: 1, Name: "Fudge", Requested: 6, Available: 5}),
			wantStatus: http.StatusBadRequest,
			wantDetail: "insufficient stock for Fudge: requested 6, available 5",
		},
		{
			name:       "unknown sweet",
			body:       `{"items": [{"sweet_id": 99999, "quantity": 1}]}`,
			err:        fmt.Errorf("op: %w", &service.ProductUnavailableError{SweetID: 99999}),
			wantStatus: http.StatusNotFound,
			wantDetail: "sweet with ID 99999 not found or unavailable",
		},
		{
			name:       "storage failure hides details",
			body:       `{"items": [{"sweet_id": 1, "quantity": 1}]}`,
			err:        fmt.Errorf("op: %w: %w", service.ErrStorageFailure, fmt.Errorf("pq: connection refused")),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.CreateOrderHandler(logger, &fakeOrderService{err: tt.err})
			req := withCaller(httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(tt.body)), models.Caller{UserID: 1}, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantDetail, decodeDetail(t, rr))
		})
	}
}

func TestCreateOrderHandler_MissingCaller(t *testing.T) {
	handler := handlers.CreateOrderHandler(logger, &fakeOrderService{})
	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString(`{"items": []}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetOrderHandler(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		err        error
		wantStatus int
	}{
		{name: "found", id: "5", wantStatus: http.StatusOK},
		{name: "bad id", id: "abc", wantStatus: http.StatusBadRequest},
		{name: "not found", id: "5", err: fmt.Errorf("op: %w", service.ErrOrderNotFound), wantStatus: http.StatusNotFound},
		{name: "not owner", id: "5", err: fmt.Errorf("op: %w", service.ErrForbidden), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeSvc := &fakeOrderService{order: &models.Order{ID: 5}, err: tt.err}
			handler := handlers.GetOrderHandler(logger, fakeSvc)

			req := withCaller(httptest.NewRequest("GET", "/api/orders/"+tt.id, nil), models.Caller{UserID: 1}, map[string]string{"id": tt.id})
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, int64(5), fakeSvc.orderID)
			}
		})
	}
}

func TestListOrdersHandler(t *testing.T) {
	fakeSvc := &fakeOrderService{orders: []*models.Order{{ID: 1, OwnerEmail: "a@example.com"}, {ID: 2}}}
	handler := handlers.ListOrdersHandler(logger, fakeSvc)

	req := withCaller(httptest.NewRequest("GET", "/api/orders", nil), models.Caller{UserID: 1, IsAdmin: true}, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, fakeSvc.caller.IsAdmin)

	var resp []map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp, 2)
	assert.Equal(t, "a@example.com", resp[0]["user_email"])
	_, hasEmail := resp[1]["user_email"]
	assert.False(t, hasEmail)
}

func TestUpdateOrderStatusHandler(t *testing.T) {
	fakeSvc := &fakeOrderService{order: &models.Order{ID: 5, Status: models.StatusCancelled}}
	handler := handlers.UpdateOrderStatusHandler(logger, fakeSvc)

	req := withCaller(httptest.NewRequest("PATCH", "/api/orders/5/status", bytes.NewBufferString(`{"status": "cancelled"}`)),
		models.Caller{UserID: 1, IsAdmin: true}, map[string]string{"id": "5"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cancelled", fakeSvc.status)
	assert.Equal(t, int64(5), fakeSvc.orderID)
}

func TestUpdateOrderStatusHandler_InvalidStatus(t *testing.T) {
	fakeSvc := &fakeOrderService{err: fmt.Errorf("op: %w", service.ErrInvalidStatus)}
	handler := handlers.UpdateOrderStatusHandler(logger, fakeSvc)

	req := withCaller(httptest.NewRequest("PATCH", "/api/orders/5/status", bytes.NewBufferString(`{"status": "Teleported"}`)),
		models.Caller{UserID: 1, IsAdmin: true}, map[string]string{"id": "5"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSweetHandlers(t *testing.T) {
	fudge := &models.Sweet{ID: 1, Name: "Fudge", Price: decimal.RequireFromString("5.50"), StockQuantity: 10, IsAvailable: true}
	admin := models.Caller{UserID: 1, IsAdmin: true}

	t.Run("list", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handlers.ListSweetsHandler(logger, &fakeCatalogService{sweet: fudge}).
			ServeHTTP(rr, httptest.NewRequest("GET", "/api/sweets", nil))
		assert.Equal(t, http.StatusOK, rr.Code)

		var resp []models.Sweet
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "Fudge", resp[0].Name)
	})

	t.Run("create", func(t *testing.T) {
		body := `{"name": "Fudge", "category": "Candy", "price": "5.50", "stock_quantity": 10}`
		req := withCaller(httptest.NewRequest("POST", "/api/sweets", bytes.NewBufferString(body)), admin, nil)
		rr := httptest.NewRecorder()
		handlers.CreateSweetHandler(logger, &fakeCatalogService{sweet: fudge}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("create duplicate", func(t *testing.T) {
		body := `{"name": "Fudge", "category": "Candy", "price": 5.5, "stock_quantity": 10}`
		req := withCaller(httptest.NewRequest("POST", "/api/sweets", bytes.NewBufferString(body)), admin, nil)
		rr := httptest.NewRecorder()
		handlers.CreateSweetHandler(logger, &fakeCatalogService{err: fmt.Errorf("op: %w", service.ErrSweetExists)}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("partial update", func(t *testing.T) {
		fakeSvc := &fakeCatalogService{sweet: fudge}
		req := withCaller(httptest.NewRequest("PUT", "/api/sweets/1", bytes.NewBufferString(`{"stock_quantity": 25}`)),
			admin, map[string]string{"id": "1"})
		rr := httptest.NewRecorder()
		handlers.UpdateSweetHandler(logger, fakeSvc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotNil(t, fakeSvc.patch.StockQuantity)
		assert.Equal(t, 25, *fakeSvc.patch.StockQuantity)
		assert.Nil(t, fakeSvc.patch.Name)
		assert.Nil(t, fakeSvc.patch.Price)
	})

	t.Run("delete referenced", func(t *testing.T) {
		req := withCaller(httptest.NewRequest("DELETE", "/api/sweets/1", nil), admin, map[string]string{"id": "1"})
		rr := httptest.NewRecorder()
		handlers.DeleteSweetHandler(logger, &fakeCatalogService{err: fmt.Errorf("op: %w", service.ErrSweetInUse)}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req := withCaller(httptest.NewRequest("DELETE", "/api/sweets/1", nil), admin, map[string]string{"id": "1"})
		rr := httptest.NewRecorder()
		handlers.DeleteSweetHandler(logger, &fakeCatalogService{}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("get missing", func(t *testing.T) {
		req := withCaller(httptest.NewRequest("GET", "/api/sweets/9", nil), models.Caller{}, map[string]string{"id": "9"})
		rr := httptest.NewRecorder()
		handlers.GetSweetHandler(logger, &fakeCatalogService{err: fmt.Errorf("op: %w", service.ErrSweetNotFound)}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
