package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"restaurant-tab-service/internal/auth"
	"restaurant-tab-service/internal/config"
	"restaurant-tab-service/internal/floor"
	"restaurant-tab-service/internal/http/handlers"
	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/payments"
	"restaurant-tab-service/internal/receipt"
	"restaurant-tab-service/internal/store/memory"
	"restaurant-tab-service/internal/utils"
	"restaurant-tab-service/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	jwtSecret     = "router-secret"
	paymentSecret = "router-payment-secret"
)

type stubProvider struct{}

func (stubProvider) Name() string      { return "stub" }
func (stubProvider) PublicKey() string { return "pk_stub" }

func (stubProvider) CreateOrder(_ context.Context, _ int64, _ string, receipt string) (string, error) {
	return "prov_" + receipt, nil
}

func (stubProvider) Verify(_ context.Context, fields payments.SignatureFields) (bool, error) {
	return utils.VerifyHMACSHA256Hex(paymentSecret, fields.ProviderOrderID+"|"+fields.ProviderPaymentID, fields.Signature), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type harness struct {
	t      *testing.T
	server http.Handler
	staff  string
	admin  string
}

func newHarness(t *testing.T, pinHash string) *harness {
	t.Helper()
	store := memory.New()
	store.PutDish(orders.Dish{ID: 1, Name: "Masala Dosa", Price: decimal.RequireFromString("150.00"), Available: true})
	store.PutDish(orders.Dish{ID: 2, Name: "Filter Coffee", Price: decimal.RequireFromString("75.00"), Available: true})
	store.PutTable(orders.Table{ID: 10, Number: "T10"})

	logger := zap.NewNop()
	engine := orders.NewEngine(store, store, nil, nil, logger)
	h := &handlers.Handler{
		Engine:     engine,
		Reconciler: payments.NewReconciler(store, stubProvider{}, nil, payments.Config{Currency: "INR"}, logger),
		Floor:      floor.NewService(store, store, "Asia/Kolkata", logger),
		Logger:     logger,
		Config:     config.Config{Env: "test", JWTSecret: jwtSecret, VoidPINHash: pinHash},
		Receipt:    receipt.Options{RestaurantName: "Test Kitchen", Currency: "INR", Timezone: "Asia/Kolkata"},
	}

	staff, err := auth.IssueAccessToken("staff-1", auth.RoleStaff, jwtSecret, time.Hour)
	require.NoError(t, err)
	admin, err := auth.IssueAccessToken("admin-1", auth.RoleAdmin, jwtSecret, time.Hour)
	require.NoError(t, err)

	return &harness{t: t, server: NewRouter(h, nil), staff: staff, admin: admin}
}

func (h *harness) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func (h *harness) startTab() orders.OrderResponse {
	h.t.Helper()
	rec, env := h.do(http.MethodPost, "/api/orders", "", map[string]any{
		"tableId": 10,
		"items":   []map[string]any{{"dishId": 1, "quantity": 2}, {"dishId": 2, "quantity": 1}},
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var order orders.OrderResponse
	require.NoError(h.t, json.Unmarshal(env.Data, &order))
	return order
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "")
	rec, _ := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestTabLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, "")
	order := h.startTab()
	assert.Equal(t, orders.StatusOpen, order.Status)
	assert.True(t, decimal.RequireFromString("375.00").Equal(order.TotalPrice))

	rec, env := h.do(http.MethodPost, "/api/orders", "", map[string]any{
		"tableId": 10,
		"items":   []map[string]any{{"dishId": 1, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(orders.KindConflict), env.Error)

	rec, _ = h.do(http.MethodPost, "/api/orders/status/"+order.PublicTrackingID+"/items", "", map[string]any{
		"items": []map[string]any{{"dishId": 2, "quantity": 2}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = h.do(http.MethodGet, "/api/orders/table/10/active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active orders.OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.True(t, decimal.RequireFromString("525.00").Equal(active.TotalPrice))
	assert.Len(t, active.Items, 2)

	rec, env = h.do(http.MethodGet, "/api/orders/status/"+order.PublicTrackingID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), `"id"`)

	rec, _ = h.do(http.MethodGet, "/api/orders/status/"+order.PublicTrackingID+"/bill", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = h.do(http.MethodPut, "/api/orders/status/"+order.PublicTrackingID+"/request-bill", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodGet, "/api/orders/status/"+order.PublicTrackingID+"/bill", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec, env = h.do(http.MethodPost, "/api/orders/status/"+order.PublicTrackingID+"/items", "", map[string]any{
		"items": []map[string]any{{"dishId": 2, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(orders.KindInvalidState), env.Error)

	rec, _ = h.do(http.MethodGet, "/api/orders/table/10/active", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentFlowOverHTTP(t *testing.T) {
	h := newHarness(t, "")
	order := h.startTab()

	rec, env := h.do(http.MethodPost, "/api/payments/intents", "", map[string]any{"trackingId": order.PublicTrackingID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(orders.KindInvalidState), env.Error)

	h.do(http.MethodPut, "/api/orders/status/"+order.PublicTrackingID+"/request-bill", "", nil)

	rec, env = h.do(http.MethodPost, "/api/payments/intents", "", map[string]any{"trackingId": order.PublicTrackingID, "amount": "1.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var intent payments.PaymentIntent
	require.NoError(t, json.Unmarshal(env.Data, &intent))
	assert.Equal(t, int64(37500), intent.AmountMinorUnits)
	assert.Equal(t, "pk_stub", intent.ProviderKey)

	rec, _ = h.do(http.MethodPost, "/api/payments/verify", "", map[string]any{
		"orderId":             order.ID,
		"razorpay_order_id":   intent.ProviderOrderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "bad",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var result payments.VerificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, payments.MessageSignatureInvalid, result.Message)

	signature := utils.HMACSHA256Hex(paymentSecret, intent.ProviderOrderID+"|pay_1")
	rec, _ = h.do(http.MethodPost, "/api/payments/verify", "", map[string]any{
		"orderId":           order.ID,
		"providerOrderId":   intent.ProviderOrderID,
		"providerPaymentId": "pay_1",
		"signature":         signature,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, orders.StatusCompleted, result.Status)
	assert.Equal(t, order.PublicTrackingID, result.PublicTrackingID)
}

func TestCustomerMutationsKeyedByTrackingID(t *testing.T) {
	h := newHarness(t, "")
	order := h.startTab()

	rec, _ := h.do(http.MethodPost, "/api/orders/1/items", "", map[string]any{
		"items": []map[string]any{{"dishId": 2, "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := h.do(http.MethodPost, "/api/orders/status/not-a-tab/items", "", map[string]any{
		"items": []map[string]any{{"dishId": 2, "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(orders.KindNotFound), env.Error)

	rec, _ = h.do(http.MethodPut, "/api/orders/status/not-a-tab/request-bill", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(http.MethodPost, "/api/payments/intents", "", map[string]any{"orderId": order.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = h.do(http.MethodGet, "/api/orders/table/10/active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active orders.OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Len(t, active.Items, 2)
}

func TestStaffRoutesRequireToken(t *testing.T) {
	h := newHarness(t, "")
	h.startTab()

	rec, _ := h.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := h.do(http.MethodGet, "/api/orders?status=OPEN&size=5", h.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page orders.PageResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.TotalElements)
	assert.Equal(t, 5, page.Size)

	rec, env = h.do(http.MethodGet, "/api/orders?status=BOGUS", h.staff, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(orders.KindValidation), env.Error)

	rec, _ = h.do(http.MethodGet, "/api/orders/1", h.staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodGet, "/api/orders/99", h.staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(http.MethodGet, "/api/dashboard/stats", h.staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = h.do(http.MethodGet, "/api/dashboard/stats", h.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats floor.DashboardStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(2), stats.TotalDishes)
	assert.Equal(t, int64(1), stats.TotalTables)
	assert.Equal(t, int64(1), stats.TodayOrders)
}

func TestKitchenAndServiceFlow(t *testing.T) {
	h := newHarness(t, "")
	order := h.startTab()

	rec, env := h.do(http.MethodGet, "/api/orders/kitchen", h.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue []orders.KitchenItem
	require.NoError(t, json.Unmarshal(env.Data, &queue))
	require.Len(t, queue, 2)

	itemID := order.Items[0].ID
	path := "/api/orders/items/" + strconv.FormatInt(itemID, 10) + "/status"

	rec, _ = h.do(http.MethodPut, path, h.staff, map[string]any{"status": "READY"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = h.do(http.MethodPut, path, h.staff, map[string]any{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(orders.KindValidation), env.Error)

	rec, _ = h.do(http.MethodPut, path, h.staff, map[string]any{"status": "SERVED"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = h.do(http.MethodPost, "/api/tables/10/assistance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(http.MethodPost, "/api/tables/77/assistance", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = h.do(http.MethodGet, "/api/service/tasks", h.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks struct {
		ReadyItems       []orders.KitchenItem `json:"readyItems"`
		AssistanceTables []struct {
			TableID int64 `json:"tableId"`
		} `json:"assistanceTables"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	require.Len(t, tasks.ReadyItems, 1)
	assert.Equal(t, itemID, tasks.ReadyItems[0].ItemID)
	require.Len(t, tasks.AssistanceTables, 1)
	assert.Equal(t, int64(10), tasks.AssistanceTables[0].TableID)

	rec, _ = h.do(http.MethodDelete, "/api/service/tables/10/assistance", h.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestManagerPINGuardsBilledTab(t *testing.T) {
	hash, err := auth.HashVoidPIN("2468")
	require.NoError(t, err)
	h := newHarness(t, hash)
	order := h.startTab()

	rec, _ := h.do(http.MethodPut, "/api/orders/status/"+order.PublicTrackingID+"/request-bill", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := h.do(http.MethodPut, "/api/orders/1/status", h.staff, map[string]any{"status": "CANCELLED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "MANAGER_PIN_REQUIRED", env.Error)

	rec, env = h.do(http.MethodPut, "/api/orders/1/status", h.staff, map[string]any{"status": "COMPLETED", "managerPin": "0000"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "MANAGER_PIN_INVALID", env.Error)

	rec, env = h.do(http.MethodPut, "/api/orders/1/status", h.staff, map[string]any{"status": "COMPLETED", "managerPin": "2468"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var completed orders.OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &completed))
	assert.Equal(t, orders.StatusCompleted, completed.Status)

	rec, env = h.do(http.MethodPut, "/api/orders/1/status", h.admin, map[string]any{"status": "CANCELLED"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(orders.KindInvalidState), env.Error)
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	h := newHarness(t, "")
	h.startTab()

	rec, _ := h.do(http.MethodPut, "/api/orders/1/status", h.staff, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := h.do(http.MethodPut, "/api/orders/1/status", h.staff, map[string]any{"status": "OPEN"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(orders.KindValidation), env.Error)

	rec, _ = h.do(http.MethodPut, "/api/orders/abc/status", h.staff, map[string]any{"status": "CANCELLED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(http.MethodPut, "/api/orders/1/status", h.staff, map[string]any{"status": "CANCELLED"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartTabValidation(t *testing.T) {
	h := newHarness(t, "")

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing table", map[string]any{"items": []map[string]any{{"dishId": 1, "quantity": 1}}}, http.StatusBadRequest},
		{"no items", map[string]any{"tableId": 10, "items": []map[string]any{}}, http.StatusUnprocessableEntity},
		{"zero quantity", map[string]any{"tableId": 10, "items": []map[string]any{{"dishId": 1, "quantity": 0}}}, http.StatusUnprocessableEntity},
		{"unknown dish", map[string]any{"tableId": 10, "items": []map[string]any{{"dishId": 9, "quantity": 1}}}, http.StatusNotFound},
		{"unknown table", map[string]any{"tableId": 11, "items": []map[string]any{{"dishId": 1, "quantity": 1}}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := h.do(http.MethodPost, "/api/orders", "", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}


func TestTrackingWebsocketThroughRouter(t *testing.T) {
	store := memory.New()
	store.PutTable(orders.Table{ID: 3, Number: "T3"})
	store.PutDish(orders.Dish{ID: 4, Name: "Lassi", Price: decimal.RequireFromString("90.00"), Available: true})

	logger := zap.NewNop()
	hub := ws.NewHub(logger)
	engine := orders.NewEngine(store, store, hub, nil, logger)
	h := &handlers.Handler{
		Engine: engine,
		Floor:  floor.NewService(store, store, "UTC", logger),
		Logger: logger,
		Config: config.Config{Env: "test", JWTSecret: jwtSecret},
	}
	server := httptest.NewServer(NewRouter(h, ws.NewServer(hub, engine, time.Minute, logger)))
	t.Cleanup(server.Close)

	order, err := engine.StartTab(context.Background(), orders.StartTabRequest{TableID: 3, Items: []orders.ItemRequest{{DishID: 4, Quantity: 1}}})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/orders/" + order.PublicTrackingID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot map[string]any
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "order.state", snapshot["type"])
}

func TestPaymentsDisabledWithoutProvider(t *testing.T) {
	store := memory.New()
	logger := zap.NewNop()
	h := &handlers.Handler{
		Engine: orders.NewEngine(store, store, nil, nil, logger),
		Floor:  floor.NewService(store, store, "UTC", logger),
		Logger: logger,
		Config: config.Config{Env: "test", JWTSecret: jwtSecret},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/payments/intents", strings.NewReader(`{"trackingId":"abc"}`))
	rec := httptest.NewRecorder()
	NewRouter(h, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAYMENTS_DISABLED")
}
