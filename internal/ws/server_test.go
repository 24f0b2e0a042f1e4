package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/store/memory"
	"restaurant-tab-service/internal/ws"
)

func setup(t *testing.T) (*orders.Engine, *ws.Hub, *httptest.Server) {
	t.Helper()
	store := memory.New()
	store.PutTable(orders.Table{ID: 1, Number: "T1"})
	store.PutDish(orders.Dish{ID: 2, Name: "Chai", Price: decimal.RequireFromString("25.00"), Available: true})

	hub := ws.NewHub(zap.NewNop())
	engine := orders.NewEngine(store, store, hub, nil, zap.NewNop())
	server := ws.NewServer(hub, engine, time.Minute, zap.NewNop())

	router := chi.NewRouter()
	router.Get("/ws/orders/{trackingId}", server.OrderTrackingWS)
	httpServer := httptest.NewServer(router)
	t.Cleanup(httpServer.Close)
	return engine, hub, httpServer
}

func dial(t *testing.T, server *httptest.Server, trackingID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/orders/" + trackingID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestOrderTrackingStreamsSnapshotAndEvents(t *testing.T) {
	engine, hub, server := setup(t)
	ctx := context.Background()

	order, err := engine.StartTab(ctx, orders.StartTabRequest{TableID: 1, Items: []orders.ItemRequest{{DishID: 2, Quantity: 2}}})
	require.NoError(t, err)

	conn := dial(t, server, order.PublicTrackingID)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot map[string]any
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "order.state", snapshot["type"])
	data := snapshot["data"].(map[string]any)
	assert.Equal(t, "OPEN", data["status"])
	assert.Equal(t, "50", data["totalPrice"])

	require.Eventually(t, func() bool { return hub.Subscribers(order.PublicTrackingID) == 1 }, time.Second, 10*time.Millisecond)

	_, err = engine.RequestBill(ctx, order.ID)
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, string(orders.EventBillRequested), event["type"])
	assert.Equal(t, "AWAITING_PAYMENT", event["status"])
	assert.Equal(t, order.PublicTrackingID, event["trackingId"])
}

func TestOrderTrackingUnknownOrder(t *testing.T) {
	_, hub, server := setup(t)

	conn := dial(t, server, "missing")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var message map[string]any
	require.NoError(t, conn.ReadJSON(&message))
	assert.Equal(t, "error", message["type"])
	assert.Zero(t, hub.Subscribers("missing"))
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := ws.NewHub(nil)
	assert.NotPanics(t, func() {
		hub.Publish(context.Background(), "nobody", map[string]any{"type": "noop"})
		hub.Publish(context.Background(), "", nil)
	})
}

func TestHubDropsSubscriberThatStopsReading(t *testing.T) {
	engine, hub, server := setup(t)
	hub.SetWriteWait(100 * time.Millisecond)
	ctx := context.Background()

	order, err := engine.StartTab(ctx, orders.StartTabRequest{TableID: 1, Items: []orders.ItemRequest{{DishID: 2, Quantity: 1}}})
	require.NoError(t, err)

	// The client never reads, so the server's socket buffers eventually fill.
	_ = dial(t, server, order.PublicTrackingID)
	require.Eventually(t, func() bool { return hub.Subscribers(order.PublicTrackingID) == 1 }, time.Second, 10*time.Millisecond)

	payload := map[string]any{"type": "bulk", "data": strings.Repeat("x", 1<<20)}
	started := time.Now()
	for i := 0; i < 128 && hub.Subscribers(order.PublicTrackingID) > 0; i++ {
		publishStarted := time.Now()
		hub.Publish(ctx, order.PublicTrackingID, payload)
		assert.Less(t, time.Since(publishStarted), 2*time.Second)
	}

	assert.Zero(t, hub.Subscribers(order.PublicTrackingID))
	assert.Less(t, time.Since(started), 20*time.Second)
}
