package receipt

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/store/memory"
)

func completedOrder() *orders.Order {
	paymentID := "pay_77"
	order := &orders.Order{
		ID:                77,
		PublicTrackingID:  "trk-77",
		TableNumber:       "T4",
		Status:            orders.StatusCompleted,
		OrderTime:         time.Date(2026, 5, 2, 13, 0, 0, 0, time.UTC),
		ProviderPaymentID: &paymentID,
		Items: []orders.OrderItem{
			{DishName: "Chole Bhature", Quantity: 2, UnitPrice: decimal.NullDecimal{Decimal: decimal.RequireFromString("180.00"), Valid: true}},
			{DishName: "Complimentary Water", Quantity: 1},
		},
	}
	order.RecalculateTotal()
	return order
}

func TestRenderBillProducesPDF(t *testing.T) {
	body, err := RenderBill(completedOrder(), Options{RestaurantName: "Spice Route", Currency: "INR", Timezone: "Asia/Kolkata"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "INR 360.00", formatMoney(decimal.RequireFromString("360"), "INR"))
	assert.Equal(t, "JPY 1200", formatMoney(decimal.RequireFromString("1200"), "JPY"))
}

type stubSource struct {
	order *orders.Order
	err   error
}

func (s stubSource) FindOrderByTrackingID(context.Context, string) (*orders.Order, error) {
	return s.order, s.err
}

type recordingPutter struct {
	keys     []string
	types    []string
	existing map[string]bool
}

func (r *recordingPutter) Exists(_ context.Context, key string) (bool, error) {
	return r.existing[key], nil
}

func (r *recordingPutter) PutObject(_ context.Context, key string, body []byte, contentType string, _ string) (string, error) {
	r.keys = append(r.keys, key)
	r.types = append(r.types, contentType)
	return "https://files.example/" + key, nil
}

func TestArchiverUploadsCompletedTabs(t *testing.T) {
	putter := &recordingPutter{}
	archiver := NewArchiver(stubSource{order: completedOrder()}, putter, Options{RestaurantName: "Spice Route", Currency: "INR"}, nil)

	require.NoError(t, archiver.Archive(context.Background(), "trk-77"))
	assert.Equal(t, []string{"receipts/2026-05-02/trk-77.pdf"}, putter.keys)
	assert.Equal(t, []string{"application/pdf"}, putter.types)
}

func TestArchiverSkips(t *testing.T) {
	cancelled := completedOrder()
	cancelled.Status = orders.StatusCancelled

	cases := []struct {
		name   string
		source stubSource
	}{
		{name: "cancelled tab", source: stubSource{order: cancelled}},
		{name: "missing order", source: stubSource{err: orders.ErrRecordNotFound}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			putter := &recordingPutter{}
			archiver := NewArchiver(tc.source, putter, Options{Currency: "INR"}, nil)
			require.NoError(t, archiver.Archive(context.Background(), "trk-77"))
			assert.Empty(t, putter.keys)
		})
	}
}

func TestArchiverRetriesUntilCompleted(t *testing.T) {
	awaiting := completedOrder()
	awaiting.Status = orders.StatusAwaitingPayment
	putter := &recordingPutter{}
	archiver := NewArchiver(stubSource{order: awaiting}, putter, Options{Currency: "INR"}, nil)

	err := archiver.Archive(context.Background(), "trk-77")
	require.ErrorIs(t, err, ErrReceiptNotReady)
	assert.Empty(t, putter.keys)
}

// staleSnapshots always serves the copy it was seeded with, like a cache entry
// written back by a read that raced the payment commit.
type staleSnapshots struct {
	order *orders.Order
}

func (s *staleSnapshots) GetOrder(context.Context, string) (*orders.Order, bool) {
	if s.order == nil {
		return nil, false
	}
	clone := s.order.Clone()
	return &clone, true
}

func (s *staleSnapshots) PutOrder(context.Context, *orders.Order) {}

func (s *staleSnapshots) Invalidate(context.Context, string) {}

func TestArchiverReadsCommittedStateNotCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.PutTable(orders.Table{ID: 4, Number: "T4"})
	store.PutDish(orders.Dish{ID: 1, Name: "Chole Bhature", Price: decimal.RequireFromString("180.00"), Available: true})

	snapshots := &staleSnapshots{}
	engine := orders.NewEngine(store, store, nil, snapshots, nil)
	order, err := engine.StartTab(ctx, orders.StartTabRequest{TableID: 4, Items: []orders.ItemRequest{{DishID: 1, Quantity: 2}}})
	require.NoError(t, err)
	billed, err := engine.RequestBill(ctx, order.ID)
	require.NoError(t, err)
	snapshots.order = billed

	_, err = engine.UpdateOrderStatus(ctx, orders.Actor{UserID: "admin", Role: orders.RoleAdmin}, order.ID, orders.StatusCompleted)
	require.NoError(t, err)

	cached, err := engine.GetOrderByTrackingID(ctx, order.PublicTrackingID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusAwaitingPayment, cached.Status)

	putter := &recordingPutter{}
	archiver := NewArchiver(store, putter, Options{Currency: "INR"}, nil)
	require.NoError(t, archiver.Archive(ctx, order.PublicTrackingID))
	assert.Equal(t, []string{ReceiptKey(billed)}, putter.keys)
}

func TestArchiverSkipsExistingReceipt(t *testing.T) {
	putter := &recordingPutter{existing: map[string]bool{"receipts/2026-05-02/trk-77.pdf": true}}
	archiver := NewArchiver(stubSource{order: completedOrder()}, putter, Options{Currency: "INR"}, nil)

	require.NoError(t, archiver.Archive(context.Background(), "trk-77"))
	assert.Empty(t, putter.keys)
}
