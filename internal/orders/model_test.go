package orders

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(value string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(value), Valid: true}
}

func TestRecalculateTotalSkipsMalformedLines(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{DishID: 1, Quantity: 2, UnitPrice: price("120.50")},
		{DishID: 2, Quantity: 0, UnitPrice: price("99.00")},
		{DishID: 3, Quantity: 1},
		{DishID: 4, Quantity: -3, UnitPrice: price("10.00")},
		{DishID: 5, Quantity: 3, UnitPrice: price("70.00")},
	}}

	total := order.RecalculateTotal()

	assert.True(t, decimal.RequireFromString("451.00").Equal(total), "got %s", total)
	assert.True(t, total.Equal(order.TotalPrice))
}

func TestAddLineAggregatesByDish(t *testing.T) {
	order := &Order{ID: 9}
	dish := Dish{ID: 3, Name: "Paneer Tikka", Price: decimal.RequireFromString("150.00"), Available: true}

	require.NoError(t, order.addLine(dish, 2))
	require.NoError(t, order.addLine(dish, 1))
	require.NoError(t, order.addLine(Dish{ID: 4, Name: "Naan", Price: decimal.RequireFromString("40.00")}, 1))

	require.Len(t, order.Items, 2)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, int64(9), order.Items[0].OrderID)
	assert.Equal(t, ItemNeedsPreparation, order.Items[0].Status)
	assert.Equal(t, "Paneer Tikka", order.Items[0].DishName)
}

func TestAddLineKeepsPriceSnapshot(t *testing.T) {
	order := &Order{}
	require.NoError(t, order.addLine(Dish{ID: 1, Price: decimal.RequireFromString("100.00")}, 1))
	require.NoError(t, order.addLine(Dish{ID: 1, Price: decimal.RequireFromString("250.00")}, 1))

	require.Len(t, order.Items, 1)
	assert.True(t, decimal.RequireFromString("100.00").Equal(order.Items[0].UnitPrice.Decimal))
}

func TestAddLineRejectsMergedQuantityAboveLimit(t *testing.T) {
	dish := Dish{ID: 3, Price: decimal.RequireFromString("60.00")}
	order := &Order{}
	require.NoError(t, order.addLine(dish, MaxLineQuantity-1))

	err := order.addLine(dish, 2)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, MaxLineQuantity-1, order.Items[0].Quantity)

	err = order.addLine(dish, math.MaxInt)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	require.NoError(t, order.addLine(dish, 1))
	assert.Equal(t, MaxLineQuantity, order.Items[0].Quantity)
}

func TestListFilterNormalizeBoundsPaging(t *testing.T) {
	cases := []struct {
		name       string
		in         ListFilter
		page, size int
	}{
		{"defaults", ListFilter{}, 0, 20},
		{"negative page", ListFilter{Page: -3, Size: 10}, 0, 10},
		{"oversized page", ListFilter{Page: math.MaxInt/20 + 1, Size: 20}, MaxListPage, 20},
		{"oversized size", ListFilter{Page: 1, Size: 5000}, 1, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.in.Normalize()
			assert.Equal(t, tc.page, out.Page)
			assert.Equal(t, tc.size, out.Size)
		})
	}
}

func TestItemStatusCanAdvanceTo(t *testing.T) {
	cases := []struct {
		from, to ItemStatus
		expected bool
	}{
		{ItemNeedsPreparation, ItemInProgress, true},
		{ItemNeedsPreparation, ItemReady, true},
		{ItemInProgress, ItemDelivered, true},
		{ItemReady, ItemReady, true},
		{ItemReady, ItemNeedsPreparation, false},
		{ItemDelivered, ItemInProgress, false},
		{ItemReady, ItemStatus("BURNT"), false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.from.CanAdvanceTo(tc.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus(" awaiting_payment ")
	assert.True(t, ok)
	assert.Equal(t, StatusAwaitingPayment, status)

	_, ok = ParseStatus("PAID")
	assert.False(t, ok)

	item, ok := ParseItemStatus("in_progress")
	assert.True(t, ok)
	assert.Equal(t, ItemInProgress, item)
}

func TestIsValidTransition(t *testing.T) {
	assert.True(t, isValidTransition(StatusOpen, StatusAwaitingPayment))
	assert.True(t, isValidTransition(StatusOpen, StatusCancelled))
	assert.True(t, isValidTransition(StatusAwaitingPayment, StatusCompleted))
	assert.False(t, isValidTransition(StatusAwaitingPayment, StatusOpen))
	assert.False(t, isValidTransition(StatusCompleted, StatusCancelled))
	assert.False(t, isValidTransition(StatusCancelled, StatusCompleted))
}

func TestMarkPaid(t *testing.T) {
	order := &Order{ID: 1, Status: StatusOpen}
	err := order.MarkPaid("pay_1", order.UpdatedAt)
	assert.True(t, IsKind(err, KindInvalidState))

	order.Status = StatusAwaitingPayment
	require.NoError(t, order.MarkPaid("pay_1", order.UpdatedAt))
	assert.Equal(t, StatusCompleted, order.Status)
	require.NotNil(t, order.ProviderPaymentID)
	assert.Equal(t, "pay_1", *order.ProviderPaymentID)
}

func TestCloneDoesNotShareItems(t *testing.T) {
	notes := "window seat"
	order := Order{Notes: &notes, Items: []OrderItem{{ID: 1, Quantity: 1}}}
	clone := order.Clone()
	clone.Items[0].Quantity = 5
	*clone.Notes = "patio"

	assert.Equal(t, 1, order.Items[0].Quantity)
	assert.Equal(t, "window seat", *order.Notes)
}

func TestErrorKinds(t *testing.T) {
	wrapped := wrap(NotFoundError("order %d not found", 4), "get order")
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "order 4 not found", wrapped.Error())

	external := ExternalServiceError(ErrRecordNotFound, "provider failed")
	assert.ErrorIs(t, external, ErrRecordNotFound)
	assert.Equal(t, ErrorKind(""), KindOf(ErrOpenTabExists))
}
