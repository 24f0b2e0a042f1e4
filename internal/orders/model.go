package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen            Status = "OPEN"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAwaitingPayment, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.Valid()
}

type ItemStatus string

const (
	ItemNeedsPreparation ItemStatus = "NEEDS_PREPARATION"
	ItemInProgress       ItemStatus = "IN_PROGRESS"
	ItemReady            ItemStatus = "READY"
	ItemDelivered        ItemStatus = "DELIVERED"
)

var itemStatusRank = map[ItemStatus]int{
	ItemNeedsPreparation: 0,
	ItemInProgress:       1,
	ItemReady:            2,
	ItemDelivered:        3,
}

func (s ItemStatus) Valid() bool {
	_, ok := itemStatusRank[s]
	return ok
}

// CanAdvanceTo reports whether next is the same status or later in the preparation sequence.
func (s ItemStatus) CanAdvanceTo(next ItemStatus) bool {
	from, okFrom := itemStatusRank[s]
	to, okTo := itemStatusRank[next]
	return okFrom && okTo && to >= from
}

func ParseItemStatus(raw string) (ItemStatus, bool) {
	status := ItemStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// Order is one running tab. Items are owned by the order and only reference it by id.
type Order struct {
	ID                int64
	PublicTrackingID  string
	TableID           int64
	TableNumber       string
	Status            Status
	OrderTime         time.Time
	Notes             *string
	TotalPrice        decimal.Decimal
	ProviderOrderID   *string
	ProviderPaymentID *string
	UpdatedAt         time.Time
	Items             []OrderItem
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	DishID    int64
	DishName  string
	Quantity  int
	UnitPrice decimal.NullDecimal
	Status    ItemStatus
}

// LineTotal is zero for lines that would be skipped by RecalculateTotal.
func (i OrderItem) LineTotal() decimal.Decimal {
	if i.Quantity <= 0 || !i.UnitPrice.Valid {
		return decimal.Zero
	}
	return i.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (o *Order) RecalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	o.TotalPrice = total
	return total
}

func (o *Order) ItemByID(itemID int64) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// MaxLineQuantity bounds the quantity of a single line, including merged additions.
const MaxLineQuantity = 999

// addLine merges the dish into an existing line when one exists, otherwise appends a
// new line at NEEDS_PREPARATION with the given price snapshot.
func (o *Order) addLine(dish Dish, quantity int) error {
	if quantity <= 0 || quantity > MaxLineQuantity {
		return ValidationError("quantity for dish %d must be between 1 and %d", dish.ID, MaxLineQuantity)
	}
	for i := range o.Items {
		if o.Items[i].DishID == dish.ID {
			if o.Items[i].Quantity > MaxLineQuantity-quantity {
				return ValidationError("quantity for dish %d would exceed %d", dish.ID, MaxLineQuantity)
			}
			o.Items[i].Quantity += quantity
			return nil
		}
	}
	o.Items = append(o.Items, OrderItem{
		OrderID:   o.ID,
		DishID:    dish.ID,
		DishName:  dish.Name,
		Quantity:  quantity,
		UnitPrice: decimal.NullDecimal{Decimal: dish.Price, Valid: true},
		Status:    ItemNeedsPreparation,
	})
	return nil
}

// Clone returns a deep copy so stores can hand out orders without sharing item slices.
func (o Order) Clone() Order {
	out := o
	out.Notes = cloneString(o.Notes)
	out.ProviderOrderID = cloneString(o.ProviderOrderID)
	out.ProviderPaymentID = cloneString(o.ProviderPaymentID)
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		copy(out.Items, o.Items)
	}
	return out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

type Dish struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	Available bool
}

type Table struct {
	ID                  int64
	Number              string
	AssistanceRequested bool
}

type ItemRequest struct {
	DishID   int64
	Quantity int
}

type StartTabRequest struct {
	TableID int64
	Items   []ItemRequest
	Notes   *string
}

type ListFilter struct {
	TableID *int64
	Status  *Status
	Page    int
	Size    int
}

// MaxListPage keeps Page*Size well inside an int32 offset for every allowed size.
const MaxListPage = 100_000

// Normalize clamps paging to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Page > MaxListPage {
		f.Page = MaxListPage
	}
	if f.Size <= 0 {
		f.Size = 20
	}
	if f.Size > 100 {
		f.Size = 100
	}
	return f
}

type Page struct {
	Orders        []Order
	Page          int
	Size          int
	TotalElements int64
}

// KitchenTicket is one item on the kitchen display together with its order context.
type KitchenTicket struct {
	Item             OrderItem
	OrderID          int64
	TableID          int64
	TableNumber      string
	PublicTrackingID string
	OrderTime        time.Time
}

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleStaff    Role = "STAFF"
	RoleCustomer Role = "CUSTOMER"
	RoleSystem   Role = "SYSTEM"
)

// Actor is the already-authenticated caller of an engine operation.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}

// MarkPaid completes a billed tab with the provider's payment id.
func (o *Order) MarkPaid(providerPaymentID string, at time.Time) error {
	if o.Status != StatusAwaitingPayment {
		return InvalidStateError("order %d is %s, expected %s", o.ID, o.Status, StatusAwaitingPayment)
	}
	o.Status = StatusCompleted
	o.ProviderPaymentID = &providerPaymentID
	o.UpdatedAt = at
	return nil
}
