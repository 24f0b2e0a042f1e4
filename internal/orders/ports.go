package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the order repository. Reads outside WithinTx see committed state only.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	FindOrderByID(ctx context.Context, orderID int64) (*Order, error)
	FindOpenOrderByTable(ctx context.Context, tableID int64) (*Order, error)
	FindOrderByTrackingID(ctx context.Context, trackingID string) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) (Page, error)
	ListItemsByStatus(ctx context.Context, statuses []ItemStatus) ([]KitchenTicket, error)
	ListOrdersByStatus(ctx context.Context, status Status) ([]Order, error)
	SumRevenueSince(ctx context.Context, status Status, since time.Time) (decimal.Decimal, error)
	CountOrdersSince(ctx context.Context, since time.Time) (int64, error)
}

// Tx is one unit of work. Lock* calls hold the order until the transaction ends.
type Tx interface {
	LockOrder(ctx context.Context, orderID int64) (*Order, error)
	LockOrderByItem(ctx context.Context, itemID int64) (*Order, error)
	FindOpenOrderByTable(ctx context.Context, tableID int64) (*Order, error)
	// InsertOrder assigns ids to the order and its items. A second open tab for the
	// same table yields ErrOpenTabExists.
	InsertOrder(ctx context.Context, order *Order) error
	// SaveOrder writes order columns, inserts items with a zero id and updates the rest.
	SaveOrder(ctx context.Context, order *Order) error
}

type Catalog interface {
	GetDish(ctx context.Context, dishID int64) (*Dish, error)
	GetTable(ctx context.Context, tableID int64) (*Table, error)
}

// Publisher fans state changes out to subscribers of a tracking id. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, trackingID string, payload any)
}

type PublisherFunc func(ctx context.Context, trackingID string, payload any)

func (f PublisherFunc) Publish(ctx context.Context, trackingID string, payload any) {
	f(ctx, trackingID, payload)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) {}

// SnapshotCache holds customer-facing order snapshots by tracking id.
type SnapshotCache interface {
	GetOrder(ctx context.Context, trackingID string) (*Order, bool)
	PutOrder(ctx context.Context, order *Order)
	Invalidate(ctx context.Context, trackingID string)
}

// Publishers fans one publish out to every non-nil publisher in order.
type Publishers []Publisher

func (p Publishers) Publish(ctx context.Context, trackingID string, payload any) {
	for _, publisher := range p {
		if publisher != nil {
			publisher.Publish(ctx, trackingID, payload)
		}
	}
}
