// Package memory is an in-process order repository and catalog used by tests and
// local runs without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-tab-service/internal/orders"
)

type Store struct {
	// mu serialises transactions and guards the committed orders.
	mu          sync.Mutex
	orders      map[int64]orders.Order
	nextOrderID int64
	nextItemID  int64

	catalogMu sync.RWMutex
	dishes    map[int64]orders.Dish
	tables    map[int64]orders.Table
}

func New() *Store {
	return &Store{
		orders: make(map[int64]orders.Order),
		dishes: make(map[int64]orders.Dish),
		tables: make(map[int64]orders.Table),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[int64]orders.Order)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, order := range tx.staged {
		s.orders[id] = order
	}
	return nil
}

func (s *Store) FindOrderByID(_ context.Context, orderID int64) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, orders.ErrRecordNotFound
	}
	clone := order.Clone()
	return &clone, nil
}

func (s *Store) FindOpenOrderByTable(_ context.Context, tableID int64) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findOpen(s.orders, nil, tableID)
}

func (s *Store) FindOrderByTrackingID(_ context.Context, trackingID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.PublicTrackingID == trackingID {
			clone := order.Clone()
			return &clone, nil
		}
	}
	return nil, orders.ErrRecordNotFound
}

func (s *Store) ListOrders(_ context.Context, filter orders.ListFilter) (orders.Page, error) {
	filter = filter.Normalize()
	s.mu.Lock()
	matched := make([]orders.Order, 0)
	for _, order := range s.orders {
		if filter.TableID != nil && order.TableID != *filter.TableID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		matched = append(matched, order.Clone())
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OrderTime.Equal(matched[j].OrderTime) {
			return matched[i].OrderTime.After(matched[j].OrderTime)
		}
		return matched[i].ID > matched[j].ID
	})

	page := orders.Page{Page: filter.Page, Size: filter.Size, TotalElements: int64(len(matched))}
	start := filter.Page * filter.Size
	if start >= len(matched) {
		page.Orders = []orders.Order{}
		return page, nil
	}
	end := start + filter.Size
	if end > len(matched) {
		end = len(matched)
	}
	page.Orders = matched[start:end]
	return page, nil
}

func (s *Store) ListItemsByStatus(_ context.Context, statuses []orders.ItemStatus) ([]orders.KitchenTicket, error) {
	wanted := make(map[orders.ItemStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	s.mu.Lock()
	tickets := make([]orders.KitchenTicket, 0)
	for _, order := range s.orders {
		if order.Status == orders.StatusCancelled {
			continue
		}
		for _, item := range order.Items {
			if !wanted[item.Status] {
				continue
			}
			tickets = append(tickets, orders.KitchenTicket{
				Item:             item,
				OrderID:          order.ID,
				TableID:          order.TableID,
				TableNumber:      order.TableNumber,
				PublicTrackingID: order.PublicTrackingID,
				OrderTime:        order.OrderTime,
			})
		}
	}
	s.mu.Unlock()

	sort.Slice(tickets, func(i, j int) bool {
		if !tickets[i].OrderTime.Equal(tickets[j].OrderTime) {
			return tickets[i].OrderTime.Before(tickets[j].OrderTime)
		}
		return tickets[i].Item.ID < tickets[j].Item.ID
	})
	return tickets, nil
}

func (s *Store) ListOrdersByStatus(_ context.Context, status orders.Status) ([]orders.Order, error) {
	s.mu.Lock()
	matched := make([]orders.Order, 0)
	for _, order := range s.orders {
		if order.Status == status {
			matched = append(matched, order.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].OrderTime.Before(matched[j].OrderTime)
	})
	return matched, nil
}

func (s *Store) SumRevenueSince(_ context.Context, status orders.Status, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, order := range s.orders {
		if order.Status == status && !order.OrderTime.Before(since) {
			total = total.Add(order.TotalPrice)
		}
	}
	return total, nil
}

func (s *Store) CountOrdersSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, order := range s.orders {
		if !order.OrderTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func findOpen(committed, staged map[int64]orders.Order, tableID int64) (*orders.Order, error) {
	for _, order := range staged {
		if order.TableID == tableID && order.Status == orders.StatusOpen {
			clone := order.Clone()
			return &clone, nil
		}
	}
	for id, order := range committed {
		if _, overridden := staged[id]; overridden {
			continue
		}
		if order.TableID == tableID && order.Status == orders.StatusOpen {
			clone := order.Clone()
			return &clone, nil
		}
	}
	return nil, orders.ErrRecordNotFound
}

type memTx struct {
	store  *Store
	staged map[int64]orders.Order
}

func (t *memTx) current(orderID int64) (orders.Order, bool) {
	if order, ok := t.staged[orderID]; ok {
		return order, true
	}
	order, ok := t.store.orders[orderID]
	return order, ok
}

func (t *memTx) LockOrder(_ context.Context, orderID int64) (*orders.Order, error) {
	order, ok := t.current(orderID)
	if !ok {
		return nil, orders.ErrRecordNotFound
	}
	clone := order.Clone()
	return &clone, nil
}

func (t *memTx) LockOrderByItem(ctx context.Context, itemID int64) (*orders.Order, error) {
	for id, order := range t.staged {
		if _, ok := order.ItemByID(itemID); ok {
			return t.LockOrder(ctx, id)
		}
	}
	for id, order := range t.store.orders {
		if _, ok := order.ItemByID(itemID); ok {
			return t.LockOrder(ctx, id)
		}
	}
	return nil, orders.ErrRecordNotFound
}

func (t *memTx) FindOpenOrderByTable(_ context.Context, tableID int64) (*orders.Order, error) {
	return findOpen(t.store.orders, t.staged, tableID)
}

func (t *memTx) InsertOrder(_ context.Context, order *orders.Order) error {
	if order.Status == orders.StatusOpen {
		if _, err := findOpen(t.store.orders, t.staged, order.TableID); err == nil {
			return orders.ErrOpenTabExists
		}
	}
	t.store.nextOrderID++
	order.ID = t.store.nextOrderID
	t.assignItemIDs(order)
	t.staged[order.ID] = order.Clone()
	return nil
}

func (t *memTx) SaveOrder(_ context.Context, order *orders.Order) error {
	if _, ok := t.current(order.ID); !ok {
		return orders.ErrRecordNotFound
	}
	t.assignItemIDs(order)
	t.staged[order.ID] = order.Clone()
	return nil
}

func (t *memTx) assignItemIDs(order *orders.Order) {
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if order.Items[i].ID == 0 {
			t.store.nextItemID++
			order.Items[i].ID = t.store.nextItemID
		}
	}
}
