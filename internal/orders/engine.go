package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusOpen: {
		StatusAwaitingPayment: true,
		StatusCompleted:       true,
		StatusCancelled:       true,
	},
	StatusAwaitingPayment: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
}

func isValidTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	return ok && next[to]
}

// Engine owns the tab lifecycle: creation, item aggregation, billing and staff overrides.
type Engine struct {
	store     Store
	catalog   Catalog
	publisher Publisher
	cache     SnapshotCache
	logger    *zap.Logger

	now           func() time.Time
	newTrackingID func() string
}

func NewEngine(store Store, catalog Catalog, publisher Publisher, cache SnapshotCache, logger *zap.Logger) *Engine {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:         store,
		catalog:       catalog,
		publisher:     publisher,
		cache:         cache,
		logger:        logger,
		now:           time.Now,
		newTrackingID: uuid.NewString,
	}
}

func (e *Engine) StartTab(ctx context.Context, req StartTabRequest) (*Order, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	table, err := e.catalog.GetTable(ctx, req.TableID)
	if err != nil {
		return nil, lookupError(err, "table %d not found", req.TableID)
	}
	dishes, err := e.resolveDishes(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	order := &Order{
		PublicTrackingID: e.newTrackingID(),
		TableID:          table.ID,
		TableNumber:      table.Number,
		Status:           StatusOpen,
		OrderTime:        now,
		UpdatedAt:        now,
		Notes:            normalizeNotes(req.Notes),
	}
	for _, line := range req.Items {
		if err := order.addLine(dishes[line.DishID], line.Quantity); err != nil {
			return nil, err
		}
	}
	order.RecalculateTotal()

	err = e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindOpenOrderByTable(ctx, table.ID)
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return err
		}
		if err == nil && existing != nil {
			return ConflictError("table %s already has an open tab", table.Number)
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			if errors.Is(err, ErrOpenTabExists) {
				return ConflictError("table %s already has an open tab", table.Number)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "start tab")
	}

	e.logger.Info("tab opened",
		zap.Int64("orderId", order.ID),
		zap.Int64("tableId", order.TableID),
		zap.Int("lines", len(order.Items)),
		zap.String("total", order.TotalPrice.String()),
	)
	e.publish(ctx, NewEvent(EventTabOpened, order, StatusOpen, Actor{Role: RoleCustomer}, now))
	return order, nil
}

func (e *Engine) AddItems(ctx context.Context, orderID int64, items []ItemRequest) (*Order, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	dishes, err := e.resolveDishes(ctx, items)
	if err != nil {
		return nil, err
	}

	var order *Order
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return lookupError(err, "order %d not found", orderID)
		}
		if locked.Status != StatusOpen {
			return InvalidStateError("cannot add items to order %d in status %s", orderID, locked.Status)
		}
		for _, line := range items {
			if err := locked.addLine(dishes[line.DishID], line.Quantity); err != nil {
				return err
			}
		}
		locked.RecalculateTotal()
		locked.UpdatedAt = e.now().UTC()
		if err := tx.SaveOrder(ctx, locked); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, wrap(err, "add items")
	}

	e.logger.Info("items added to tab",
		zap.Int64("orderId", order.ID),
		zap.Int("requested", len(items)),
		zap.String("total", order.TotalPrice.String()),
	)
	e.publish(ctx, NewEvent(EventItemsAdded, order, order.Status, Actor{Role: RoleCustomer}, order.UpdatedAt))
	return order, nil
}

func (e *Engine) RequestBill(ctx context.Context, orderID int64) (*Order, error) {
	var order *Order
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return lookupError(err, "order %d not found", orderID)
		}
		if locked.Status != StatusOpen {
			return InvalidStateError("bill can only be requested for an open tab, order %d is %s", orderID, locked.Status)
		}
		locked.Status = StatusAwaitingPayment
		locked.UpdatedAt = e.now().UTC()
		if err := tx.SaveOrder(ctx, locked); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, wrap(err, "request bill")
	}

	e.logger.Info("bill requested", zap.Int64("orderId", order.ID), zap.String("total", order.TotalPrice.String()))
	e.publish(ctx, NewEvent(EventBillRequested, order, StatusOpen, Actor{Role: RoleCustomer}, order.UpdatedAt))
	return order, nil
}

// UpdateItemStatus moves one line forward in the kitchen sequence. Repeating the current
// status is accepted and changes nothing.
func (e *Engine) UpdateItemStatus(ctx context.Context, actor Actor, itemID int64, status ItemStatus) (*OrderItem, error) {
	if !status.Valid() {
		return nil, ValidationError("unknown item status %q", status)
	}

	var (
		order   *Order
		updated OrderItem
		changed bool
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockOrderByItem(ctx, itemID)
		if err != nil {
			return lookupError(err, "order item %d not found", itemID)
		}
		item, ok := locked.ItemByID(itemID)
		if !ok {
			return NotFoundError("order item %d not found", itemID)
		}
		if locked.Status == StatusCancelled {
			return InvalidStateError("order %d is cancelled", locked.ID)
		}
		if item.Status == status {
			updated = *item
			return nil
		}
		if !item.Status.CanAdvanceTo(status) {
			return ValidationError("item %d cannot move from %s back to %s", itemID, item.Status, status)
		}
		item.Status = status
		updated = *item
		locked.UpdatedAt = e.now().UTC()
		if err := tx.SaveOrder(ctx, locked); err != nil {
			return err
		}
		order = locked
		changed = true
		return nil
	})
	if err != nil {
		return nil, wrap(err, "update item status")
	}
	if !changed {
		return &updated, nil
	}

	e.logger.Info("item status updated",
		zap.Int64("orderId", order.ID),
		zap.Int64("itemId", itemID),
		zap.String("status", string(status)),
		zap.String("actor", actor.UserID),
	)
	e.publish(ctx, NewItemEvent(order, updated, actor, order.UpdatedAt))
	return &updated, nil
}

// UpdateOrderStatus is the staff override. Terminal tabs never change again.
func (e *Engine) UpdateOrderStatus(ctx context.Context, actor Actor, orderID int64, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ValidationError("unknown order status %q", status)
	}
	if status == StatusOpen {
		return nil, ValidationError("a tab cannot be reopened")
	}

	var (
		order    *Order
		previous Status
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return lookupError(err, "order %d not found", orderID)
		}
		previous = locked.Status
		order = locked
		if previous == status {
			return nil
		}
		if !isValidTransition(previous, status) {
			return InvalidStateError("order %d cannot move from %s to %s", orderID, previous, status)
		}
		locked.Status = status
		locked.UpdatedAt = e.now().UTC()
		return tx.SaveOrder(ctx, locked)
	})
	if err != nil {
		return nil, wrap(err, "update order status")
	}
	if previous == status {
		return order, nil
	}

	e.logger.Info("order status updated",
		zap.Int64("orderId", order.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.String("actor", actor.UserID),
		zap.String("role", string(actor.Role)),
	)
	e.publish(ctx, NewEvent(EventOrderStatusUpdated, order, previous, actor, order.UpdatedAt))
	return order, nil
}

// GetActiveOrderForTable reports false, not an error, when the table has no open tab.
func (e *Engine) GetActiveOrderForTable(ctx context.Context, tableID int64) (*Order, bool, error) {
	order, err := e.store.FindOpenOrderByTable(ctx, tableID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find open order: %w", err)
	}
	return order, true, nil
}

func (e *Engine) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	order, err := e.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, wrap(lookupError(err, "order %d not found", orderID), "get order")
	}
	return order, nil
}

func (e *Engine) GetOrderByTrackingID(ctx context.Context, trackingID string) (*Order, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, ValidationError("tracking id is required")
	}
	if e.cache != nil {
		if order, ok := e.cache.GetOrder(ctx, trackingID); ok {
			return order, nil
		}
	}
	order, err := e.store.FindOrderByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, wrap(lookupError(err, "order not found"), "get order by tracking id")
	}
	if e.cache != nil {
		e.cache.PutOrder(ctx, order)
	}
	return order, nil
}

func (e *Engine) ListOrders(ctx context.Context, filter ListFilter) (Page, error) {
	filter = filter.Normalize()
	if filter.Status != nil && !filter.Status.Valid() {
		return Page{}, ValidationError("unknown order status %q", *filter.Status)
	}
	page, err := e.store.ListOrders(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

// KitchenQueue lists lines still waiting on the kitchen, oldest tab first.
func (e *Engine) KitchenQueue(ctx context.Context) ([]KitchenTicket, error) {
	tickets, err := e.store.ListItemsByStatus(ctx, []ItemStatus{ItemNeedsPreparation, ItemInProgress})
	if err != nil {
		return nil, fmt.Errorf("kitchen queue: %w", err)
	}
	return tickets, nil
}

func (e *Engine) resolveDishes(ctx context.Context, items []ItemRequest) (map[int64]Dish, error) {
	dishes := make(map[int64]Dish, len(items))
	for _, line := range items {
		if _, ok := dishes[line.DishID]; ok {
			continue
		}
		dish, err := e.catalog.GetDish(ctx, line.DishID)
		if err != nil {
			return nil, lookupError(err, "dish %d not found", line.DishID)
		}
		if !dish.Available {
			return nil, ValidationError("dish %s is not available", dish.Name)
		}
		dishes[line.DishID] = *dish
	}
	return dishes, nil
}

func (e *Engine) publish(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("publisher panicked", zap.String("trackingId", event.TrackingID), zap.Any("panic", r))
		}
	}()
	e.publisher.Publish(ctx, event.TrackingID, event)
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return ValidationError("at least one item is required")
	}
	for _, line := range items {
		if line.DishID <= 0 {
			return ValidationError("dish id is required")
		}
		if line.Quantity <= 0 {
			return ValidationError("quantity for dish %d must be positive", line.DishID)
		}
		if line.Quantity > MaxLineQuantity {
			return ValidationError("quantity for dish %d must not exceed %d", line.DishID, MaxLineQuantity)
		}
	}
	return nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func lookupError(err error, format string, args ...any) error {
	if errors.Is(err, ErrRecordNotFound) {
		return NotFoundError(format, args...)
	}
	return err
}

func wrap(err error, op string) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
