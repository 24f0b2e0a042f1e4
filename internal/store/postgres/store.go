// Package postgres implements the order repository and catalog on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/utils"
)

const openTabIndex = "uq_orders_open_tab_per_table"

const orderColumns = `
	select o.id, o.public_tracking_id, o.table_id, t.table_number, o.status, o.order_time,
	       o.notes, o.total_price, o.provider_order_id, o.provider_payment_id, o.updated_at
	from orders o
	join restaurant_tables t on t.id = o.table_id`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isOpenTabViolation(err) {
			return orders.ErrOpenTabExists
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) FindOrderByID(ctx context.Context, orderID int64) (*orders.Order, error) {
	return findOrder(ctx, s.pool, orderColumns+` where o.id = $1`, orderID)
}

func (s *Store) FindOpenOrderByTable(ctx context.Context, tableID int64) (*orders.Order, error) {
	return findOrder(ctx, s.pool, orderColumns+` where o.table_id = $1 and o.status = 'OPEN'`, tableID)
}

func (s *Store) FindOrderByTrackingID(ctx context.Context, trackingID string) (*orders.Order, error) {
	return findOrder(ctx, s.pool, orderColumns+` where o.public_tracking_id = $1`, trackingID)
}

func (s *Store) ListOrders(ctx context.Context, filter orders.ListFilter) (orders.Page, error) {
	filter = filter.Normalize()
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.TableID != nil {
		args = append(args, *filter.TableID)
		conditions = append(conditions, fmt.Sprintf("o.table_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " where " + strings.Join(conditions, " and ")
	}

	page := orders.Page{Page: filter.Page, Size: filter.Size}
	if err := s.pool.QueryRow(ctx, `select count(*) from orders o`+where, args...).Scan(&page.TotalElements); err != nil {
		return orders.Page{}, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, filter.Size, filter.Page*filter.Size)
	query := orderColumns + where + fmt.Sprintf(" order by o.order_time desc, o.id desc limit $%d offset $%d", len(args)-1, len(args))
	list, err := queryOrders(ctx, s.pool, query, args...)
	if err != nil {
		return orders.Page{}, err
	}
	page.Orders = list
	return page, nil
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status orders.Status) ([]orders.Order, error) {
	return queryOrders(ctx, s.pool, orderColumns+` where o.status = $1 order by o.order_time asc, o.id asc`, string(status))
}

func (s *Store) ListItemsByStatus(ctx context.Context, statuses []orders.ItemStatus) ([]orders.KitchenTicket, error) {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	rows, err := s.pool.Query(ctx, `
		select i.id, i.order_id, i.dish_id, i.dish_name, i.quantity, i.unit_price, i.item_status,
		       o.table_id, t.table_number, o.public_tracking_id, o.order_time
		from order_items i
		join orders o on o.id = i.order_id
		join restaurant_tables t on t.id = o.table_id
		where i.item_status = any($1) and o.status <> 'CANCELLED'
		order by o.order_time asc, i.id asc`, values)
	if err != nil {
		return nil, fmt.Errorf("query kitchen items: %w", err)
	}
	defer rows.Close()

	tickets := make([]orders.KitchenTicket, 0)
	for rows.Next() {
		var (
			ticket    orders.KitchenTicket
			unitPrice pgtype.Numeric
			status    string
		)
		if err := rows.Scan(
			&ticket.Item.ID, &ticket.Item.OrderID, &ticket.Item.DishID, &ticket.Item.DishName,
			&ticket.Item.Quantity, &unitPrice, &status,
			&ticket.TableID, &ticket.TableNumber, &ticket.PublicTrackingID, &ticket.OrderTime,
		); err != nil {
			return nil, err
		}
		ticket.Item.UnitPrice = utils.NumericToDecimal(unitPrice)
		ticket.Item.Status = orders.ItemStatus(status)
		ticket.OrderID = ticket.Item.OrderID
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *Store) SumRevenueSince(ctx context.Context, status orders.Status, since time.Time) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := s.pool.QueryRow(ctx,
		`select coalesce(sum(total_price), 0) from orders where status = $1 and order_time >= $2`,
		string(status), since,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	value := utils.NumericToDecimal(total)
	if !value.Valid {
		return decimal.Zero, nil
	}
	return value.Decimal, nil
}

func (s *Store) CountOrdersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `select count(*) from orders where order_time >= $1`, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockOrder(ctx context.Context, orderID int64) (*orders.Order, error) {
	return findOrder(ctx, t.tx, orderColumns+` where o.id = $1 for update of o`, orderID)
}

func (t *pgTx) LockOrderByItem(ctx context.Context, itemID int64) (*orders.Order, error) {
	var orderID int64
	err := t.tx.QueryRow(ctx, `select order_id from order_items where id = $1`, itemID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return t.LockOrder(ctx, orderID)
}

func (t *pgTx) FindOpenOrderByTable(ctx context.Context, tableID int64) (*orders.Order, error) {
	return findOrder(ctx, t.tx, orderColumns+` where o.table_id = $1 and o.status = 'OPEN' for update of o`, tableID)
}

func (t *pgTx) InsertOrder(ctx context.Context, order *orders.Order) error {
	err := t.tx.QueryRow(ctx, `
		insert into orders (public_tracking_id, table_id, status, order_time, notes, total_price,
		                    provider_order_id, provider_payment_id, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning id`,
		order.PublicTrackingID, order.TableID, string(order.Status), order.OrderTime, order.Notes,
		utils.DecimalToNumeric(order.TotalPrice), order.ProviderOrderID, order.ProviderPaymentID, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		if isOpenTabViolation(err) {
			return orders.ErrOpenTabExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return t.saveItems(ctx, order)
}

func (t *pgTx) SaveOrder(ctx context.Context, order *orders.Order) error {
	tag, err := t.tx.Exec(ctx, `
		update orders
		set status = $1, notes = $2, total_price = $3, provider_order_id = $4,
		    provider_payment_id = $5, updated_at = $6
		where id = $7`,
		string(order.Status), order.Notes, utils.DecimalToNumeric(order.TotalPrice),
		order.ProviderOrderID, order.ProviderPaymentID, order.UpdatedAt, order.ID,
	)
	if err != nil {
		if isOpenTabViolation(err) {
			return orders.ErrOpenTabExists
		}
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrRecordNotFound
	}
	return t.saveItems(ctx, order)
}

func (t *pgTx) saveItems(ctx context.Context, order *orders.Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if item.ID == 0 {
			err := t.tx.QueryRow(ctx, `
				insert into order_items (order_id, dish_id, dish_name, quantity, unit_price, item_status)
				values ($1, $2, $3, $4, $5, $6)
				returning id`,
				order.ID, item.DishID, item.DishName, item.Quantity,
				utils.NullDecimalToNumeric(item.UnitPrice), string(item.Status),
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			continue
		}
		if _, err := t.tx.Exec(ctx,
			`update order_items set quantity = $1, item_status = $2 where id = $3 and order_id = $4`,
			item.Quantity, string(item.Status), item.ID, order.ID,
		); err != nil {
			return fmt.Errorf("update order item %d: %w", item.ID, err)
		}
	}
	return nil
}

func findOrder(ctx context.Context, q querier, query string, args ...any) (*orders.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	items, err := loadItems(ctx, q, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func queryOrders(ctx context.Context, q querier, query string, args ...any) ([]orders.Order, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	list := make([]orders.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, *order)
		ids = append(ids, order.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return list, nil
	}

	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Items = items[list[i].ID]
	}
	return list, nil
}

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		order  orders.Order
		status string
		total  pgtype.Numeric
	)
	if err := row.Scan(
		&order.ID, &order.PublicTrackingID, &order.TableID, &order.TableNumber, &status, &order.OrderTime,
		&order.Notes, &total, &order.ProviderOrderID, &order.ProviderPaymentID, &order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Status = orders.Status(status)
	if value := utils.NumericToDecimal(total); value.Valid {
		order.TotalPrice = value.Decimal
	}
	return &order, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []int64) (map[int64][]orders.OrderItem, error) {
	rows, err := q.Query(ctx, `
		select id, order_id, dish_id, dish_name, quantity, unit_price, item_status
		from order_items
		where order_id = any($1)
		order by id asc`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]orders.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item      orders.OrderItem
			unitPrice pgtype.Numeric
			status    string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.DishID, &item.DishName, &item.Quantity, &unitPrice, &status); err != nil {
			return nil, err
		}
		item.UnitPrice = utils.NumericToDecimal(unitPrice)
		item.Status = orders.ItemStatus(status)
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	return items, rows.Err()
}

func isOpenTabViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == openTabIndex
}
