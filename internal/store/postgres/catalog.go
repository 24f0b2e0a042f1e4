package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/utils"
)

func (s *Store) GetDish(ctx context.Context, dishID int64) (*orders.Dish, error) {
	var (
		dish  orders.Dish
		price pgtype.Numeric
	)
	err := s.pool.QueryRow(ctx, `select id, name, price, is_available from dishes where id = $1`, dishID).
		Scan(&dish.ID, &dish.Name, &price, &dish.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load dish: %w", err)
	}
	value := utils.NumericToDecimal(price)
	if !value.Valid {
		dish.Available = false
	}
	dish.Price = value.Decimal
	return &dish, nil
}

func (s *Store) GetTable(ctx context.Context, tableID int64) (*orders.Table, error) {
	var table orders.Table
	err := s.pool.QueryRow(ctx,
		`select id, table_number, assistance_requested from restaurant_tables where id = $1`, tableID,
	).Scan(&table.ID, &table.Number, &table.AssistanceRequested)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load table: %w", err)
	}
	return &table, nil
}

func (s *Store) ListTablesRequestingAssistance(ctx context.Context) ([]orders.Table, error) {
	rows, err := s.pool.Query(ctx,
		`select id, table_number, assistance_requested from restaurant_tables where assistance_requested order by id`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := make([]orders.Table, 0)
	for rows.Next() {
		var table orders.Table
		if err := rows.Scan(&table.ID, &table.Number, &table.AssistanceRequested); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

func (s *Store) SetAssistanceRequested(ctx context.Context, tableID int64, requested bool) (*orders.Table, error) {
	var table orders.Table
	err := s.pool.QueryRow(ctx, `
		update restaurant_tables set assistance_requested = $1 where id = $2
		returning id, table_number, assistance_requested`, requested, tableID,
	).Scan(&table.ID, &table.Number, &table.AssistanceRequested)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update table: %w", err)
	}
	return &table, nil
}

func (s *Store) CountDishes(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `select count(*) from dishes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count dishes: %w", err)
	}
	return count, nil
}

func (s *Store) CountTables(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `select count(*) from restaurant_tables`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tables: %w", err)
	}
	return count, nil
}
