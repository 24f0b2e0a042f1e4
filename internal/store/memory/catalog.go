package memory

import (
	"context"
	"sort"

	"restaurant-tab-service/internal/orders"
)

func (s *Store) PutDish(dish orders.Dish) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	s.dishes[dish.ID] = dish
}

func (s *Store) PutTable(table orders.Table) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	s.tables[table.ID] = table
}

func (s *Store) GetDish(_ context.Context, dishID int64) (*orders.Dish, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	dish, ok := s.dishes[dishID]
	if !ok {
		return nil, orders.ErrRecordNotFound
	}
	return &dish, nil
}

func (s *Store) GetTable(_ context.Context, tableID int64) (*orders.Table, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	table, ok := s.tables[tableID]
	if !ok {
		return nil, orders.ErrRecordNotFound
	}
	return &table, nil
}

func (s *Store) ListTablesRequestingAssistance(_ context.Context) ([]orders.Table, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	tables := make([]orders.Table, 0)
	for _, table := range s.tables {
		if table.AssistanceRequested {
			tables = append(tables, table)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
	return tables, nil
}

func (s *Store) SetAssistanceRequested(_ context.Context, tableID int64, requested bool) (*orders.Table, error) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	table, ok := s.tables[tableID]
	if !ok {
		return nil, orders.ErrRecordNotFound
	}
	table.AssistanceRequested = requested
	s.tables[tableID] = table
	return &table, nil
}

func (s *Store) CountDishes(_ context.Context) (int64, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	return int64(len(s.dishes)), nil
}

func (s *Store) CountTables(_ context.Context) (int64, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	return int64(len(s.tables)), nil
}
