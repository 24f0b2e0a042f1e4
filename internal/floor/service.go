// Package floor serves the staff floor views: pending service tasks, the dashboard and
// the table assistance flag.
package floor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/utils"
)

// Directory is the table and menu side of the catalog.
type Directory interface {
	ListTablesRequestingAssistance(ctx context.Context) ([]orders.Table, error)
	SetAssistanceRequested(ctx context.Context, tableID int64, requested bool) (*orders.Table, error)
	CountDishes(ctx context.Context) (int64, error)
	CountTables(ctx context.Context) (int64, error)
}

type Tasks struct {
	ReadyItems       []orders.KitchenTicket
	AssistanceTables []orders.Table
	AwaitingPayment  []orders.Order
}

type DashboardStats struct {
	TodayRevenue decimal.Decimal `json:"todayRevenue"`
	TodayOrders  int64           `json:"todayOrders"`
	TotalDishes  int64           `json:"totalDishes"`
	TotalTables  int64           `json:"totalTables"`
	Date         string          `json:"date"`
}

type Service struct {
	store     orders.Store
	directory Directory
	timezone  string
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store orders.Store, directory Directory, timezone string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, directory: directory, timezone: timezone, logger: logger, now: time.Now}
}

// ServiceTasks lists what floor staff should act on next.
func (s *Service) ServiceTasks(ctx context.Context) (Tasks, error) {
	ready, err := s.store.ListItemsByStatus(ctx, []orders.ItemStatus{orders.ItemReady})
	if err != nil {
		return Tasks{}, fmt.Errorf("ready items: %w", err)
	}
	tables, err := s.directory.ListTablesRequestingAssistance(ctx)
	if err != nil {
		return Tasks{}, fmt.Errorf("assistance tables: %w", err)
	}
	awaiting, err := s.store.ListOrdersByStatus(ctx, orders.StatusAwaitingPayment)
	if err != nil {
		return Tasks{}, fmt.Errorf("awaiting payment: %w", err)
	}
	return Tasks{ReadyItems: ready, AssistanceTables: tables, AwaitingPayment: awaiting}, nil
}

// DashboardStats counts revenue from tabs completed since local midnight.
func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	now := s.now()
	since := utils.StartOfDay(now, s.timezone)

	revenue, err := s.store.SumRevenueSince(ctx, orders.StatusCompleted, since)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("today revenue: %w", err)
	}
	count, err := s.store.CountOrdersSince(ctx, since)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("today orders: %w", err)
	}
	dishes, err := s.directory.CountDishes(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("count dishes: %w", err)
	}
	tables, err := s.directory.CountTables(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("count tables: %w", err)
	}
	return DashboardStats{
		TodayRevenue: revenue,
		TodayOrders:  count,
		TotalDishes:  dishes,
		TotalTables:  tables,
		Date:         utils.CurrentDateInTimezone(now, s.timezone),
	}, nil
}

func (s *Service) SetAssistanceRequested(ctx context.Context, tableID int64, requested bool) (*orders.Table, error) {
	table, err := s.directory.SetAssistanceRequested(ctx, tableID, requested)
	if errors.Is(err, orders.ErrRecordNotFound) {
		return nil, orders.NotFoundError("table %d not found", tableID)
	}
	if err != nil {
		return nil, fmt.Errorf("set assistance: %w", err)
	}
	s.logger.Info("table assistance updated", zap.Int64("tableId", tableID), zap.Bool("requested", requested))
	return table, nil
}
