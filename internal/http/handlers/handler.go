package handlers

import (
	"restaurant-tab-service/internal/config"
	"restaurant-tab-service/internal/floor"
	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/payments"
	"restaurant-tab-service/internal/receipt"

	"go.uber.org/zap"
)

type Handler struct {
	Engine     *orders.Engine
	Reconciler *payments.Reconciler
	Floor      *floor.Service
	Logger     *zap.Logger
	Config     config.Config
	Receipt    receipt.Options
}
