package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"restaurant-tab-service/internal/orders"
)

const trackingOperation = "tracking"

// OrderSnapshots caches customer tracking lookups. It also acts as a Publisher so every
// published change drops the stale snapshot.
type OrderSnapshots struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewOrderSnapshots(cache Cache, ttl time.Duration, logger *zap.Logger) *OrderSnapshots {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &OrderSnapshots{cache: cache, ttl: ttl, logger: logger}
}

func (s *OrderSnapshots) GetOrder(ctx context.Context, trackingID string) (*orders.Order, bool) {
	raw, err := s.cache.Get(ctx, s.cache.GenerateKey(trackingOperation, trackingID))
	if err != nil {
		s.logger.Warn("snapshot cache read failed", zap.String("trackingId", trackingID), zap.Error(err))
		return nil, false
	}
	if raw == "" {
		return nil, false
	}
	var order orders.Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		s.logger.Warn("snapshot cache entry unreadable", zap.String("trackingId", trackingID), zap.Error(err))
		return nil, false
	}
	return &order, true
}

func (s *OrderSnapshots) PutOrder(ctx context.Context, order *orders.Order) {
	body, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.GenerateKey(trackingOperation, order.PublicTrackingID), body, s.ttl); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.String("trackingId", order.PublicTrackingID), zap.Error(err))
	}
}

func (s *OrderSnapshots) Invalidate(ctx context.Context, trackingID string) {
	if err := s.cache.Delete(ctx, s.cache.GenerateKey(trackingOperation, trackingID)); err != nil {
		s.logger.Warn("snapshot cache invalidate failed", zap.String("trackingId", trackingID), zap.Error(err))
	}
}

func (s *OrderSnapshots) Publish(ctx context.Context, trackingID string, _ any) {
	s.Invalidate(ctx, trackingID)
}
