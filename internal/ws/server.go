package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"restaurant-tab-service/internal/orders"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type OrderSource interface {
	GetOrderByTrackingID(ctx context.Context, trackingID string) (*orders.Order, error)
}

type Server struct {
	hub       *Hub
	orders    OrderSource
	logger    *zap.Logger
	heartbeat time.Duration
}

func NewServer(hub *Hub, source OrderSource, heartbeat time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{hub: hub, orders: source, logger: logger, heartbeat: heartbeat}
}

// OrderTrackingWS streams tab events for one tracking id, starting with the current snapshot.
func (s *Server) OrderTrackingWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	trackingID := chi.URLParam(r, "trackingId")
	if trackingID == "" {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "invalid request"})
		return
	}

	ctx := r.Context()
	order, err := s.orders.GetOrderByTrackingID(ctx, trackingID)
	if err != nil {
		if !orders.IsKind(err, orders.KindNotFound) {
			s.logger.Warn("tracking snapshot failed", zap.String("trackingId", trackingID), zap.Error(err))
		}
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "order not found"})
		return
	}

	client := s.hub.newClient(conn)
	unsubscribe := s.hub.subscribe(order.PublicTrackingID, client)
	defer unsubscribe()

	_ = client.writeJSON(map[string]any{"type": "order.state", "data": orders.ToCustomerOrderStatus(order)})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	var ticks <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticks:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
