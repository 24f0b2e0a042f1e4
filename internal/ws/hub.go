package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultWriteWait = 10 * time.Second

type realtimeClient struct {
	conn      *websocket.Conn
	writeWait time.Duration
	writeMu   sync.Mutex
}

// writeJSON fails once the peer stops draining its socket for longer than writeWait.
func (c *realtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wait := c.writeWait
	if wait <= 0 {
		wait = defaultWriteWait
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(value)
}

// Hub keeps the websocket subscribers of this instance keyed by public tracking id.
// It is the in-process order Publisher.
type Hub struct {
	logger *zap.Logger

	mu        sync.RWMutex
	subs      map[string]map[*realtimeClient]struct{}
	writeWait time.Duration
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, subs: make(map[string]map[*realtimeClient]struct{}), writeWait: defaultWriteWait}
}

// SetWriteWait bounds how long one publish may block on a single slow subscriber.
// It applies to clients that connect afterwards.
func (h *Hub) SetWriteWait(d time.Duration) {
	h.mu.Lock()
	h.writeWait = d
	h.mu.Unlock()
}

func (h *Hub) newClient(conn *websocket.Conn) *realtimeClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return &realtimeClient{conn: conn, writeWait: h.writeWait}
}

func (h *Hub) subscribe(trackingID string, client *realtimeClient) (unsubscribe func()) {
	key := strings.TrimSpace(trackingID)
	if key == "" {
		return func() {}
	}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*realtimeClient]struct{})
	}
	h.subs[key][client] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		clients := h.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subs, key)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) Subscribers(trackingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[strings.TrimSpace(trackingID)])
}

// Publish writes payload to every subscriber of trackingID. Clients that fail a write are dropped.
func (h *Hub) Publish(_ context.Context, trackingID string, payload any) {
	key := strings.TrimSpace(trackingID)
	if key == "" {
		return
	}

	h.mu.RLock()
	clientsMap := h.subs[key]
	clients := make([]*realtimeClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(payload); err != nil {
			h.logger.Debug("dropping websocket client", zap.String("trackingId", key), zap.Error(err))
			_ = c.conn.Close()
			h.mu.Lock()
			if current := h.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(h.subs, key)
				}
			}
			h.mu.Unlock()
		}
	}
}
