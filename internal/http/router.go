package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"restaurant-tab-service/internal/http/handlers"
	"restaurant-tab-service/internal/middleware"
	"restaurant-tab-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, wsServer *ws.Server) http.Handler {
	cfg := h.Config
	logger := h.Logger

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))
	r.Use(middleware.Recoverer(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
			},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		// Customer side: the table QR page and the tracking page.
		r.Group(func(r chi.Router) {
			r.Post("/orders", h.PublicStartTab)
			r.Get("/orders/table/{tableId}/active", h.PublicActiveOrderForTable)
			r.Get("/orders/status/{trackingId}", h.PublicOrderStatus)
			r.Get("/orders/status/{trackingId}/bill", h.PublicOrderBill)
			r.Post("/orders/status/{trackingId}/items", h.PublicAddItems)
			r.Put("/orders/status/{trackingId}/request-bill", h.PublicRequestBill)
			r.Post("/payments/intents", h.PublicPaymentIntent)
			r.Post("/payments/verify", h.PublicPaymentVerify)
			r.Post("/tables/{tableId}/assistance", h.PublicRequestAssistance)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.StaffAuth(cfg.JWTSecret))
			r.Get("/orders", h.StaffOrdersList)
			r.Get("/orders/kitchen", h.StaffKitchenQueue)
			r.Get("/orders/{orderId}", h.StaffOrderDetail)
			r.Put("/orders/{orderId}/status", h.StaffUpdateOrderStatus)
			r.Put("/orders/items/{itemId}/status", h.StaffUpdateItemStatus)
			r.Get("/service/tasks", h.StaffServiceTasks)
			r.Delete("/service/tables/{tableId}/assistance", h.StaffResolveAssistance)
			r.Get("/dashboard/stats", h.StaffDashboardStats)
		})
	})

	if wsServer != nil {
		r.Get("/ws/orders/{trackingId}", wsServer.OrderTrackingWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger logs failed requests only; Telemetry covers the rest.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status < http.StatusInternalServerError {
				return
			}
			logger.Warn("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
