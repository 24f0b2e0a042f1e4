package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"restaurant-tab-service/internal/middleware"
	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errMissingParam = errors.New("missing param")

func readPathString(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	out, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return out, nil
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

// writeEngineError maps order engine error kinds onto HTTP statuses.
// trackedOrderID resolves the public tracking id of a customer request to the internal
// order id. Customer routes never accept the sequential id directly.
func (h *Handler) trackedOrderID(w http.ResponseWriter, r *http.Request, trackingID string) (int64, bool) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Tracking ID is required")
		return 0, false
	}
	order, err := h.Engine.GetOrderByTrackingID(r.Context(), trackingID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return 0, false
	}
	return order.ID, true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var typed *orders.Error
	if !errors.As(err, &typed) {
		h.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch typed.Kind {
	case orders.KindNotFound:
		status = http.StatusNotFound
	case orders.KindInvalidState:
		status = http.StatusConflict
	case orders.KindValidation:
		status = http.StatusUnprocessableEntity
	case orders.KindConflict:
		status = http.StatusConflict
	case orders.KindExternalService:
		status = http.StatusBadGateway
		h.Logger.Warn("external service failure",
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
	response.Error(w, status, string(typed.Kind), typed.Message)
}

func toItemRequests(items []itemPayload) []orders.ItemRequest {
	out := make([]orders.ItemRequest, 0, len(items))
	for _, item := range items {
		out = append(out, orders.ItemRequest{DishID: item.DishID, Quantity: item.Quantity})
	}
	return out
}

type itemPayload struct {
	DishID   int64 `json:"dishId"`
	Quantity int   `json:"quantity"`
}
