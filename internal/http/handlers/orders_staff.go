package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"restaurant-tab-service/internal/auth"
	"restaurant-tab-service/internal/middleware"
	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/pkg/response"

	"go.uber.org/zap"
)

func (h *Handler) StaffOrdersList(w http.ResponseWriter, r *http.Request) {
	filter := orders.ListFilter{
		Page: parseIntQuery(r, "page", 0),
		Size: parseIntQuery(r, "size", 20),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("tableId")); raw != "" {
		tableID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || tableID <= 0 {
			response.Error(w, http.StatusUnprocessableEntity, string(orders.KindValidation), "Invalid table ID")
			return
		}
		filter.TableID = &tableID
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := orders.ParseStatus(raw)
		if !ok {
			response.Error(w, http.StatusUnprocessableEntity, string(orders.KindValidation), "Invalid status")
			return
		}
		filter.Status = &status
	}

	page, err := h.Engine.ListOrders(r.Context(), filter)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, orders.ToPageResponse(page))
}

func (h *Handler) StaffOrderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	order, err := h.Engine.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, orders.ToOrderResponse(order))
}

func (h *Handler) StaffKitchenQueue(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Engine.KitchenQueue(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	items := make([]orders.KitchenItem, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, orders.ToKitchenItem(ticket))
	}
	response.Success(w, items)
}

func (h *Handler) StaffUpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item ID is required")
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	status, ok := orders.ParseItemStatus(payload.Status)
	if !ok {
		response.Error(w, http.StatusUnprocessableEntity, string(orders.KindValidation), "Invalid item status")
		return
	}

	item, err := h.Engine.UpdateItemStatus(r.Context(), middleware.ActorFromContext(r.Context()), itemID, status)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, orders.ToOrderItemResponse(*item))
}

func (h *Handler) StaffUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	var payload struct {
		Status     string `json:"status"`
		ManagerPIN string `json:"managerPin"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if strings.TrimSpace(payload.Status) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Status is required")
		return
	}
	status, ok := orders.ParseStatus(payload.Status)
	if !ok {
		response.Error(w, http.StatusUnprocessableEntity, string(orders.KindValidation), "Invalid status")
		return
	}

	actor := middleware.ActorFromContext(ctx)
	current, err := h.Engine.GetOrder(ctx, orderID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if requiresManagerPIN(actor, current.Status, status) && strings.TrimSpace(h.Config.VoidPINHash) != "" {
		if err := auth.VerifyVoidPIN(h.Config.VoidPINHash, payload.ManagerPIN); err != nil {
			h.Logger.Warn("manager PIN rejected",
				zap.Int64("orderId", orderID),
				zap.String("userId", actor.UserID),
				zap.String("targetStatus", string(status)),
			)
			code := "MANAGER_PIN_INVALID"
			if errors.Is(err, auth.ErrVoidPINRequired) {
				code = "MANAGER_PIN_REQUIRED"
			}
			response.Error(w, http.StatusForbidden, code, err.Error())
			return
		}
	}

	order, err := h.Engine.UpdateOrderStatus(ctx, actor, orderID, status)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, orders.ToOrderResponse(order))
}

// requiresManagerPIN guards staff from closing a billed tab by hand. Admins are exempt.
func requiresManagerPIN(actor orders.Actor, current orders.Status, target orders.Status) bool {
	if actor.Role == orders.RoleAdmin {
		return false
	}
	if current != orders.StatusAwaitingPayment {
		return false
	}
	return target == orders.StatusCancelled || target == orders.StatusCompleted
}
