package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/receipt"
	"restaurant-tab-service/pkg/response"

	"go.uber.org/zap"
)

func (h *Handler) PublicStartTab(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TableID int64         `json:"tableId"`
		Items   []itemPayload `json:"items"`
		Notes   *string       `json:"notes"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if payload.TableID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	order, err := h.Engine.StartTab(r.Context(), orders.StartTabRequest{
		TableID: payload.TableID,
		Items:   toItemRequests(payload.Items),
		Notes:   payload.Notes,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Created(w, orders.ToOrderResponse(order))
}

func (h *Handler) PublicAddItems(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Items []itemPayload `json:"items"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	orderID, ok := h.trackedOrderID(w, r, readPathString(r, "trackingId"))
	if !ok {
		return
	}

	order, err := h.Engine.AddItems(r.Context(), orderID, toItemRequests(payload.Items))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, orders.ToOrderResponse(order))
}

func (h *Handler) PublicActiveOrderForTable(w http.ResponseWriter, r *http.Request) {
	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	order, found, err := h.Engine.GetActiveOrderForTable(r.Context(), tableID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if !found {
		response.Error(w, http.StatusNotFound, "NO_ACTIVE_ORDER", "No active order for this table")
		return
	}
	response.Success(w, orders.ToOrderResponse(order))
}

func (h *Handler) PublicRequestBill(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.trackedOrderID(w, r, readPathString(r, "trackingId"))
	if !ok {
		return
	}

	order, err := h.Engine.RequestBill(r.Context(), orderID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, orders.ToOrderResponse(order))
}

func (h *Handler) PublicOrderStatus(w http.ResponseWriter, r *http.Request) {
	trackingID := readPathString(r, "trackingId")
	if trackingID == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Tracking ID is required")
		return
	}

	order, err := h.Engine.GetOrderByTrackingID(r.Context(), trackingID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, orders.ToCustomerOrderStatus(order))
}

// PublicOrderBill renders the bill of a tab that has been billed or paid.
func (h *Handler) PublicOrderBill(w http.ResponseWriter, r *http.Request) {
	trackingID := readPathString(r, "trackingId")
	if trackingID == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Tracking ID is required")
		return
	}

	order, err := h.Engine.GetOrderByTrackingID(r.Context(), trackingID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if order.Status != orders.StatusAwaitingPayment && order.Status != orders.StatusCompleted {
		response.Error(w, http.StatusConflict, string(orders.KindInvalidState), "Bill is available once it has been requested")
		return
	}

	body, err := receipt.RenderBill(order, h.Receipt)
	if err != nil {
		h.Logger.Error("bill render failed", zap.Int64("orderId", order.ID), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate bill")
		return
	}

	filename := fmt.Sprintf("bill_%s.pdf", strings.ReplaceAll(order.PublicTrackingID, "-", ""))
	response.PDF(w, filename, body)
}
