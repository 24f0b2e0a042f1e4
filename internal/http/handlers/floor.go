package handlers

import (
	"net/http"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/pkg/response"
)

type tableResponse struct {
	TableID             int64  `json:"tableId"`
	TableNumber         string `json:"tableNumber"`
	AssistanceRequested bool   `json:"assistanceRequested"`
}

type serviceTasksResponse struct {
	ReadyItems       []orders.KitchenItem   `json:"readyItems"`
	AssistanceTables []tableResponse        `json:"assistanceTables"`
	AwaitingPayment  []orders.OrderResponse `json:"awaitingPayment"`
}

func toTableResponse(table orders.Table) tableResponse {
	return tableResponse{
		TableID:             table.ID,
		TableNumber:         table.Number,
		AssistanceRequested: table.AssistanceRequested,
	}
}

// PublicRequestAssistance raises the assistance flag for a table from the customer side.
func (h *Handler) PublicRequestAssistance(w http.ResponseWriter, r *http.Request) {
	h.setAssistance(w, r, true)
}

// StaffResolveAssistance clears the flag once a waiter has attended the table.
func (h *Handler) StaffResolveAssistance(w http.ResponseWriter, r *http.Request) {
	h.setAssistance(w, r, false)
}

func (h *Handler) setAssistance(w http.ResponseWriter, r *http.Request, requested bool) {
	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	table, err := h.Floor.SetAssistanceRequested(r.Context(), tableID, requested)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, toTableResponse(*table))
}

func (h *Handler) StaffServiceTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Floor.ServiceTasks(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	out := serviceTasksResponse{
		ReadyItems:       make([]orders.KitchenItem, 0, len(tasks.ReadyItems)),
		AssistanceTables: make([]tableResponse, 0, len(tasks.AssistanceTables)),
		AwaitingPayment:  make([]orders.OrderResponse, 0, len(tasks.AwaitingPayment)),
	}
	for _, ticket := range tasks.ReadyItems {
		out.ReadyItems = append(out.ReadyItems, orders.ToKitchenItem(ticket))
	}
	for _, table := range tasks.AssistanceTables {
		out.AssistanceTables = append(out.AssistanceTables, toTableResponse(table))
	}
	for i := range tasks.AwaitingPayment {
		out.AwaitingPayment = append(out.AwaitingPayment, orders.ToOrderResponse(&tasks.AwaitingPayment[i]))
	}
	response.Success(w, out)
}

func (h *Handler) StaffDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Floor.DashboardStats(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, stats)
}
