package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItemResponse struct {
	ID        int64               `json:"id"`
	DishID    int64               `json:"dishId"`
	DishName  string              `json:"dishName"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unitPrice"`
	LineTotal decimal.Decimal     `json:"lineTotal"`
	Status    ItemStatus          `json:"itemStatus"`
}

type OrderResponse struct {
	ID                int64               `json:"id"`
	PublicTrackingID  string              `json:"publicTrackingId"`
	TableID           int64               `json:"tableId"`
	TableNumber       string              `json:"tableNumber"`
	Status            Status              `json:"status"`
	OrderTime         time.Time           `json:"orderTime"`
	Notes             *string             `json:"notes,omitempty"`
	TotalPrice        decimal.Decimal     `json:"totalPrice"`
	ProviderOrderID   *string             `json:"providerOrderId,omitempty"`
	ProviderPaymentID *string             `json:"providerPaymentId,omitempty"`
	UpdatedAt         time.Time           `json:"updatedAt"`
	Items             []OrderItemResponse `json:"items"`
}

type CustomerItemStatus struct {
	DishName  string              `json:"dishName"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unitPrice"`
	LineTotal decimal.Decimal     `json:"lineTotal"`
	Status    ItemStatus          `json:"itemStatus"`
}

// CustomerOrderStatus is what the tracking page sees. It carries no internal ids.
type CustomerOrderStatus struct {
	TrackingID  string               `json:"trackingId"`
	TableNumber string               `json:"tableNumber"`
	Status      Status               `json:"status"`
	OrderTime   time.Time            `json:"orderTime"`
	Notes       *string              `json:"notes,omitempty"`
	TotalPrice  decimal.Decimal      `json:"totalPrice"`
	Items       []CustomerItemStatus `json:"items"`
}

type KitchenItem struct {
	ItemID      int64      `json:"itemId"`
	OrderID     int64      `json:"orderId"`
	TableID     int64      `json:"tableId"`
	TableNumber string     `json:"tableNumber"`
	DishName    string     `json:"dishName"`
	Quantity    int        `json:"quantity"`
	Status      ItemStatus `json:"itemStatus"`
	OrderTime   time.Time  `json:"orderTime"`
}

type PageResponse struct {
	Content       []OrderResponse `json:"content"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
	TotalElements int64           `json:"totalElements"`
	TotalPages    int64           `json:"totalPages"`
}

func ToOrderItemResponse(item OrderItem) OrderItemResponse {
	return OrderItemResponse{
		ID:        item.ID,
		DishID:    item.DishID,
		DishName:  item.DishName,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		LineTotal: item.LineTotal(),
		Status:    item.Status,
	}
}

func ToOrderResponse(order *Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ToOrderItemResponse(item))
	}
	return OrderResponse{
		ID:                order.ID,
		PublicTrackingID:  order.PublicTrackingID,
		TableID:           order.TableID,
		TableNumber:       order.TableNumber,
		Status:            order.Status,
		OrderTime:         order.OrderTime,
		Notes:             order.Notes,
		TotalPrice:        order.TotalPrice,
		ProviderOrderID:   order.ProviderOrderID,
		ProviderPaymentID: order.ProviderPaymentID,
		UpdatedAt:         order.UpdatedAt,
		Items:             items,
	}
}

func toCustomerItemStatus(item OrderItem) CustomerItemStatus {
	return CustomerItemStatus{
		DishName:  item.DishName,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		LineTotal: item.LineTotal(),
		Status:    item.Status,
	}
}

func ToCustomerOrderStatus(order *Order) CustomerOrderStatus {
	items := make([]CustomerItemStatus, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, toCustomerItemStatus(item))
	}
	return CustomerOrderStatus{
		TrackingID:  order.PublicTrackingID,
		TableNumber: order.TableNumber,
		Status:      order.Status,
		OrderTime:   order.OrderTime,
		Notes:       order.Notes,
		TotalPrice:  order.TotalPrice,
		Items:       items,
	}
}

func ToKitchenItem(ticket KitchenTicket) KitchenItem {
	return KitchenItem{
		ItemID:      ticket.Item.ID,
		OrderID:     ticket.OrderID,
		TableID:     ticket.TableID,
		TableNumber: ticket.TableNumber,
		DishName:    ticket.Item.DishName,
		Quantity:    ticket.Item.Quantity,
		Status:      ticket.Item.Status,
		OrderTime:   ticket.OrderTime,
	}
}

func ToPageResponse(page Page) PageResponse {
	content := make([]OrderResponse, 0, len(page.Orders))
	for i := range page.Orders {
		content = append(content, ToOrderResponse(&page.Orders[i]))
	}
	var totalPages int64
	if page.Size > 0 {
		totalPages = (page.TotalElements + int64(page.Size) - 1) / int64(page.Size)
	}
	return PageResponse{
		Content:       content,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    totalPages,
	}
}
