package orders

import "time"

type EventType string

const (
	EventTabOpened          EventType = "tab.opened"
	EventItemsAdded         EventType = "tab.items_added"
	EventBillRequested      EventType = "tab.bill_requested"
	EventItemStatusUpdated  EventType = "item.status.updated"
	EventOrderStatusUpdated EventType = "order.status.updated"
	EventPaymentCompleted   EventType = "payment.completed"
)

// Event is the payload handed to the Publisher. It is customer-safe: internal ids stay
// out of the JSON form.
type Event struct {
	Type           EventType            `json:"type"`
	TrackingID     string               `json:"trackingId"`
	OrderID        int64                `json:"-"`
	Status         Status               `json:"status"`
	PreviousStatus Status               `json:"previousStatus,omitempty"`
	Item           *CustomerItemStatus  `json:"item,omitempty"`
	Order          *CustomerOrderStatus `json:"order,omitempty"`
	ActorRole      Role                 `json:"actorRole,omitempty"`
	OccurredAt     time.Time            `json:"occurredAt"`
}

func NewEvent(eventType EventType, order *Order, previous Status, actor Actor, at time.Time) Event {
	snapshot := ToCustomerOrderStatus(order)
	event := Event{
		Type:       eventType,
		TrackingID: order.PublicTrackingID,
		OrderID:    order.ID,
		Status:     order.Status,
		Order:      &snapshot,
		ActorRole:  actor.Role,
		OccurredAt: at,
	}
	if previous != order.Status {
		event.PreviousStatus = previous
	}
	return event
}

func NewItemEvent(order *Order, item OrderItem, actor Actor, at time.Time) Event {
	event := NewEvent(EventItemStatusUpdated, order, order.Status, actor, at)
	line := toCustomerItemStatus(item)
	event.Item = &line
	return event
}
