package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"restaurant-tab-service/internal/orders"
)

const (
	EventsExchange = "tabs.events"

	ReceiptJobsExchange = "tabs.receipt_jobs"
	ReceiptJobsQueue    = "tabs.receipt_jobs.archive"
	ReceiptJobsDLQ      = "tabs.receipt_jobs.dlq"
	ReceiptJobsRK       = "archive"
	ReceiptJobsDeadRK   = "dead"
	ReceiptEventsQueue  = "tabs.receipt_jobs.events"
)

// Envelope carries one published order event between instances.
type Envelope struct {
	Origin     string          `json:"origin"`
	TrackingID string          `json:"trackingId"`
	Type       string          `json:"type"`
	Status     string          `json:"status,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

type ReceiptJob struct {
	TrackingID string    `json:"trackingId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func EventsTopology() Topology {
	return Topology{Exchanges: []Exchange{{Name: EventsExchange, Kind: amqp.ExchangeTopic}}}
}

// ReceiptJobsTopology routes completed tabs to the archive queue. Events reach the job
// queue through one shared events queue so only one instance enqueues each receipt.
// Jobs that exhaust their retries dead-letter to ReceiptJobsDLQ.
func ReceiptJobsTopology() Topology {
	return Topology{
		Exchanges: []Exchange{{Name: ReceiptJobsExchange, Kind: amqp.ExchangeDirect}},
		Queues: []Queue{
			{Name: ReceiptJobsDLQ},
			{Name: ReceiptJobsQueue, Args: amqp.Table{
				"x-dead-letter-exchange":    ReceiptJobsExchange,
				"x-dead-letter-routing-key": ReceiptJobsDeadRK,
			}},
			{Name: ReceiptEventsQueue},
		},
		Bindings: []Binding{
			{Queue: ReceiptJobsDLQ, Exchange: ReceiptJobsExchange, RoutingKey: ReceiptJobsDeadRK},
			{Queue: ReceiptJobsQueue, Exchange: ReceiptJobsExchange, RoutingKey: ReceiptJobsRK},
			{Queue: ReceiptEventsQueue, Exchange: EventsExchange, RoutingKey: string(orders.EventPaymentCompleted)},
			{Queue: ReceiptEventsQueue, Exchange: EventsExchange, RoutingKey: string(orders.EventOrderStatusUpdated)},
		},
	}
}

func EnsureEventsTopology(qc *Client) error {
	if qc == nil {
		return nil
	}
	return qc.Apply(EventsTopology())
}

func EnsureReceiptJobsTopology(qc *Client) error {
	if qc == nil {
		return nil
	}
	return qc.Apply(ReceiptJobsTopology())
}

// EventPublisher sends order events to the events exchange, routed by event type.
type EventPublisher struct {
	client *Client
	origin string
	logger *zap.Logger
}

func NewEventPublisher(client *Client, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{client: client, origin: uuid.NewString(), logger: logger}
}

func (p *EventPublisher) Origin() string {
	return p.origin
}

func (p *EventPublisher) Publish(ctx context.Context, trackingID string, payload any) {
	envelope, err := NewEnvelope(p.origin, trackingID, payload)
	if err != nil {
		p.logger.Warn("event encode failed", zap.String("trackingId", trackingID), zap.Error(err))
		return
	}
	if err := p.client.PublishJSON(ctx, EventsExchange, envelope.Type, envelope); err != nil {
		p.logger.Warn("event publish failed", zap.String("trackingId", trackingID), zap.String("type", envelope.Type), zap.Error(err))
	}
}

func NewEnvelope(origin, trackingID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	envelope := Envelope{Origin: origin, TrackingID: trackingID, Type: "order.event", Payload: body}
	if event, ok := payload.(orders.Event); ok {
		envelope.Type = string(event.Type)
		envelope.Status = string(event.Status)
	}
	return envelope, nil
}

// RelayHandler forwards events published by other instances to the local publisher.
func RelayHandler(origin string, local orders.Publisher) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var envelope Envelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return err
		}
		if envelope.Origin == origin || strings.TrimSpace(envelope.TrackingID) == "" {
			return nil
		}
		local.Publish(ctx, envelope.TrackingID, envelope.Payload)
		return nil
	}
}

// ProcessEventToJobs enqueues a receipt archive job for every tab that reached COMPLETED.
func ProcessEventToJobs(ctx context.Context, qc *Client, body []byte) error {
	if qc == nil {
		return nil
	}
	job, ok, err := receiptJobFor(body)
	if err != nil || !ok {
		return err
	}
	return qc.PublishJSON(ctx, ReceiptJobsExchange, ReceiptJobsRK, job)
}

func receiptJobFor(body []byte) (ReceiptJob, bool, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ReceiptJob{}, false, err
	}
	if !strings.EqualFold(envelope.Status, string(orders.StatusCompleted)) || envelope.TrackingID == "" {
		return ReceiptJob{}, false, nil
	}
	switch orders.EventType(envelope.Type) {
	case orders.EventPaymentCompleted, orders.EventOrderStatusUpdated:
		return ReceiptJob{TrackingID: envelope.TrackingID, CreatedAt: time.Now().UTC()}, true, nil
	}
	return ReceiptJob{}, false, nil
}

// ReceiptJobHandler decodes receipt jobs for archive.
func ReceiptJobHandler(archive func(ctx context.Context, trackingID string) error) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var job ReceiptJob
		if err := json.Unmarshal(body, &job); err != nil {
			return err
		}
		if strings.TrimSpace(job.TrackingID) == "" {
			return nil
		}
		return archive(ctx, job.TrackingID)
	}
}
