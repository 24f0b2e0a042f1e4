package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client owns one connection and one channel. Publishes are serialised since
// amqp channels are not safe for concurrent writes.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	publishMu sync.Mutex
}

type Exchange struct {
	Name string
	Kind string
}

type Queue struct {
	Name string
	Args amqp.Table
}

type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

// Topology is a set of durable declarations applied in order: exchanges, queues, bindings.
type Topology struct {
	Exchanges []Exchange
	Queues    []Queue
	Bindings  []Binding
}

func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) Apply(t Topology) error {
	for _, ex := range t.Exchanges {
		kind := ex.Kind
		if kind == "" {
			kind = amqp.ExchangeTopic
		}
		if err := c.ch.ExchangeDeclare(ex.Name, kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.Name, err)
		}
	}
	for _, q := range t.Queues {
		if _, err := c.ch.QueueDeclare(q.Name, true, false, false, false, q.Args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.Name, err)
		}
	}
	for _, b := range t.Bindings {
		if err := c.BindQueue(b.Queue, b.Exchange, b.RoutingKey); err != nil {
			return fmt.Errorf("bind %s to %s (%s): %w", b.Queue, b.Exchange, b.RoutingKey, err)
		}
	}
	return nil
}

// EnsureInstanceQueue declares a server-named queue that lives as long as this connection.
func (c *Client) EnsureInstanceQueue() (amqp.Queue, error) {
	return c.ch.QueueDeclare("", false, true, true, false, nil)
}

func (c *Client) BindQueue(queueName, exchange, routingKey string) error {
	return c.ch.QueueBind(queueName, routingKey, exchange, false, nil)
}

func (c *Client) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.publish(ctx, exchange, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
}

func (c *Client) publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}
