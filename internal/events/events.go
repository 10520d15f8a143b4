// Package events publishes order status transitions for kitchen displays
// and other listeners.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"menuvista-session/internal/model"
)

// OrderStatusChanged is published on every status transition.
type OrderStatusChanged struct {
	OrderID     int64             `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	ShortCode   string            `json:"short_code"`
	From        model.OrderStatus `json:"from"`
	To          model.OrderStatus `json:"to"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// Publisher sends raw messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
	Close() error
}

// NATSPublisher publishes over a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("menusessiond"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NopPublisher) Close() error                                   { return nil }

// OrderEvents encodes and publishes order events to one subject.
type OrderEvents struct {
	pub     Publisher
	subject string
}

// NewOrderEvents binds pub to subject. A nil pub publishes nothing.
func NewOrderEvents(pub Publisher, subject string) *OrderEvents {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &OrderEvents{pub: pub, subject: subject}
}

// StatusChanged publishes a transition of order from the given status.
func (e *OrderEvents) StatusChanged(ctx context.Context, order *model.DinerOrder, from model.OrderStatus) error {
	msg, err := json.Marshal(OrderStatusChanged{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		ShortCode:   order.ShortCode,
		From:        from,
		To:          order.Status,
		OccurredAt:  order.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}
	if err := e.pub.Publish(ctx, e.subject+"."+order.ShortCode, msg); err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	return nil
}
