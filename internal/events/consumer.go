package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one event. Returning an error requeues the message.
type Handler func(ctx context.Context, event *Event) error

// Consume delivers events from the progress queue to handler until ctx is
// done or the channel closes. Messages that do not decode are dropped.
func (c *Connection) Consume(ctx context.Context, handler Handler) error {
	ch := c.Channel()
	if ch == nil {
		return fmt.Errorf("consume: no open channel")
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx,
		ProgressQueue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			c.deliver(ctx, msg, handler)
		}
	}
}

func (c *Connection) deliver(ctx context.Context, msg amqp.Delivery, handler Handler) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Warn("dropping undecodable event", "routing_key", msg.RoutingKey, "error", err)
		msg.Nack(false, false)
		return
	}
	if err := handler(ctx, &event); err != nil {
		c.logger.Error("event handler failed", "type", event.Type, "id", event.ID, "error", err)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
