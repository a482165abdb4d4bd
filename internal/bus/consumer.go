package bus

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer declares a queue and its bindings, then hands back the raw
// delivery channel. Decoding deliveries into domain envelopes is left to
// the caller (internal/memory, internal/asker, internal/brainerrole).
type Consumer struct {
	ch        *amqp.Channel
	queueName string
}

// DeclareDurableQueue declares (or attaches to) a durable, named queue,
// the shape used for the asker-to-memory question queue, which must
// survive broker restarts and fan in from every asker process.
func DeclareDurableQueue(conn *Connector, name string, prefetch int) (*Consumer, error) {
	ch := conn.Channel()
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %q: %w", name, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{ch: ch, queueName: name}, nil
}

// DeclareExclusiveQueue declares a server-named, exclusive, auto-delete
// queue and binds it to exchange under routingKey, the shape used by
// every role that wants its own private broadcast queue (a brainer's
// per-process question queue, the memory role's brainer-answer queue).
func DeclareExclusiveQueue(conn *Connector, exchange, exchangeKind, routingKey string) (*Consumer, error) {
	ch := conn.Channel()
	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare exclusive queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %q to %q/%q: %w", q.Name, exchange, routingKey, err)
	}
	return &Consumer{ch: ch, queueName: q.Name}, nil
}

// DeclareReplyQueue declares a server-named, exclusive, auto-delete queue
// on the default exchange, with no binding, the shape used for the
// asker's answer-receiver queue, where the Coordinator routes replies by
// publishing directly to the queue name as the routing key.
func DeclareReplyQueue(conn *Connector) (*Consumer, error) {
	ch := conn.Channel()
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}
	return &Consumer{ch: ch, queueName: q.Name}, nil
}

// QueueName returns the name of the declared queue (useful for the
// asker's callback queue, which is server-generated).
func (c *Consumer) QueueName() string {
	return c.queueName
}

// Consume starts manual-ack delivery of messages from the declared queue.
func (c *Consumer) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	deliveries, err := c.ch.Consume(c.queueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %q: %w", c.queueName, err)
	}
	return deliveries, nil
}

// ConsumeAutoAck starts auto-ack delivery, used only by the asker's
// answer-receiver, which has nothing to roll back on a processing error
// (it only prints to the terminal).
func (c *Consumer) ConsumeAutoAck(consumerTag string) (<-chan amqp.Delivery, error) {
	deliveries, err := c.ch.Consume(c.queueName, consumerTag, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %q: %w", c.queueName, err)
	}
	return deliveries, nil
}
