package bus

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends JSON bodies over an AMQP channel.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher wraps the channel owned by conn.
func NewPublisher(conn *Connector) *Publisher {
	return &Publisher{ch: conn.Channel()}
}

// PublishOptions carries the reply metadata the Memory coordinator needs to
// route an answer back to the asker that is waiting on it, plus any message
// headers (trace propagation) to attach.
type PublishOptions struct {
	ReplyTo       string
	CorrelationID string
	Headers       map[string]interface{}
}

// Publish sends body to exchange (empty string for the default exchange)
// with the given routing key, tagging it as JSON.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body []byte, opts PublishOptions) error {
	err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		ReplyTo:       opts.ReplyTo,
		CorrelationId: opts.CorrelationID,
		Headers:       opts.Headers,
	})
	if err != nil {
		return fmt.Errorf("publish to %q/%q: %w", exchange, routingKey, err)
	}
	return nil
}
