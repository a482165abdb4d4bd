// Package bus wraps github.com/rabbitmq/amqp091-go connection, exchange,
// and queue lifecycle for the three process roles (asker, brainer, memory).
// A Connector is opened once and held for the life of the process rather
// than reconnected per message, and closed only on shutdown.
package bus

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connector owns one AMQP connection and one channel on it. Pass
// heartbeat=0 for roles that block for long stretches on local input
// (stdin, or draining an internal mailbox) rather than on network
// traffic, so an idle terminal prompt doesn't trip a heartbeat timeout.
type Connector struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial opens a connection and its single channel.
func Dial(url string, heartbeat time.Duration) (*Connector, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: heartbeat})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Connector{conn: conn, ch: ch}, nil
}

// Channel returns the underlying AMQP channel.
func (c *Connector) Channel() *amqp.Channel {
	return c.ch
}

// Close closes the channel then the connection.
func (c *Connector) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return c.conn.Close()
}
