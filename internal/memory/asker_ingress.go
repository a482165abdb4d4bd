package memory

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/thedartagnan/brainer/internal/bus"
	"github.com/thedartagnan/brainer/internal/logging"
	"github.com/thedartagnan/brainer/internal/metrics"
)

// AskerIngress consumes the durable asker-question queue and feeds
// decoded envelopes into the mailbox for the Coordinator to dispatch.
type AskerIngress struct {
	consumer *bus.Consumer
	mailbox  *Mailbox

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewAskerIngress declares the durable question queue and returns an
// ingress ready to Start.
func NewAskerIngress(conn *bus.Connector, queueName string, prefetch int, mailbox *Mailbox) (*AskerIngress, error) {
	consumer, err := bus.DeclareDurableQueue(conn, queueName, prefetch)
	if err != nil {
		return nil, err
	}
	return &AskerIngress{consumer: consumer, mailbox: mailbox, stopCh: make(chan struct{})}, nil
}

// Start begins consuming. Safe to call once.
func (a *AskerIngress) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	deliveries, err := a.consumer.Consume("memory-asker-ingress")
	if err != nil {
		return err
	}
	a.started = true
	a.wg.Add(1)
	go a.run(ctx, deliveries)
	logging.Op().Info("asker ingress started")
	return nil
}

// Stop stops consuming and waits for the in-flight delivery loop to exit.
func (a *AskerIngress) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	close(a.stopCh)
	a.mu.Unlock()

	a.wg.Wait()
	logging.Op().Info("asker ingress stopped")
}

func (a *AskerIngress) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer a.wg.Done()
	for {
		select {
		case <-a.stopCh:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			a.handle(ctx, d)
		}
	}
}

func (a *AskerIngress) handle(ctx context.Context, d amqp.Delivery) {
	// Always ack regardless of decode outcome: there is nothing downstream
	// of the mailbox that can make this message's delivery succeed or fail,
	// so a malformed payload is dropped rather than redelivered forever.
	defer d.Ack(false)

	var payload struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(d.Body, &payload); err != nil || payload.Question == "" {
		metrics.RecordMalformedDropped("asker")
		logging.Op().Warn("invalid asker question, dropping", "error", err)
		return
	}
	if d.ReplyTo == "" || d.CorrelationId == "" {
		metrics.RecordMalformedDropped("asker")
		logging.Op().Warn("asker question missing reply_to or correlation_id, dropping", "question", payload.Question)
		return
	}

	env := Envelope{
		Kind: KindAskerQuestion,
		AskerQuestion: AskerQuestion{
			Question:      payload.Question,
			ReplyTo:       d.ReplyTo,
			CorrelationID: d.CorrelationId,
		},
		Trace: traceContextFromHeaders(d.Headers),
	}
	if err := a.mailbox.Send(ctx, env); err != nil {
		logging.Op().Warn("mailbox send interrupted", "error", err)
	}
}
