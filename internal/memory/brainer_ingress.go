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

// BrainerIngress consumes brainer answers off its own exclusive queue,
// bound to the brainer exchange's answer routing key, and feeds decoded
// envelopes into the mailbox for the Coordinator to dispatch.
type BrainerIngress struct {
	consumer *bus.Consumer
	mailbox  *Mailbox

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewBrainerIngress declares the brainer exchange and an exclusive queue
// bound to answerKey.
func NewBrainerIngress(conn *bus.Connector, exchange, answerKey string, mailbox *Mailbox) (*BrainerIngress, error) {
	consumer, err := bus.DeclareExclusiveQueue(conn, exchange, "direct", answerKey)
	if err != nil {
		return nil, err
	}
	return &BrainerIngress{consumer: consumer, mailbox: mailbox, stopCh: make(chan struct{})}, nil
}

// Start begins consuming. Safe to call once.
func (b *BrainerIngress) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	deliveries, err := b.consumer.Consume("memory-brainer-ingress")
	if err != nil {
		return err
	}
	b.started = true
	b.wg.Add(1)
	go b.run(ctx, deliveries)
	logging.Op().Info("brainer ingress started")
	return nil
}

// Stop stops consuming and waits for the in-flight delivery loop to exit.
func (b *BrainerIngress) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	close(b.stopCh)
	b.mu.Unlock()

	b.wg.Wait()
	logging.Op().Info("brainer ingress stopped")
}

func (b *BrainerIngress) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.handle(ctx, d)
		}
	}
}

func (b *BrainerIngress) handle(ctx context.Context, d amqp.Delivery) {
	defer d.Ack(false)

	var payload struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.Unmarshal(d.Body, &payload); err != nil || payload.Question == "" || payload.Answer == "" {
		metrics.RecordMalformedDropped("brainer")
		logging.Op().Warn("invalid brainer answer, dropping", "error", err)
		return
	}

	env := Envelope{
		Kind: KindBrainerAnswer,
		BrainerAnswer: BrainerAnswer{
			Question: payload.Question,
			Answer:   payload.Answer,
		},
		Trace: traceContextFromHeaders(d.Headers),
	}
	if err := b.mailbox.Send(ctx, env); err != nil {
		logging.Op().Warn("mailbox send interrupted", "error", err)
	}
}
