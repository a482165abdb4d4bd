package memory

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeAcknowledger records the outcome of the delivery's ack/nack/reject
// without needing a live AMQP channel.
type fakeAcknowledger struct {
	acked bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}
func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error { return nil }
func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error             { return nil }

func newTestDelivery(body []byte, replyTo, correlationID string) (amqp.Delivery, *fakeAcknowledger) {
	ack := &fakeAcknowledger{}
	return amqp.Delivery{
		Acknowledger:  ack,
		Body:          body,
		ReplyTo:       replyTo,
		CorrelationId: correlationID,
	}, ack
}

func TestAskerIngressDropsDeliveryMissingReplyMetadata(t *testing.T) {
	mailbox := NewMailbox(4)
	ingress := &AskerIngress{mailbox: mailbox, stopCh: make(chan struct{})}

	body, _ := json.Marshal(struct {
		Question string `json:"question"`
	}{"What is Go?"})

	d, ack := newTestDelivery(body, "", "corr-1")
	ingress.handle(context.Background(), d)

	if !ack.acked {
		t.Fatal("expected delivery missing reply_to to still be acked")
	}
	select {
	case env := <-mailbox.Receive():
		t.Fatalf("expected no envelope to reach the mailbox, got %+v", env)
	default:
	}
}

func TestAskerIngressAcceptsDeliveryWithReplyMetadata(t *testing.T) {
	mailbox := NewMailbox(4)
	ingress := &AskerIngress{mailbox: mailbox, stopCh: make(chan struct{})}

	body, _ := json.Marshal(struct {
		Question string `json:"question"`
	}{"What is Go?"})

	d, ack := newTestDelivery(body, "asker.reply.1", "corr-1")
	ingress.handle(context.Background(), d)

	if !ack.acked {
		t.Fatal("expected delivery to be acked")
	}
	select {
	case env := <-mailbox.Receive():
		if env.AskerQuestion.ReplyTo != "asker.reply.1" || env.AskerQuestion.CorrelationID != "corr-1" {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	default:
		t.Fatal("expected an envelope to reach the mailbox")
	}
}
