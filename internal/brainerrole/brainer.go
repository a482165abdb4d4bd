// Package brainerrole implements the terminal-facing Brainer role: it
// receives broadcast questions from the memory coordinator, prompts a
// human operator for an answer, and publishes the answer back if one was
// given.
package brainerrole

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/thedartagnan/brainer/internal/bus"
	"github.com/thedartagnan/brainer/internal/logging"
)

// Brainer is a role.Agent that answers broadcast questions from the
// terminal.
type Brainer struct {
	conn      *bus.Connector
	publisher *bus.Publisher

	exchange    string
	questionKey string
	answerKey   string
}

// New wires a Brainer.
func New(conn *bus.Connector, publisher *bus.Publisher, exchange, questionKey, answerKey string) *Brainer {
	return &Brainer{conn: conn, publisher: publisher, exchange: exchange, questionKey: questionKey, answerKey: answerKey}
}

// Start blocks until ctx is canceled.
func (b *Brainer) Start(ctx context.Context) error {
	consumer, err := bus.DeclareExclusiveQueue(b.conn, b.exchange, "direct", b.questionKey)
	if err != nil {
		return err
	}
	deliveries, err := consumer.Consume("brainer-questions")
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Connection ready. Waiting for question...")
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nBye.")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			b.handle(ctx, d, reader)
		}
	}
}

func (b *Brainer) handle(ctx context.Context, d amqp.Delivery, reader *bufio.Reader) {
	var payload struct {
		Question string `json:"question"`
	}
	err := json.Unmarshal(d.Body, &payload)
	// Ack the reception regardless of outcome, before ever touching
	// the terminal: the broker only needs to know the delivery was
	// received, not that an operator chose to answer it.
	d.Ack(false)
	if err != nil || payload.Question == "" {
		logging.Op().Warn("invalid question received, dropping", "error", err)
		return
	}

	fmt.Println(strings.Repeat("*", 12))
	fmt.Println("Question:", payload.Question)
	fmt.Print("Answer (enter to skip): ")
	line, _ := reader.ReadString('\n')
	answer := strings.TrimSpace(line)
	if answer == "" {
		return
	}

	body, err := json.Marshal(struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}{payload.Question, answer})
	if err != nil {
		logging.Op().Error("marshal answer failed", "error", err)
		return
	}
	if err := b.publisher.Publish(ctx, b.exchange, b.answerKey, body, bus.PublishOptions{}); err != nil {
		logging.Op().Error("publish answer failed", "error", err)
	}
}
