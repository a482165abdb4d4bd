// Package asker implements the terminal-facing Asker role: it reads
// questions from stdin, publishes them to the memory coordinator, and
// prints answers as they arrive.
//
// Reading stdin and receiving answers arrive on separate channels (a
// goroutine scans stdin into one, the AMQP consumer delivers into the
// other), so a select loop can interleave "read a line" and "an answer
// arrived" without needing a signal to interrupt a blocking read.
package asker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/thedartagnan/brainer/internal/bus"
	"github.com/thedartagnan/brainer/internal/logging"
)

// Asker is a role.Agent that relays terminal questions to the bus and
// prints answers as they arrive.
type Asker struct {
	conn          *bus.Connector
	publisher     *bus.Publisher
	questionQueue string
}

// New wires an Asker. questionQueue is the durable queue the memory
// coordinator consumes from.
func New(conn *bus.Connector, publisher *bus.Publisher, questionQueue string) *Asker {
	return &Asker{conn: conn, publisher: publisher, questionQueue: questionQueue}
}

// Start blocks until ctx is canceled or stdin reaches EOF.
func (a *Asker) Start(ctx context.Context) error {
	if _, err := bus.DeclareDurableQueue(a.conn, a.questionQueue, 1); err != nil {
		return err
	}
	replyQueue, err := bus.DeclareReplyQueue(a.conn)
	if err != nil {
		return err
	}
	deliveries, err := replyQueue.ConsumeAutoAck("asker-answers")
	if err != nil {
		return err
	}

	lines := make(chan string)
	go scanStdin(ctx, lines)

	fmt.Println("Connection ready.")
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nBye.")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			printAnswer(d.Body)
		case line, ok := <-lines:
			if !ok {
				fmt.Println("\nBye.")
				return nil
			}
			a.askQuestion(ctx, line, replyQueue.QueueName())
		}
	}
}

func scanStdin(ctx context.Context, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("Your question? ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
		fmt.Print("Your question? ")
	}
}

func (a *Asker) askQuestion(ctx context.Context, question, replyQueue string) {
	body, err := json.Marshal(struct {
		Question string `json:"question"`
	}{question})
	if err != nil {
		logging.Op().Error("marshal question failed", "error", err)
		return
	}
	corrID := uuid.New().String()
	if err := a.publisher.Publish(ctx, "", a.questionQueue, body, bus.PublishOptions{
		ReplyTo:       replyQueue,
		CorrelationID: corrID,
	}); err != nil {
		logging.Op().Error("publish question failed", "error", err)
	}
}

func printAnswer(body []byte) {
	var payload struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Question == "" || payload.Answer == "" {
		logging.Op().Warn("invalid answer received", "error", err)
		return
	}
	fmt.Println()
	fmt.Println(strings.Repeat("*", 12))
	fmt.Println("Question:", payload.Question)
	fmt.Println("Answer:", payload.Answer)
	fmt.Println(strings.Repeat("*", 12))
	fmt.Println()
}
