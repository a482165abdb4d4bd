package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/thedartagnan/brainer/internal/bus"
	"github.com/thedartagnan/brainer/internal/store"
)

// fakeStore is an in-memory MetadataStore, letting the Coordinator's
// dispatch logic be exercised without a live MongoDB.
type fakeStore struct {
	mu   sync.Mutex
	recs map[string]store.QuestionRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]store.QuestionRecord)}
}

func (f *fakeStore) ConditionalEnqueueAsker(ctx context.Context, question, replyTo, correlationID string) (store.QuestionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := store.Normalize(question)
	rec, ok := f.recs[q]
	if !ok {
		rec = store.QuestionRecord{Question: q}
	}
	if rec.HasAnswer() {
		f.recs[q] = rec
		return rec, nil
	}
	if replyTo != "" && correlationID != "" {
		alreadyQueued := false
		for _, p := range rec.PendingAskers {
			if p.ReplyTo == replyTo {
				alreadyQueued = true
				break
			}
		}
		if !alreadyQueued {
			rec.PendingAskers = append(rec.PendingAskers, store.PendingAsker{ReplyTo: replyTo, CorrelationID: correlationID})
		}
	}
	f.recs[q] = rec
	return rec, nil
}

func (f *fakeStore) ConditionalSetAnswer(ctx context.Context, question, answer string) (store.QuestionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := store.Normalize(question)
	rec, ok := f.recs[q]
	if !ok {
		rec = store.QuestionRecord{Question: q}
	}
	if rec.HasAnswer() {
		return rec, nil
	}
	preImage := rec
	rec.Answer = answer
	rec.PendingAskers = nil
	f.recs[q] = rec
	preImage.Answer = answer
	return preImage, nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

type publishedMessage struct {
	exchange, routingKey string
	body                 []byte
	opts                 bus.PublishOptions
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte, opts bus.PublishOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{exchange, routingKey, body, opts})
	return nil
}

func (p *fakePublisher) snapshot() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

func newTestCoordinator() (*Coordinator, *fakeStore, *fakePublisher) {
	mailbox := NewMailbox(16)
	st := newFakeStore()
	pub := &fakePublisher{}
	c := NewCoordinator(mailbox, st, pub, nil, "brainer.exchange.brainer", "question")
	return c, st, pub
}

func waitForMessages(t *testing.T, pub *fakePublisher, n int) []publishedMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if msgs := pub.snapshot(); len(msgs) >= n {
			return msgs
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d published messages", n)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCoordinatorBroadcastsUnansweredQuestion(t *testing.T) {
	c, _, pub := newTestCoordinator()
	c.Start()
	defer c.Stop()

	c.mailbox.Send(context.Background(), Envelope{
		Kind:          KindAskerQuestion,
		AskerQuestion: AskerQuestion{Question: "What is Go?", ReplyTo: "asker.reply.1", CorrelationID: "corr-1"},
	})

	msgs := waitForMessages(t, pub, 1)
	if msgs[0].exchange != "brainer.exchange.brainer" || msgs[0].routingKey != "question" {
		t.Fatalf("expected broadcast to brainer exchange, got %+v", msgs[0])
	}
	var body struct{ Question string }
	if err := json.Unmarshal(msgs[0].body, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Question != "what is go?" {
		t.Fatalf("expected normalized question, got %q", body.Question)
	}
}

func TestCoordinatorAnswersFromCacheOnRepeatQuestion(t *testing.T) {
	c, st, pub := newTestCoordinator()
	c.Start()
	defer c.Stop()

	st.recs["what is go?"] = store.QuestionRecord{Question: "what is go?", Answer: "A language."}

	c.mailbox.Send(context.Background(), Envelope{
		Kind:          KindAskerQuestion,
		AskerQuestion: AskerQuestion{Question: "What is Go?", ReplyTo: "asker.reply.2", CorrelationID: "corr-2"},
	})

	msgs := waitForMessages(t, pub, 1)
	if msgs[0].exchange != "" || msgs[0].routingKey != "asker.reply.2" {
		t.Fatalf("expected direct reply to asker, got %+v", msgs[0])
	}
	if msgs[0].opts.CorrelationID != "corr-2" {
		t.Fatalf("expected correlation id preserved, got %+v", msgs[0].opts)
	}
}

func TestCoordinatorFansOutAnswerToPendingAskers(t *testing.T) {
	c, st, pub := newTestCoordinator()
	c.Start()
	defer c.Stop()

	st.recs["what is go?"] = store.QuestionRecord{
		Question: "what is go?",
		PendingAskers: []store.PendingAsker{
			{ReplyTo: "asker.reply.3", CorrelationID: "corr-3"},
			{ReplyTo: "asker.reply.4", CorrelationID: "corr-4"},
		},
	}

	c.mailbox.Send(context.Background(), Envelope{
		Kind:          KindBrainerAnswer,
		BrainerAnswer: BrainerAnswer{Question: "What is Go?", Answer: "A language."},
	})

	msgs := waitForMessages(t, pub, 2)
	replyTos := map[string]bool{}
	for _, m := range msgs {
		replyTos[m.routingKey] = true
	}
	if !replyTos["asker.reply.3"] || !replyTos["asker.reply.4"] {
		t.Fatalf("expected fan-out to both pending askers, got %+v", msgs)
	}
}

func TestCoordinatorSecondAnswerIsNoop(t *testing.T) {
	c, st, pub := newTestCoordinator()
	c.Start()
	defer c.Stop()

	st.recs["what is go?"] = store.QuestionRecord{Question: "what is go?", Answer: "A language."}

	c.mailbox.Send(context.Background(), Envelope{
		Kind:          KindBrainerAnswer,
		BrainerAnswer: BrainerAnswer{Question: "What is Go?", Answer: "Something else."},
	})

	// Give the dispatch loop a moment to process, then assert nothing was
	// published: an already-answered question must not be overwritten or
	// fanned out, since there were no pending askers.
	time.Sleep(50 * time.Millisecond)
	if msgs := pub.snapshot(); len(msgs) != 0 {
		t.Fatalf("expected no publishes for already-answered question, got %+v", msgs)
	}
}
