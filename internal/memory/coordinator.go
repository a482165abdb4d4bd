package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/thedartagnan/brainer/internal/audit"
	"github.com/thedartagnan/brainer/internal/bus"
	"github.com/thedartagnan/brainer/internal/logging"
	"github.com/thedartagnan/brainer/internal/metrics"
	"github.com/thedartagnan/brainer/internal/observability"
	"github.com/thedartagnan/brainer/internal/store"
)

// publisher is the narrow slice of *bus.Publisher the Coordinator needs,
// accepted as an interface so unit tests can exercise the dispatch logic
// without a live AMQP broker.
type publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte, opts bus.PublishOptions) error
}

// Coordinator is the single dispatch site for every envelope the mailbox
// carries. One goroutine owns the question/answer store and the bus
// publisher, so an asker question and a brainer answer for the same
// question can never race each other.
type Coordinator struct {
	mailbox   *Mailbox
	store     store.MetadataStore
	publisher publisher
	audit     *audit.Logger

	exchange    string
	questionKey string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCoordinator wires a Coordinator. auditLogger may be nil, in which
// case transitions are simply not recorded.
func NewCoordinator(mailbox *Mailbox, st store.MetadataStore, pub publisher, auditLogger *audit.Logger, exchange, questionKey string) *Coordinator {
	return &Coordinator{
		mailbox:     mailbox,
		store:       st,
		publisher:   pub,
		audit:       auditLogger,
		exchange:    exchange,
		questionKey: questionKey,
		stopCh:      make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop signals the dispatch loop to drain whatever is already buffered in
// the mailbox and return. It blocks until that drain completes, so no
// envelope already accepted off the bus is lost on shutdown.
func (c *Coordinator) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	for {
		select {
		case env, ok := <-c.mailbox.Receive():
			if !ok {
				return
			}
			c.dispatch(context.Background(), env)
		case <-c.stopCh:
			c.drain()
			return
		}
	}
}

func (c *Coordinator) drain() {
	for {
		select {
		case env, ok := <-c.mailbox.Receive():
			if !ok {
				return
			}
			c.dispatch(context.Background(), env)
		default:
			return
		}
	}
}

func (c *Coordinator) dispatch(ctx context.Context, env Envelope) {
	ctx = observability.InjectTraceContext(ctx, env.Trace)
	ctx, span := observability.StartSpan(ctx, "coordinator.dispatch",
		observability.AttrEnvelopeKind.Int(int(env.Kind)))
	defer span.End()

	switch env.Kind {
	case KindAskerQuestion:
		c.handleAskerQuestion(ctx, env.AskerQuestion)
	case KindBrainerAnswer:
		c.handleBrainerAnswer(ctx, env.BrainerAnswer)
	default:
		logging.Op().Warn("coordinator: unknown envelope kind", "kind", env.Kind)
	}
	metrics.SetMailboxDepth(c.mailbox.Len())
}

func (c *Coordinator) handleAskerQuestion(ctx context.Context, q AskerQuestion) {
	metrics.RecordQuestionReceived()

	span := observability.SpanFromContext(ctx)
	span.SetAttributes(
		observability.AttrQuestion.String(q.Question),
		observability.AttrReplyTo.String(q.ReplyTo),
		observability.AttrCorrelationID.String(q.CorrelationID),
	)

	rec, err := c.store.ConditionalEnqueueAsker(ctx, q.Question, q.ReplyTo, q.CorrelationID)
	if err != nil {
		metrics.RecordStoreError("enqueue_asker")
		observability.SetSpanError(span, err)
		logging.Op().Error("enqueue asker question failed", "question", q.Question, "error", err)
		return
	}
	span.SetAttributes(
		observability.AttrHasAnswer.Bool(rec.HasAnswer()),
		observability.AttrPendingCount.Int(len(rec.PendingAskers)),
	)

	c.audit.Record(ctx, audit.Transition{
		Question:     rec.Question,
		Kind:         "asker_question",
		HasAnswer:    rec.HasAnswer(),
		PendingCount: len(rec.PendingAskers),
	})

	if rec.HasAnswer() {
		metrics.RecordCacheHit()
		logging.Op().Info("question already answered, replying directly", "question", rec.Question)
		c.replyToAsker(ctx, rec.Question, rec.Answer, q.ReplyTo, q.CorrelationID)
		observability.SetSpanOK(span)
		return
	}

	metrics.RecordBrainerBroadcast()
	logging.Op().Info("question unanswered, broadcasting to brainers", "question", rec.Question)
	c.broadcastToBrainers(ctx, rec.Question)
	observability.SetSpanOK(span)
}

func (c *Coordinator) handleBrainerAnswer(ctx context.Context, a BrainerAnswer) {
	metrics.RecordAnswerReceived()

	span := observability.SpanFromContext(ctx)
	span.SetAttributes(observability.AttrQuestion.String(a.Question))

	rec, err := c.store.ConditionalSetAnswer(ctx, a.Question, a.Answer)
	if err != nil {
		metrics.RecordStoreError("set_answer")
		observability.SetSpanError(span, err)
		logging.Op().Error("set answer failed", "question", a.Question, "error", err)
		return
	}
	span.SetAttributes(
		observability.AttrHasAnswer.Bool(true),
		observability.AttrPendingCount.Int(len(rec.PendingAskers)),
	)

	c.audit.Record(ctx, audit.Transition{
		Question:     rec.Question,
		Kind:         "brainer_answer",
		HasAnswer:    true,
		PendingCount: len(rec.PendingAskers),
	})

	if len(rec.PendingAskers) == 0 {
		observability.SetSpanOK(span)
		return
	}
	logging.Op().Info("fanning answer out to pending askers", "question", rec.Question, "count", len(rec.PendingAskers))
	for _, p := range rec.PendingAskers {
		c.replyToAsker(ctx, rec.Question, rec.Answer, p.ReplyTo, p.CorrelationID)
		metrics.RecordFanoutReply()
	}
	observability.SetSpanOK(span)
}

func (c *Coordinator) replyToAsker(ctx context.Context, question, answer, replyTo, correlationID string) {
	if replyTo == "" {
		return
	}
	body, err := json.Marshal(struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}{question, answer})
	if err != nil {
		logging.Op().Error("marshal reply failed", "question", question, "error", err)
		return
	}
	opts := bus.PublishOptions{CorrelationID: correlationID, Headers: traceHeaders(ctx)}
	if err := c.publisher.Publish(ctx, "", replyTo, body, opts); err != nil {
		logging.Op().Error("publish reply to asker failed", "reply_to", replyTo, "error", err)
	}
}

func (c *Coordinator) broadcastToBrainers(ctx context.Context, question string) {
	body, err := json.Marshal(struct {
		Question string `json:"question"`
	}{question})
	if err != nil {
		logging.Op().Error("marshal question failed", "question", question, "error", err)
		return
	}
	opts := bus.PublishOptions{Headers: traceHeaders(ctx)}
	if err := c.publisher.Publish(ctx, c.exchange, c.questionKey, body, opts); err != nil {
		logging.Op().Error("broadcast question to brainers failed", "question", question, "error", err)
	}
}

// traceHeaders extracts the current span's W3C trace context from ctx and
// shapes it as AMQP message headers, so the next hop's ingress can start
// its own span as a child of this one instead of a fresh trace.
func traceHeaders(ctx context.Context) map[string]interface{} {
	tc := observability.ExtractTraceContext(ctx)
	if tc.TraceParent == "" {
		return nil
	}
	return map[string]interface{}{
		"traceparent": tc.TraceParent,
		"tracestate":  tc.TraceState,
	}
}
