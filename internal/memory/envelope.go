package memory

import "github.com/thedartagnan/brainer/internal/observability"

// EnvelopeKind discriminates the two message shapes the Coordinator
// dispatches on. Expressed as a tagged variant instead of an interface{}
// with a type switch, so the mailbox can carry both shapes over one
// typed channel.
type EnvelopeKind int

const (
	KindAskerQuestion EnvelopeKind = iota
	KindBrainerAnswer
)

// AskerQuestion is an asker's question together with where to send the
// eventual answer back to.
type AskerQuestion struct {
	Question      string
	ReplyTo       string
	CorrelationID string
}

// BrainerAnswer is a brainer's answer to a previously broadcast question.
type BrainerAnswer struct {
	Question string
	Answer   string
}

// Envelope is the single type the mailbox carries and the Coordinator's
// dispatch loop switches on. Trace carries the W3C trace context read off
// the originating AMQP delivery's headers, since the mailbox channel (not
// a context.Context) is what actually crosses the ingress-to-Coordinator
// goroutine boundary.
type Envelope struct {
	Kind          EnvelopeKind
	AskerQuestion AskerQuestion
	BrainerAnswer BrainerAnswer
	Trace         observability.TraceContext
}

// traceContextFromHeaders reads the W3C trace context fields out of an AMQP
// delivery's headers, if present.
func traceContextFromHeaders(headers map[string]interface{}) observability.TraceContext {
	var tc observability.TraceContext
	if headers == nil {
		return tc
	}
	if v, ok := headers["traceparent"].(string); ok {
		tc.TraceParent = v
	}
	if v, ok := headers["tracestate"].(string); ok {
		tc.TraceState = v
	}
	return tc
}
