package memory

import "context"

// Mailbox is the single buffered channel every ingress goroutine writes
// envelopes into and the Coordinator drains, so asker questions and
// brainer answers funnel through one ordered dispatch point regardless
// of which ingress goroutine received them first.
type Mailbox struct {
	ch chan Envelope
}

// NewMailbox creates a mailbox with the given buffer size.
func NewMailbox(size int) *Mailbox {
	return &Mailbox{ch: make(chan Envelope, size)}
}

// Send enqueues env, blocking until there is room or ctx is canceled.
func (m *Mailbox) Send(ctx context.Context, env Envelope) error {
	select {
	case m.ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the channel the Coordinator reads from.
func (m *Mailbox) Receive() <-chan Envelope {
	return m.ch
}

// Len reports the number of envelopes currently buffered, for the
// mailbox_depth gauge.
func (m *Mailbox) Len() int {
	return len(m.ch)
}

// Close closes the channel. Call only after every ingress goroutine that
// might still Send has stopped.
func (m *Mailbox) Close() {
	close(m.ch)
}
