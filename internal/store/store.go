package store

import "context"

// MetadataStore is the persistence contract the Memory coordinator needs:
// an atomic conditional upsert for incoming asker questions, and an atomic
// conditional write-back for incoming brainer answers. Both operations are
// single round-trips to the backing store so no distributed lock is needed
// to keep the state machine (absent -> unanswered -> answered) consistent
// under concurrent askers and brainers.
type MetadataStore interface {
	// ConditionalEnqueueAsker looks up the normalized question. If it is
	// absent, it is created with reply/correlation_id as its first pending
	// asker. If present without an answer, reply/correlation_id is appended
	// to pending_askers unless that reply_to is already queued. If present
	// with an answer, the record is returned unmodified. reply and
	// correlationID may both be empty, in which case the record is only
	// looked up or created, never appended to.
	ConditionalEnqueueAsker(ctx context.Context, question, replyTo, correlationID string) (QuestionRecord, error)

	// ConditionalSetAnswer looks up the normalized question. If it is
	// absent or present without an answer, it is written with the given
	// answer and its pending_askers cleared; the pre-image (pending askers
	// before the clear) is returned so the caller can fan the answer out
	// to everyone who was waiting. If the question already carries an
	// answer, the write is a no-op and the existing record is returned.
	ConditionalSetAnswer(ctx context.Context, question, answer string) (QuestionRecord, error)

	// Close releases the store's underlying connection.
	Close(ctx context.Context) error
}
