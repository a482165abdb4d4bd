package store

import (
	"context"
	"testing"
	"time"
)

// newTestMongoStore connects to a local MongoDB for integration testing.
// Tests that require a running MongoDB instance are skipped automatically
// when none is reachable.
func newTestMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := NewMongoStore(ctx, "mongodb://localhost:27017", "brainer_test", "questions", Credentials{})
	if err != nil {
		t.Skipf("MongoDB not available, skipping: %v", err)
	}
	t.Cleanup(func() { st.Close(context.Background()) })
	return st
}

func TestMongoStoreConditionalEnqueueAndAnswer(t *testing.T) {
	st := newTestMongoStore(t)
	ctx := context.Background()

	question := "What is the meaning of life?"

	rec, err := st.ConditionalEnqueueAsker(ctx, question, "asker.reply.1", "corr-1")
	if err != nil {
		t.Fatalf("enqueue asker: %v", err)
	}
	if rec.HasAnswer() {
		t.Fatal("freshly enqueued question should have no answer")
	}
	if len(rec.PendingAskers) != 1 || rec.PendingAskers[0].ReplyTo != "asker.reply.1" {
		t.Fatalf("expected one pending asker, got %+v", rec.PendingAskers)
	}

	// A second asker with a different reply_to waiting on the same
	// unanswered question is appended.
	rec, err = st.ConditionalEnqueueAsker(ctx, question, "asker.reply.2", "corr-2")
	if err != nil {
		t.Fatalf("enqueue second asker: %v", err)
	}
	if len(rec.PendingAskers) != 2 {
		t.Fatalf("expected two pending askers, got %+v", rec.PendingAskers)
	}

	preImage, err := st.ConditionalSetAnswer(ctx, question, "42")
	if err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if len(preImage.PendingAskers) != 2 {
		t.Fatalf("expected pre-image to carry both pending askers, got %+v", preImage.PendingAskers)
	}

	rec, err = st.ConditionalEnqueueAsker(ctx, question, "", "")
	if err != nil {
		t.Fatalf("lookup after answer: %v", err)
	}
	if !rec.HasAnswer() || rec.Answer != "42" {
		t.Fatalf("expected answer to be persisted, got %+v", rec)
	}

	// Answering again must be a no-op.
	again, err := st.ConditionalSetAnswer(ctx, question, "not 42")
	if err != nil {
		t.Fatalf("re-answer: %v", err)
	}
	if again.Answer != "42" {
		t.Fatalf("expected original answer preserved, got %q", again.Answer)
	}
}
