// Package audit is a supplemental, best-effort append-only log of
// Coordinator state transitions, written to Postgres. It exists
// alongside the Mongo-backed store (internal/store) rather than instead
// of it: the store is the system of record for question/answer state,
// this is an operational trail for "what happened and when" that nothing
// in the Q&A path depends on to make a decision.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thedartagnan/brainer/internal/logging"
)

// Transition is one recorded step of the Coordinator's dispatch loop.
type Transition struct {
	Question     string
	Kind         string // "asker_question" or "brainer_answer"
	HasAnswer    bool
	PendingCount int
}

// Logger writes Transitions to a Postgres table, creating it on first
// connect if it doesn't already exist.
type Logger struct {
	pool  *pgxpool.Pool
	table string
}

// NewLogger connects to dsn and ensures table exists.
func NewLogger(ctx context.Context, dsn, table string) (*Logger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	l := &Logger{pool: pool, table: table}
	if err := l.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

func (l *Logger) ensureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+l.table+` (
		id BIGSERIAL PRIMARY KEY,
		question TEXT NOT NULL,
		kind TEXT NOT NULL,
		has_answer BOOLEAN NOT NULL,
		pending_count INTEGER NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}

// Record inserts t. Failures are logged, never returned: the audit trail
// must never block or fail a Coordinator dispatch.
func (l *Logger) Record(ctx context.Context, t Transition) {
	if l == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO `+l.table+` (question, kind, has_answer, pending_count) VALUES ($1, $2, $3, $4)`,
		t.Question, t.Kind, t.HasAnswer, t.PendingCount)
	if err != nil {
		logging.Op().Warn("audit record failed", "question", t.Question, "kind", t.Kind, "error", err)
	}
}

// Close releases the connection pool.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.pool.Close()
}
