// Package postgres provides the PostgreSQL-backed dialog session store used
// when multiple engine replicas must share conversational state.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalima-ai/kalima/internal/dialog"
	"github.com/kalima-ai/kalima/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS dialog_sessions (
    session_id       text PRIMARY KEY,
    topic            text NOT NULL DEFAULT '',
    state            text NOT NULL DEFAULT 'idle',
    last_intent      text NOT NULL DEFAULT '',
    expected         jsonb NOT NULL DEFAULT '[]',
    pending_intent   text NOT NULL DEFAULT '',
    clarify_question text NOT NULL DEFAULT '',
    answer_context   text NOT NULL DEFAULT '',
    pointer          integer NOT NULL DEFAULT 0,
    language         text NOT NULL DEFAULT 'en',
    history          jsonb NOT NULL DEFAULT '[]',
    created_at       timestamptz NOT NULL,
    last_activity    timestamptz NOT NULL
)`

// Store is the PostgreSQL [dialog.Store]. Per-session serialization is done
// with row-level locks (SELECT ... FOR UPDATE) instead of process-local
// mutexes, so it holds across replicas.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ dialog.Store = (*Store)(nil)

// New connects to dsn and ensures the session table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("dialog postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("dialog postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("dialog postgres: ensure schema: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Update implements [dialog.Store]. The whole read-modify-write cycle runs
// in one transaction holding the session's row lock.
func (s *Store) Update(ctx context.Context, id string, fn func(*dialog.Session) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dialog postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now()
	sess, err := lockSession(ctx, tx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		sess = dialog.NewSession(id, now)
	} else if err != nil {
		return fmt.Errorf("dialog postgres: lock session %s: %w", id, err)
	}

	if sess.Expired(now) {
		sess.Reset()
	}
	if err := fn(sess); err != nil {
		return err
	}
	if err := upsertSession(ctx, tx, sess); err != nil {
		return fmt.Errorf("dialog postgres: save session %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dialog postgres: commit: %w", err)
	}
	return nil
}

// Get implements [dialog.Store].
func (s *Store) Get(ctx context.Context, id string) (*dialog.Session, error) {
	const q = `
		SELECT session_id, topic, state, last_intent, expected, pending_intent,
		       clarify_question, answer_context, pointer, language, history,
		       created_at, last_activity
		FROM   dialog_sessions
		WHERE  session_id = $1`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, dialog.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dialog postgres: get session %s: %w", id, err)
	}
	if sess.Expired(s.now()) {
		sess.Reset()
	}
	return sess, nil
}

// Delete implements [dialog.Store].
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM dialog_sessions WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("dialog postgres: delete session %s: %w", id, err)
	}
	return nil
}

// Count implements [dialog.Store].
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM dialog_sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("dialog postgres: count sessions: %w", err)
	}
	return n, nil
}

func lockSession(ctx context.Context, tx pgx.Tx, id string) (*dialog.Session, error) {
	const q = `
		SELECT session_id, topic, state, last_intent, expected, pending_intent,
		       clarify_question, answer_context, pointer, language, history,
		       created_at, last_activity
		FROM   dialog_sessions
		WHERE  session_id = $1
		FOR UPDATE`
	return scanSession(tx.QueryRow(ctx, q, id))
}

func upsertSession(ctx context.Context, tx pgx.Tx, sess *dialog.Session) error {
	expected, err := json.Marshal(sess.Expected)
	if err != nil {
		return fmt.Errorf("marshal expected: %w", err)
	}
	history, err := json.Marshal(sess.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	const q = `
		INSERT INTO dialog_sessions
		    (session_id, topic, state, last_intent, expected, pending_intent,
		     clarify_question, answer_context, pointer, language, history,
		     created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO UPDATE SET
		    topic            = EXCLUDED.topic,
		    state            = EXCLUDED.state,
		    last_intent      = EXCLUDED.last_intent,
		    expected         = EXCLUDED.expected,
		    pending_intent   = EXCLUDED.pending_intent,
		    clarify_question = EXCLUDED.clarify_question,
		    answer_context   = EXCLUDED.answer_context,
		    pointer          = EXCLUDED.pointer,
		    language         = EXCLUDED.language,
		    history          = EXCLUDED.history,
		    last_activity    = EXCLUDED.last_activity`

	_, err = tx.Exec(ctx, q,
		sess.ID,
		sess.Topic,
		string(sess.State),
		sess.LastIntent,
		expected,
		sess.PendingIntent,
		sess.ClarifyQuestion,
		sess.AnswerContext,
		sess.Pointer,
		string(sess.Language),
		history,
		sess.CreatedAt,
		sess.LastActivity,
	)
	return err
}

func scanSession(row pgx.Row) (*dialog.Session, error) {
	var (
		sess     dialog.Session
		state    string
		language string
		expected []byte
		history  []byte
	)
	if err := row.Scan(
		&sess.ID,
		&sess.Topic,
		&state,
		&sess.LastIntent,
		&expected,
		&sess.PendingIntent,
		&sess.ClarifyQuestion,
		&sess.AnswerContext,
		&sess.Pointer,
		&language,
		&history,
		&sess.CreatedAt,
		&sess.LastActivity,
	); err != nil {
		return nil, err
	}
	sess.State = types.DialogState(state)
	sess.Language = types.Language(language)
	if err := json.Unmarshal(expected, &sess.Expected); err != nil {
		return nil, fmt.Errorf("unmarshal expected: %w", err)
	}
	if err := json.Unmarshal(history, &sess.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return &sess, nil
}
