// Package dialog tracks per-conversation state: the active topic, the dialog
// state machine, expected follow-up intents, and a bounded turn history.
//
// The engine is the single writer for a session; stores serialize mutations
// per session so two concurrent requests for the same conversation never
// interleave partial updates.
package dialog

import (
	"time"

	"github.com/kalima-ai/kalima/pkg/types"
)

// TTL is how long a session may sit idle before its conversational state is
// considered stale. Expiry is lazy: it is applied on next access, never by a
// background sweeper.
const TTL = 24 * time.Hour

// HistoryCap bounds the per-session turn history.
const HistoryCap = 5

// Session is the full mutable state of one conversation.
type Session struct {
	// ID is the caller-chosen session identifier.
	ID string `json:"session_id"`

	// Topic is the active conversation topic ("ANALYSIS", "REPORT_READING"),
	// or "" when idle.
	Topic string `json:"topic,omitempty"`

	// State is the dialog state machine position.
	State types.DialogState `json:"state"`

	// LastIntent is the most recent accepted intent.
	LastIntent string `json:"last_intent,omitempty"`

	// Expected lists the intents the current topic anticipates next.
	Expected []string `json:"expected,omitempty"`

	// PendingIntent is the candidate stashed while awaiting clarification.
	PendingIntent string `json:"pending_intent,omitempty"`

	// ClarifyQuestion is the question asked when awaiting clarification.
	ClarifyQuestion string `json:"clarify_question,omitempty"`

	// AnswerContext names the expected-answer set while awaiting a reply
	// (e.g. "yes_no"), or "" when free input is expected.
	AnswerContext string `json:"answer_context,omitempty"`

	// Pointer is the position within the topic's data (report section etc.).
	Pointer int `json:"pointer"`

	// Language is the sticky session language.
	Language types.Language `json:"language,omitempty"`

	// History holds the most recent turns, newest last, capped at
	// [HistoryCap].
	History []types.Turn `json:"history,omitempty"`

	// CreatedAt is when the session was first seen.
	CreatedAt time.Time `json:"created_at"`

	// LastActivity is the last time the session processed an utterance.
	LastActivity time.Time `json:"last_activity"`
}

// NewSession returns a fresh idle session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		State:        types.StateIdle,
		Language:     types.LangEnglish,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Expired reports whether the session's idle time exceeds [TTL] at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.LastActivity) > TTL
}

// Reset clears all conversational state, history included, keeping only the
// session identity and language. Reserved for lazy TTL expiry; an explicit
// STOP goes through [ApplyIntent], which preserves the turn history.
func (s *Session) Reset() {
	s.Topic = ""
	s.State = types.StateIdle
	s.LastIntent = ""
	s.Expected = nil
	s.PendingIntent = ""
	s.ClarifyQuestion = ""
	s.AnswerContext = ""
	s.Pointer = 0
	s.History = nil
}

// RecordTurn appends a resolved turn, evicting the oldest beyond
// [HistoryCap].
func (s *Session) RecordTurn(turn types.Turn) {
	s.History = append(s.History, turn)
	if len(s.History) > HistoryCap {
		s.History = s.History[len(s.History)-HistoryCap:]
	}
}

// Summary returns the read-only view handed to response generation.
func (s *Session) Summary() types.SessionSummary {
	expected := make([]string, len(s.Expected))
	copy(expected, s.Expected)
	return types.SessionSummary{
		SessionID:       s.ID,
		Topic:           s.Topic,
		State:           s.State,
		LastIntent:      s.LastIntent,
		ExpectedIntents: expected,
		Pointer:         s.Pointer,
		Language:        s.Language,
		LastActivity:    s.LastActivity,
	}
}

// Clone returns a deep copy, so snapshots escape the store's lock safely.
func (s *Session) Clone() *Session {
	c := *s
	c.Expected = append([]string(nil), s.Expected...)
	c.History = append([]types.Turn(nil), s.History...)
	return &c
}
