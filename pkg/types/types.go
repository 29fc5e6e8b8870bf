// Package types defines the shared types used across all Kalima packages.
//
// These types form the lingua franca between the normalizer, the dictionary
// index, the resolver cascade, the confidence gate, and the dialog session
// store. Each package defines its own domain types; cross-cutting data
// structures live here to avoid circular imports.
package types

import "time"

// Language identifies one of the supported locales.
type Language string

const (
	// LangEnglish is the default locale.
	LangEnglish Language = "en"

	// LangArabic covers utterances written in the Arabic Unicode block
	// (U+0600–U+06FF) or matching the Arabic lexicon.
	LangArabic Language = "ar"
)

// IsValid reports whether l is a recognised language.
func (l Language) IsValid() bool {
	return l == LangEnglish || l == LangArabic
}

// IntentUnknown is the terminal classification returned when no strategy
// produces an adequately confident match. It is a result, not an error:
// downstream dialog flow depends on always receiving a structured response.
const IntentUnknown = "UNKNOWN"

// Source identifies which resolver stage produced a match. Earlier sources in
// the cascade always outrank later ones regardless of raw confidence, because
// dictionary hits are ground truth while fuzzy hits are speculative.
type Source string

const (
	// SourceDictionaryFirst is the raw-phrase fast path checked before any
	// filler stripping.
	SourceDictionaryFirst Source = "dictionary-first"

	// SourceDictionary is the filler-stripped dictionary lookup, boosted by a
	// flat confidence bonus when it clears the partial-match threshold.
	SourceDictionary Source = "dictionary"

	// SourceExactPhrase is the phrase-containment check.
	SourceExactPhrase Source = "exact-phrase"

	// SourceWeightedKeyword is the keyword/phrase-overlap scoring stage.
	SourceWeightedKeyword Source = "weighted-keyword"

	// SourceFuzzy is the Levenshtein edit-distance stage.
	SourceFuzzy Source = "fuzzy"

	// SourceKeywordPresence is the bare keyword-fraction stage.
	SourceKeywordPresence Source = "keyword-presence"

	// SourceClarification marks a match produced by consuming an expected
	// answer to a pending "did you mean" question, outside the cascade.
	SourceClarification Source = "clarification"

	// SourceFallback marks the terminal UNKNOWN result.
	SourceFallback Source = "fallback"
)

// Match is the structured result of intent resolution for one utterance.
type Match struct {
	// Intent is the closed-set label, or [IntentUnknown].
	Intent string `json:"intent"`

	// Confidence is the calibrated score in [0, 1].
	Confidence float64 `json:"confidence"`

	// Canonical is the canonical phrase the input resolved to, if any.
	Canonical string `json:"canonical,omitempty"`

	// Matched is the catalog phrase or variant that produced the hit, if any.
	Matched string `json:"matched,omitempty"`

	// Source identifies the cascade stage that produced this match.
	Source Source `json:"source"`
}

// Action is the gated decision derived from a match's confidence.
type Action string

const (
	// ActionExecute means the intent is trusted and should run immediately.
	ActionExecute Action = "execute"

	// ActionClarify means the engine needs a yes/no confirmation before acting.
	ActionClarify Action = "clarify"

	// ActionFallback means the utterance was not understood; the caller should
	// surface the localized fallback message and example phrases.
	ActionFallback Action = "fallback"
)

// Decision is the confidence-gated envelope produced for a match.
type Decision struct {
	// Action is the three-tier outcome: execute, clarify, or fallback.
	Action Action `json:"action"`

	// Intent is the intent to execute, or the stashed candidate when clarifying.
	Intent string `json:"intent"`

	// Confidence echoes the match confidence.
	Confidence float64 `json:"confidence"`

	// Message is the localized clarification question or fallback text.
	// Empty for execute decisions.
	Message string `json:"message,omitempty"`

	// Examples holds up to three canonical phrases for the detected language.
	// Only set for fallback decisions.
	Examples []string `json:"examples,omitempty"`
}

// DialogState is a session's current conversational mode.
type DialogState string

const (
	// StateIdle is the initial state and the terminal state for a topic.
	StateIdle DialogState = "idle"

	// StateAwaitingFollowUp means the last action completed and the topic
	// expects a continuation (e.g. "next section").
	StateAwaitingFollowUp DialogState = "awaiting_follow_up"

	// StateAwaitingClarification means the engine asked a "did you mean"
	// question and is waiting for a yes/no style answer.
	StateAwaitingClarification DialogState = "awaiting_clarification"

	// StateProcessing means an executed intent's action is in flight.
	StateProcessing DialogState = "processing"
)

// IsValid reports whether s is a recognised dialog state.
func (s DialogState) IsValid() bool {
	switch s {
	case StateIdle, StateAwaitingFollowUp, StateAwaitingClarification, StateProcessing:
		return true
	}
	return false
}

// Turn is one resolved utterance in a session's bounded history.
type Turn struct {
	Intent     string    `json:"intent"`
	Utterance  string    `json:"utterance"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionSummary is the dialog-state view handed to response-generation
// layers. The engine is the single source of truth for dialog state; callers
// must never re-derive it themselves.
type SessionSummary struct {
	SessionID       string      `json:"session_id"`
	Topic           string      `json:"topic,omitempty"`
	State           DialogState `json:"state"`
	LastIntent      string      `json:"last_intent,omitempty"`
	ExpectedIntents []string    `json:"expected_intents,omitempty"`
	Pointer         int         `json:"pointer"`
	Language        Language    `json:"language,omitempty"`
	LastActivity    time.Time   `json:"last_activity"`
}

// Valence is the coarse sentiment polarity of an utterance.
type Valence string

const (
	ValencePositive Valence = "positive"
	ValenceNeutral  Valence = "neutral"
	ValenceNegative Valence = "negative"
)

// Sentiment is the keyword-count sentiment result for one utterance.
// It is derived per turn and never persisted.
type Sentiment struct {
	// Valence is positive, neutral, or negative.
	Valence Valence `json:"valence"`

	// Score is the raw positive-minus-negative keyword count.
	Score int `json:"score"`

	// Comparative is Score divided by the token count (0 for empty input).
	Comparative float64 `json:"comparative"`
}

// AnswerMatch is the result of matching free text against a known set of
// expected answers while a session awaits a specific reply.
type AnswerMatch struct {
	// Matched is the expected answer that scored best, or "" when nothing
	// scored above zero.
	Matched string `json:"matched,omitempty"`

	// Confidence is the token-overlap score plus substring bonus, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Canonical is the canonical form of the matched answer.
	Canonical string `json:"canonical,omitempty"`
}
