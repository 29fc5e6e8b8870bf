package dialog

import (
	"time"

	"github.com/kalima-ai/kalima/pkg/types"
)

// Intent labels with dedicated dialog-flow semantics. The set of topics and
// transitions is fixed; dictionaries control how utterances map onto these
// labels, not what the labels do.
const (
	IntentStartAnalysis    = "START_ANALYSIS"
	IntentContinueAnalysis = "CONTINUE_ANALYSIS"
	IntentReadReport       = "READ_REPORT"
	IntentNextSection      = "NEXT_SECTION"
	IntentPreviousSection  = "PREVIOUS_SECTION"
	IntentStop             = "STOP"
	IntentCancel           = "CANCEL"
	IntentClarify          = "CLARIFY"
)

// Topic labels.
const (
	TopicAnalysis      = "ANALYSIS"
	TopicReportReading = "REPORT_READING"
)

// IsStop reports whether the intent unconditionally terminates the current
// topic. STOP and CANCEL short-circuit the entire cascade: they must work
// even when the session state machine would otherwise reject them.
func IsStop(intent string) bool {
	return intent == IntentStop || intent == IntentCancel
}

// ApplyIntent advances the session state machine for an accepted intent and
// records the turn. Unrecognised intents update the trail (last intent,
// history, activity time) without changing topic or expectations.
func ApplyIntent(s *Session, intent, utterance string, confidence float64, now time.Time) {
	if IsStop(intent) {
		// Stop terminates the topic but keeps the interaction trail: history
		// and the section pointer survive, unlike a TTL expiry reset.
		s.Topic = ""
		s.State = types.StateIdle
		s.Expected = nil
		s.PendingIntent = ""
		s.ClarifyQuestion = ""
		s.AnswerContext = ""
		s.LastIntent = intent
		s.LastActivity = now
		s.RecordTurn(types.Turn{Intent: intent, Utterance: utterance, Confidence: confidence, Timestamp: now})
		return
	}

	switch intent {
	case IntentStartAnalysis, IntentContinueAnalysis:
		s.Topic = TopicAnalysis
		s.State = types.StateProcessing
		s.Expected = []string{IntentReadReport, IntentStop, IntentClarify}
		if intent == IntentStartAnalysis {
			s.Pointer = 0
		}
	case IntentReadReport, IntentNextSection:
		s.Topic = TopicReportReading
		s.State = types.StateProcessing
		s.Expected = []string{IntentNextSection, IntentPreviousSection, IntentStop}
		if intent == IntentNextSection {
			s.Pointer++
		} else {
			s.Pointer = 0
		}
	case IntentPreviousSection:
		s.Topic = TopicReportReading
		s.State = types.StateProcessing
		s.Expected = []string{IntentNextSection, IntentPreviousSection, IntentStop}
		if s.Pointer > 0 {
			s.Pointer--
		}
	}

	s.LastIntent = intent
	s.PendingIntent = ""
	s.ClarifyQuestion = ""
	s.AnswerContext = ""
	s.LastActivity = now
	s.RecordTurn(types.Turn{Intent: intent, Utterance: utterance, Confidence: confidence, Timestamp: now})
}

// BeginClarification moves the session into the clarification state with the
// candidate intent stashed for a later yes/no answer.
func BeginClarification(s *Session, candidate, question string, now time.Time) {
	s.State = types.StateAwaitingClarification
	s.PendingIntent = candidate
	s.ClarifyQuestion = question
	s.AnswerContext = "yes_no"
	s.LastActivity = now
}

// CompleteAction marks an in-flight intent as finished: processing becomes
// awaiting_follow_up when the topic expects more, idle otherwise.
func CompleteAction(s *Session, now time.Time) {
	if s.State != types.StateProcessing {
		return
	}
	if len(s.Expected) > 0 {
		s.State = types.StateAwaitingFollowUp
	} else {
		s.State = types.StateIdle
	}
	s.LastActivity = now
}
