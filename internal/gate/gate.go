// Package gate converts a raw intent match into one of three actions based
// on calibrated confidence bands: execute, clarify, or fallback.
package gate

import (
	"fmt"

	"github.com/kalima-ai/kalima/internal/dictionary"
	"github.com/kalima-ai/kalima/pkg/types"
)

// Thresholds are the two confidence cut points of the three-tier gate.
type Thresholds struct {
	// Execute is the inclusive floor for acting without confirmation.
	Execute float64 `yaml:"execute"`

	// Clarify is the inclusive floor for asking a confirmation question.
	// Anything below falls back.
	Clarify float64 `yaml:"clarify"`
}

// DefaultThresholds returns the calibrated production cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{Execute: 0.7, Clarify: 0.4}
}

// Validate checks that the bands are ordered and inside [0, 1].
func (t Thresholds) Validate() error {
	if t.Execute <= 0 || t.Execute > 1 {
		return fmt.Errorf("gate: execute threshold %v outside (0, 1]", t.Execute)
	}
	if t.Clarify <= 0 || t.Clarify >= t.Execute {
		return fmt.Errorf("gate: clarify threshold %v must be in (0, %v)", t.Clarify, t.Execute)
	}
	return nil
}

// Gate applies the three-tier policy and localizes its messages.
type Gate struct {
	thresholds Thresholds
}

// New builds a gate. Invalid thresholds fall back to the defaults.
func New(t Thresholds) *Gate {
	if t.Validate() != nil {
		t = DefaultThresholds()
	}
	return &Gate{thresholds: t}
}

// Decide maps a match to an execute, clarify, or fallback decision. An
// UNKNOWN match always falls back regardless of score. Fallback decisions
// carry up to three example phrases for the utterance language, pulled from
// idx.
func (g *Gate) Decide(m types.Match, language types.Language, idx *dictionary.Index) types.Decision {
	switch {
	case m.Intent != types.IntentUnknown && m.Confidence >= g.thresholds.Execute:
		return types.Decision{
			Action:     types.ActionExecute,
			Intent:     m.Intent,
			Confidence: m.Confidence,
		}
	case m.Intent != types.IntentUnknown && m.Confidence >= g.thresholds.Clarify:
		return types.Decision{
			Action:     types.ActionClarify,
			Intent:     m.Intent,
			Confidence: m.Confidence,
			Message:    clarifyMessage(language, clarifySubject(m)),
		}
	default:
		return types.Decision{
			Action:     types.ActionFallback,
			Intent:     types.IntentUnknown,
			Confidence: m.Confidence,
			Message:    fallbackMessage(language),
			Examples:   idx.Examples(language),
		}
	}
}

// clarifySubject picks the phrase echoed back in the confirmation question,
// preferring the canonical phrase over the raw intent label.
func clarifySubject(m types.Match) string {
	if m.Canonical != "" {
		return m.Canonical
	}
	return m.Intent
}

func clarifyMessage(language types.Language, subject string) string {
	if language == types.LangArabic {
		return fmt.Sprintf("هل تقصد: \"%s\"؟ هل أكمل؟", subject)
	}
	return fmt.Sprintf("I think you meant: %q. Shall I proceed?", subject)
}

func fallbackMessage(language types.Language) string {
	if language == types.LangArabic {
		return "لم أفهم تماماً. جرب أحد هذه الأمثلة:"
	}
	return "I didn't quite understand. Try one of these examples:"
}
