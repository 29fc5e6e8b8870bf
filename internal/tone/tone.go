// Package tone derives per-turn sentiment and selects the response tone
// profile downstream speech synthesis should use.
package tone

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kalima-ai/kalima/internal/lang"
	"github.com/kalima-ai/kalima/pkg/types"
)

// Tone profiles understood by the response layer.
const (
	// ToneDefault is the everyday assistant voice.
	ToneDefault = "neutral_professional"

	// ToneCalmSupportive is used when the user sounds frustrated.
	ToneCalmSupportive = "calm_supportive"

	// ToneRiskAlert is used when the resolved intent concerns risk findings.
	ToneRiskAlert = "risk_alert"
)

var knownTones = map[string]struct{}{
	ToneDefault:        {},
	ToneCalmSupportive: {},
	ToneRiskAlert:      {},
}

// Tones lists the valid tone profile names.
func Tones() []string {
	return []string{ToneDefault, ToneCalmSupportive, ToneRiskAlert}
}

var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "amazing": {}, "wonderful": {},
	"fantastic": {}, "perfect": {}, "love": {}, "best": {},
	"ممتاز": {}, "رائع": {}, "جيد": {}, "جميل": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "terrible": {}, "awful": {}, "horrible": {}, "worst": {},
	"hate": {}, "problem": {}, "issue": {}, "error": {}, "fail": {},
	"سيء": {}, "مشكلة": {}, "خطأ": {}, "فشل": {},
}

// Analyze counts positive and negative lexicon hits in the utterance. Score
// is positive minus negative; comparative is the score per token.
func Analyze(raw string) types.Sentiment {
	tokens := lang.Tokenize(lang.Normalize(raw))
	if len(tokens) == 0 {
		return types.Sentiment{Valence: types.ValenceNeutral}
	}

	score := 0
	for _, t := range tokens {
		if _, ok := positiveWords[t]; ok {
			score++
		}
		if _, ok := negativeWords[t]; ok {
			score--
		}
	}

	s := types.Sentiment{
		Score:       score,
		Comparative: float64(score) / float64(len(tokens)),
	}
	switch {
	case score > 0:
		s.Valence = types.ValencePositive
	case score < 0:
		s.Valence = types.ValenceNegative
	default:
		s.Valence = types.ValenceNeutral
	}
	return s
}

// Selector picks the tone for a turn. Precedence: manual override, then
// risk-intent trigger, then negative sentiment, then the default.
type Selector struct {
	mu       sync.RWMutex
	override string
}

// NewSelector returns a selector with no override set.
func NewSelector() *Selector { return &Selector{} }

// SetOverride pins the tone for every turn until cleared with "".
func (s *Selector) SetOverride(tone string) error {
	if tone != "" {
		if _, ok := knownTones[tone]; !ok {
			return fmt.Errorf("tone: unknown profile %q (valid: %s)", tone, strings.Join(Tones(), ", "))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = tone
	return nil
}

// Override returns the pinned tone, or "".
func (s *Selector) Override() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.override
}

// Select returns the tone for an accepted intent and its turn sentiment.
func (s *Selector) Select(intent string, sentiment types.Sentiment) string {
	if o := s.Override(); o != "" {
		return o
	}
	if strings.Contains(intent, "RISK") {
		return ToneRiskAlert
	}
	if sentiment.Valence == types.ValenceNegative {
		return ToneCalmSupportive
	}
	return ToneDefault
}
