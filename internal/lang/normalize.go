// Package lang provides text normalization, tokenization, and language
// detection for English and Arabic utterances.
//
// Every piece of text that reaches the dictionary index or the resolver
// cascade must go through [Normalize] first. The function is total (never
// fails, worst case returns "") and idempotent, so re-normalizing already
// normalized text is always safe.
package lang

import (
	"strings"

	"github.com/kalima-ai/kalima/pkg/types"
)

// arabicPunct maps Arabic punctuation to ASCII equivalents before the
// character filter runs, so "؟" degrades the same way "?" does.
var arabicPunct = strings.NewReplacer(
	"،", ",", // ،
	"؛", ";", // ؛
	"؟", "?", // ؟
)

// Normalize lowercases s, maps Arabic punctuation to ASCII, strips every rune
// that is not a lowercase letter, digit, underscore, whitespace, or part of
// the Arabic block (U+0600–U+06FF), collapses whitespace runs to single
// spaces, and trims. Diacritics within the Arabic block are preserved.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = arabicPunct.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			space = true
		case keepRune(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	case r >= 0x0600 && r <= 0x06FF:
		return true
	}
	return false
}

// Tokenize splits normalized text on spaces. Empty input yields nil.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// StripFillers removes filler tokens ("please", "من فضلك", ...) from the
// normalized utterance. When every token is a filler the original text is
// returned unchanged, so an utterance never strips down to nothing.
func StripFillers(normalized string, fillers map[string]struct{}) string {
	if len(fillers) == 0 {
		return normalized
	}
	tokens := Tokenize(normalized)
	kept := tokens[:0:0]
	for _, t := range tokens {
		if _, skip := fillers[t]; !skip {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return normalized
	}
	return strings.Join(kept, " ")
}

// HasArabicRune reports whether s contains at least one rune from the Arabic
// Unicode block.
func HasArabicRune(s string) bool {
	for _, r := range s {
		if r >= 0x0600 && r <= 0x06FF {
			return true
		}
	}
	return false
}

// TokenOverlap scores two normalized phrases by shared-token count divided by
// the larger token set, in [0, 1]. Order-insensitive; duplicates count once.
func TokenOverlap(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		setB[t] = struct{}{}
	}
	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	den := len(setA)
	if len(setB) > den {
		den = len(setB)
	}
	return float64(shared) / float64(den)
}

// DefaultLanguage is used when detection finds no signal at all.
const DefaultLanguage = types.LangEnglish
