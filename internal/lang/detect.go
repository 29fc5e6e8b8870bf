package lang

import (
	"unicode/utf8"

	"github.com/kalima-ai/kalima/pkg/types"
)

// stickyMaxRunes is the length below which an utterance without a decisive
// language signal keeps the session's previous language. Short confirmations
// like "نعم" or "ok" carry too little signal to justify a language flip.
const stickyMaxRunes = 5

// Detector classifies an utterance as English or Arabic. An utterance is
// Arabic when it contains any Arabic-block rune or any whole-word hit in the
// Arabic lexicon (romanized Arabic such as "tamam"); everything else is
// English.
type Detector struct {
	lexicon map[string]struct{}
}

// NewDetector builds a detector over the given romanized-Arabic lexicon.
// Lexicon entries must already be normalized.
func NewDetector(lexicon []string) *Detector {
	set := make(map[string]struct{}, len(lexicon))
	for _, w := range lexicon {
		if w = Normalize(w); w != "" {
			set[w] = struct{}{}
		}
	}
	return &Detector{lexicon: set}
}

// Detect returns the stateless classification of s. s may be raw or
// normalized; detection normalizes internally.
func (d *Detector) Detect(s string) types.Language {
	if HasArabicRune(s) {
		return types.LangArabic
	}
	for _, tok := range Tokenize(Normalize(s)) {
		if _, ok := d.lexicon[tok]; ok {
			return types.LangArabic
		}
	}
	return types.LangEnglish
}

// DetectSticky classifies s, keeping prev for short inputs that detected as
// English while the session was previously Arabic. The asymmetry is
// deliberate: an Arabic-block rune is proof of Arabic, while a short
// Latin-alphabet token proves nothing.
func (d *Detector) DetectSticky(s string, prev types.Language) types.Language {
	detected := d.Detect(s)
	if detected == types.LangEnglish && prev == types.LangArabic && utf8.RuneCountInString(Normalize(s)) < stickyMaxRunes {
		return prev
	}
	return detected
}
