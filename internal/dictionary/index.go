package dictionary

import (
	"fmt"
	"sort"
	"time"

	"github.com/kalima-ai/kalima/internal/lang"
	"github.com/kalima-ai/kalima/pkg/types"
)

// partialThreshold is the minimum token-overlap score for a synonym variant
// to count as a partial dictionary hit.
const partialThreshold = 0.5

// maxExamples caps how many showcase phrases a fallback response surfaces.
const maxExamples = 3

// IntentEntry is one intent's normalized catalog data, in deterministic
// label order.
type IntentEntry struct {
	// Label is the closed-set intent label, e.g. "START_ANALYSIS".
	Label string

	// Canonical is the intent's first declared phrase, normalized.
	Canonical string

	// Phrases are all normalized trigger phrases.
	Phrases []string

	// Keywords are the normalized scoring keywords.
	Keywords []string
}

// Stats is an informational snapshot of a built index.
type Stats struct {
	Versions       []string         `json:"versions"`
	Languages      []types.Language `json:"languages"`
	Intents        int              `json:"intents"`
	Phrases        int              `json:"phrases"`
	Synonyms       int              `json:"synonyms"`
	AnswerContexts int              `json:"answer_contexts"`
	LoadedAt       time.Time        `json:"loaded_at"`
}

// Index is the immutable merged lookup structure built from one or more pack
// definitions. Once built it is never mutated, so it is safe for concurrent
// readers without locking; reloads build a fresh Index and swap it in.
type Index struct {
	synonyms     map[string]string
	synonymOrder []string
	intents      map[string]string
	entries      []IntentEntry
	entryByLabel map[string]int
	fillers      map[string]struct{}
	answers      map[string]map[string]string
	lexicon      []string
	examples     map[types.Language][]string
	stats        Stats
}

// NewIndex merges defs (in order, later files win on collisions) into an
// immutable index. Every phrase, variant, keyword, and answer is normalized
// during the build so lookups never normalize twice.
func NewIndex(defs ...*Definition) (*Index, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("dictionary: no definitions to index")
	}

	idx := &Index{
		synonyms:     make(map[string]string),
		intents:      make(map[string]string),
		entryByLabel: make(map[string]int),
		fillers:      make(map[string]struct{}),
		answers:      make(map[string]map[string]string),
		examples:     make(map[types.Language][]string),
	}

	seenLang := make(map[types.Language]bool)
	for _, def := range defs {
		if def.Version != "" {
			idx.stats.Versions = append(idx.stats.Versions, def.Version)
		}
		if !seenLang[def.Language] {
			seenLang[def.Language] = true
			idx.stats.Languages = append(idx.stats.Languages, def.Language)
		}

		// Synonyms first: intent phrases resolve through them, so the
		// synonym table must be complete before intents register.
		for _, group := range def.rawSynonyms {
			canonical := lang.Normalize(group.Canonical)
			if canonical == "" {
				continue
			}
			idx.addSynonym(canonical, canonical)
			for _, v := range group.Variants {
				if variant := lang.Normalize(v); variant != "" {
					idx.addSynonym(variant, canonical)
				}
			}
		}

		labels := make([]string, 0, len(def.Intents))
		for label := range def.Intents {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			idx.addIntent(label, def.Intents[label])
		}

		for _, f := range def.Fillers {
			if f = lang.Normalize(f); f != "" {
				idx.fillers[f] = struct{}{}
			}
		}
		for _, w := range def.ArabicLexicon {
			if w = lang.Normalize(w); w != "" {
				idx.lexicon = append(idx.lexicon, w)
			}
		}
		for ctx, answers := range def.ContextualAnswers {
			dst := idx.answers[ctx]
			if dst == nil {
				dst = make(map[string]string, len(answers))
				idx.answers[ctx] = dst
			}
			for canonical, variants := range answers {
				if nc := lang.Normalize(canonical); nc != "" {
					dst[nc] = canonical
				}
				for _, v := range variants {
					if nv := lang.Normalize(v); nv != "" {
						dst[nv] = canonical
					}
				}
			}
		}
		for _, ex := range def.Examples {
			idx.examples[def.Language] = append(idx.examples[def.Language], ex)
		}
	}

	idx.stats.Synonyms = len(idx.synonyms)
	idx.stats.Intents = len(idx.entries)
	idx.stats.LoadedAt = time.Now().UTC()
	return idx, nil
}

func (idx *Index) addSynonym(variant, canonical string) {
	if _, dup := idx.synonyms[variant]; !dup {
		idx.synonymOrder = append(idx.synonymOrder, variant)
	}
	idx.synonyms[variant] = canonical
}

func (idx *Index) addIntent(label string, def IntentDef) {
	pos, exists := idx.entryByLabel[label]
	if !exists {
		pos = len(idx.entries)
		idx.entries = append(idx.entries, IntentEntry{Label: label})
		idx.entryByLabel[label] = pos
	}
	entry := &idx.entries[pos]

	for _, p := range def.Phrases {
		// Each declared phrase resolves to its canonical form, falling back
		// to the phrase itself when the synonym table has no mapping.
		np := idx.MapToCanonical(lang.Normalize(p))
		if np == "" {
			continue
		}
		if entry.Canonical == "" {
			entry.Canonical = np
		}
		if _, dup := idx.intents[np]; !dup {
			entry.Phrases = append(entry.Phrases, np)
			idx.stats.Phrases++
		}
		idx.intents[np] = label
	}
	for _, k := range def.Keywords {
		if nk := lang.Normalize(k); nk != "" {
			entry.Keywords = append(entry.Keywords, nk)
		}
	}
}

// MapToCanonical resolves a normalized phrase through the synonym table,
// returning the phrase itself when no mapping exists.
func (idx *Index) MapToCanonical(normalized string) string {
	if canonical, ok := idx.synonyms[normalized]; ok {
		return canonical
	}
	return normalized
}

// IntentFor returns the intent label a normalized canonical phrase maps to.
func (idx *Index) IntentFor(canonical string) (string, bool) {
	label, ok := idx.intents[canonical]
	return label, ok
}

// DetectIntent looks up a normalized utterance against the dictionary.
//
// A direct hit (the utterance, after synonym resolution, is a known intent
// phrase) returns confidence 1.0. Otherwise each synonym variant is scored by
// token overlap in declaration order and the best score at or above 0.5 wins;
// earlier variants break ties.
func (idx *Index) DetectIntent(normalized string) (types.Match, bool) {
	if normalized == "" {
		return types.Match{}, false
	}

	canonical := idx.MapToCanonical(normalized)
	if label, ok := idx.intents[canonical]; ok {
		return types.Match{
			Intent:     label,
			Confidence: 1.0,
			Canonical:  canonical,
			Matched:    normalized,
		}, true
	}

	var best types.Match
	for _, variant := range idx.synonymOrder {
		score := lang.TokenOverlap(normalized, variant)
		if score < partialThreshold || score <= best.Confidence {
			continue
		}
		canonical := idx.synonyms[variant]
		label, ok := idx.intents[canonical]
		if !ok {
			continue
		}
		best = types.Match{
			Intent:     label,
			Confidence: score,
			Canonical:  canonical,
			Matched:    variant,
		}
	}
	return best, best.Intent != ""
}

// Entries returns the intent catalog in deterministic order. The returned
// slice is shared; callers must not modify it.
func (idx *Index) Entries() []IntentEntry { return idx.entries }

// Fillers returns the filler-token set. Callers must not modify it.
func (idx *Index) Fillers() map[string]struct{} { return idx.fillers }

// ArabicLexicon returns the romanized-Arabic detection words.
func (idx *Index) ArabicLexicon() []string { return idx.lexicon }

// Answers returns the expected answers for a context, or nil when the
// context is unknown. Callers must not modify the returned map.
func (idx *Index) Answers(context string) map[string]string {
	return idx.answers[context]
}

// AnswerContexts returns the known answer-context names, sorted.
func (idx *Index) AnswerContexts() []string {
	out := make([]string, 0, len(idx.answers))
	for ctx := range idx.answers {
		out = append(out, ctx)
	}
	sort.Strings(out)
	return out
}

// Examples returns up to three showcase phrases for l, falling back to
// English when the language has none.
func (idx *Index) Examples(l types.Language) []string {
	ex := idx.examples[l]
	if len(ex) == 0 && l != types.LangEnglish {
		ex = idx.examples[types.LangEnglish]
	}
	if len(ex) > maxExamples {
		ex = ex[:maxExamples]
	}
	return ex
}

// Stats returns the informational snapshot captured at build time.
func (idx *Index) Stats() Stats {
	s := idx.stats
	s.AnswerContexts = len(idx.answers)
	return s
}
