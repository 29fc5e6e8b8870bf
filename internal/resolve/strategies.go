package resolve

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/kalima-ai/kalima/internal/dictionary"
	"github.com/kalima-ai/kalima/pkg/types"
)

// dictionaryFirst is the raw-phrase fast path: the normalized utterance, with
// fillers intact, against the dictionary.
type dictionaryFirst struct {
	w Weights
}

func (s *dictionaryFirst) Name() string { return string(types.SourceDictionaryFirst) }

func (s *dictionaryFirst) Attempt(idx *dictionary.Index, in Input) (types.Match, bool) {
	m, ok := idx.DetectIntent(in.Normalized)
	if !ok || m.Confidence < s.w.DictionaryFirstMin {
		return types.Match{}, false
	}
	m.Source = types.SourceDictionaryFirst
	return m, true
}

// dictionaryStripped retries the dictionary on the filler-stripped utterance.
// A hit here earns a confidence boost: once the politeness noise is gone, a
// partial overlap is strong evidence.
type dictionaryStripped struct {
	w Weights
}

func (s *dictionaryStripped) Name() string { return string(types.SourceDictionary) }

func (s *dictionaryStripped) Attempt(idx *dictionary.Index, in Input) (types.Match, bool) {
	m, ok := idx.DetectIntent(in.Stripped)
	if !ok || m.Confidence < s.w.DictionaryStrippedMin {
		return types.Match{}, false
	}
	m.Confidence = min(m.Confidence+s.w.DictionaryBoost, 1.0)
	m.Source = types.SourceDictionary
	return m, true
}

// exactPhrase accepts when a catalog phrase contains the utterance or vice
// versa. Catalog order decides ties, so the first declared phrase wins.
type exactPhrase struct {
	w Weights
}

func (s *exactPhrase) Name() string { return string(types.SourceExactPhrase) }

func (s *exactPhrase) Attempt(idx *dictionary.Index, in Input) (types.Match, bool) {
	if in.Stripped == "" {
		return types.Match{}, false
	}
	for _, entry := range idx.Entries() {
		for _, phrase := range entry.Phrases {
			if strings.Contains(in.Stripped, phrase) || strings.Contains(phrase, in.Stripped) {
				return types.Match{
					Intent:     entry.Label,
					Confidence: s.w.ExactPhraseConfidence,
					Canonical:  entry.Canonical,
					Matched:    phrase,
					Source:     types.SourceExactPhrase,
				}, true
			}
		}
	}
	return types.Match{}, false
}

// weightedKeyword scores each intent by exact keyword-token hits plus
// per-phrase token overlap, then scales the raw score into a capped
// confidence. Keywords must match whole tokens: substring hits inside
// unrelated words ("restarting" contains "start") earn nothing.
type weightedKeyword struct {
	w Weights
}

func (s *weightedKeyword) Name() string { return string(types.SourceWeightedKeyword) }

func (s *weightedKeyword) Attempt(idx *dictionary.Index, in Input) (types.Match, bool) {
	tokens := make(map[string]struct{}, len(in.Tokens))
	for _, t := range in.Tokens {
		tokens[t] = struct{}{}
	}

	var best types.Match
	var bestScore float64
	for _, entry := range idx.Entries() {
		score := 0.0
		for _, kw := range entry.Keywords {
			if _, ok := tokens[kw]; ok {
				score += s.w.KeywordWeight
			}
		}
		for _, phrase := range entry.Phrases {
			words := strings.Fields(phrase)
			if len(words) == 0 {
				continue
			}
			matched := 0
			for _, w := range words {
				if _, ok := tokens[w]; ok {
					matched++
				}
			}
			score += float64(matched) / float64(len(words))
		}
		if score > bestScore {
			bestScore = score
			best = types.Match{
				Intent:    entry.Label,
				Canonical: entry.Canonical,
				Source:    types.SourceWeightedKeyword,
			}
		}
	}

	conf := min(bestScore/s.w.WeightedDivisor, s.w.WeightedCap)
	if best.Intent == "" || conf <= s.w.WeightedMin {
		return types.Match{}, false
	}
	best.Confidence = conf
	return best, true
}

// fuzzy matches the utterance against every catalog phrase by Levenshtein
// distance. Among phrases whose similarity clears the floor, the smallest
// edit distance wins; similarity is 1 - distance/maxRuneLen.
type fuzzy struct {
	w Weights
}

func (s *fuzzy) Name() string { return string(types.SourceFuzzy) }

func (s *fuzzy) Attempt(idx *dictionary.Index, in Input) (types.Match, bool) {
	var best types.Match
	bestDistance := int(^uint(0) >> 1)

	inLen := utf8.RuneCountInString(in.Normalized)
	for _, entry := range idx.Entries() {
		for _, phrase := range entry.Phrases {
			distance := matchr.Levenshtein(in.Normalized, phrase)
			maxLen := utf8.RuneCountInString(phrase)
			if inLen > maxLen {
				maxLen = inLen
			}
			if maxLen == 0 {
				continue
			}
			similarity := 1 - float64(distance)/float64(maxLen)
			if similarity > s.w.FuzzyMin && distance < bestDistance {
				bestDistance = distance
				best = types.Match{
					Intent:     entry.Label,
					Confidence: similarity,
					Canonical:  entry.Canonical,
					Matched:    phrase,
					Source:     types.SourceFuzzy,
				}
			}
		}
	}
	return best, best.Intent != ""
}

// keywordPresence is the last resort before UNKNOWN: the fraction of an
// intent's keywords present anywhere in the text, as whole tokens or as
// substrings, heavily discounted.
type keywordPresence struct {
	w Weights
}

func (s *keywordPresence) Name() string { return string(types.SourceKeywordPresence) }

func (s *keywordPresence) Attempt(idx *dictionary.Index, in Input) (types.Match, bool) {
	tokens := make(map[string]struct{}, len(in.Tokens))
	for _, t := range in.Tokens {
		tokens[t] = struct{}{}
	}

	var best types.Match
	var bestFraction float64
	for _, entry := range idx.Entries() {
		if len(entry.Keywords) == 0 {
			continue
		}
		present := 0
		for _, kw := range entry.Keywords {
			if _, ok := tokens[kw]; ok || strings.Contains(in.Normalized, kw) {
				present++
			}
		}
		fraction := float64(present) / float64(len(entry.Keywords))
		if fraction > bestFraction {
			bestFraction = fraction
			best = types.Match{
				Intent:    entry.Label,
				Canonical: entry.Canonical,
				Source:    types.SourceKeywordPresence,
			}
		}
	}

	conf := min(bestFraction*s.w.PresenceFactor, s.w.PresenceCap)
	if best.Intent == "" || conf <= s.w.PresenceMin {
		return types.Match{}, false
	}
	best.Confidence = conf
	return best, true
}
