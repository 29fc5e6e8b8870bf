// Package answer matches free text against a known set of expected answers,
// used while a session awaits a specific reply ("yes"/"no", a report choice).
//
// Scoring is deliberately more lenient than intent resolution: the candidate
// set is tiny and supplied by the dialog flow, so a weaker signal is still
// trustworthy.
package answer

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/kalima-ai/kalima/internal/lang"
	"github.com/kalima-ai/kalima/pkg/types"
)

// substringBonus is added when one side contains the other, capped at 1.0.
const substringBonus = 0.2

// MatchList matches raw against a caller-supplied list of expected answers.
// Each candidate is its own canonical form.
func MatchList(raw string, expected []string) types.AnswerMatch {
	m := make(map[string]string, len(expected))
	for _, e := range expected {
		if ne := lang.Normalize(e); ne != "" {
			m[ne] = e
		}
	}
	return Match(raw, m)
}

// Match scores raw against each expected answer and returns the best. The
// expected map goes from normalized answer text to its canonical form.
//
// The score per candidate is token overlap plus a substring-containment
// bonus. Exact ties are broken by Jaro-Winkler similarity and then by
// lexicographic order, so the result is deterministic regardless of map
// iteration order. A zero score yields an empty AnswerMatch.
func Match(raw string, expected map[string]string) types.AnswerMatch {
	input := lang.Normalize(raw)
	if input == "" || len(expected) == 0 {
		return types.AnswerMatch{}
	}

	candidates := make([]string, 0, len(expected))
	for ans := range expected {
		candidates = append(candidates, ans)
	}
	sort.Strings(candidates)

	var best types.AnswerMatch
	var bestTie float64
	for _, candidate := range candidates {
		score := lang.TokenOverlap(input, candidate)
		if strings.Contains(input, candidate) || strings.Contains(candidate, input) {
			score = min(score+substringBonus, 1.0)
		}
		if score <= 0 {
			continue
		}
		tie := matchr.JaroWinkler(input, candidate, false)
		if score > best.Confidence || (score == best.Confidence && tie > bestTie) {
			best = types.AnswerMatch{
				Matched:    candidate,
				Confidence: score,
				Canonical:  expected[candidate],
			}
			bestTie = tie
		}
	}
	return best
}
