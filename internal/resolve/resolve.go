// Package resolve implements the cascading intent matcher.
//
// Strategies are ordered from most to least precise; the first strategy whose
// result clears its own acceptance threshold wins, and later stages never
// run. The cascade always produces a result: when every strategy declines it
// falls through to the UNKNOWN terminal.
package resolve

import (
	"github.com/kalima-ai/kalima/internal/dictionary"
	"github.com/kalima-ai/kalima/internal/lang"
	"github.com/kalima-ai/kalima/pkg/types"
)

// Input carries the pre-computed views of one utterance through the cascade,
// so no strategy ever re-normalizes.
type Input struct {
	// Raw is the utterance as received.
	Raw string

	// Normalized is lang.Normalize(Raw).
	Normalized string

	// Stripped is Normalized with filler tokens removed.
	Stripped string

	// Tokens are the tokens of Normalized.
	Tokens []string

	// Language is the detected utterance language.
	Language types.Language
}

// BuildInput computes every view of raw needed by the cascade.
func BuildInput(raw string, fillers map[string]struct{}, language types.Language) Input {
	normalized := lang.Normalize(raw)
	return Input{
		Raw:        raw,
		Normalized: normalized,
		Stripped:   lang.StripFillers(normalized, fillers),
		Tokens:     lang.Tokenize(normalized),
		Language:   language,
	}
}

// Strategy is one stage of the cascade. Attempt returns ok=false to pass the
// utterance to the next stage.
type Strategy interface {
	// Name identifies the stage in logs and metrics.
	Name() string

	// Attempt tries to resolve in against idx.
	Attempt(idx *dictionary.Index, in Input) (types.Match, bool)
}

// Resolver runs the cascade.
type Resolver struct {
	strategies []Strategy
}

// New builds a resolver with the standard stage order and the given weights.
func New(w Weights) *Resolver {
	return &Resolver{
		strategies: []Strategy{
			&dictionaryFirst{w: w},
			&dictionaryStripped{w: w},
			&exactPhrase{w: w},
			&weightedKeyword{w: w},
			&fuzzy{w: w},
			&keywordPresence{w: w},
		},
	}
}

// Resolve runs in through the cascade against idx. It always returns a
// match; when nothing clears a threshold the result is the UNKNOWN terminal
// with confidence 0.
func (r *Resolver) Resolve(idx *dictionary.Index, in Input) types.Match {
	if in.Normalized == "" {
		return fallbackMatch()
	}
	for _, s := range r.strategies {
		if m, ok := s.Attempt(idx, in); ok {
			return m
		}
	}
	return fallbackMatch()
}

func fallbackMatch() types.Match {
	return types.Match{
		Intent:     types.IntentUnknown,
		Confidence: 0,
		Source:     types.SourceFallback,
	}
}
