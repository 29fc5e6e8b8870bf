package resolve

// Weights holds every tunable threshold and coefficient of the cascade.
// Values are calibrated together; changing one in isolation shifts the
// relative ranking of the stages.
type Weights struct {
	// DictionaryFirstMin is the minimum dictionary confidence for the
	// raw-phrase fast path to accept.
	DictionaryFirstMin float64 `yaml:"dictionary_first_min"`

	// DictionaryStrippedMin is the minimum dictionary confidence for the
	// filler-stripped pass to accept.
	DictionaryStrippedMin float64 `yaml:"dictionary_stripped_min"`

	// DictionaryBoost is added to the filler-stripped pass confidence,
	// capped at 1.0. Stripping fillers recovered signal, so the hit is
	// rewarded.
	DictionaryBoost float64 `yaml:"dictionary_boost"`

	// ExactPhraseConfidence is the fixed confidence of a phrase-containment
	// hit. Slightly below 1.0 because containment can over-trigger on short
	// phrases.
	ExactPhraseConfidence float64 `yaml:"exact_phrase_confidence"`

	// KeywordWeight is the score added per keyword found in the input.
	KeywordWeight float64 `yaml:"keyword_weight"`

	// WeightedDivisor scales the raw weighted-keyword score into a
	// confidence.
	WeightedDivisor float64 `yaml:"weighted_divisor"`

	// WeightedCap is the weighted-keyword confidence ceiling.
	WeightedCap float64 `yaml:"weighted_cap"`

	// WeightedMin is the exclusive acceptance floor of the weighted stage.
	WeightedMin float64 `yaml:"weighted_min"`

	// FuzzyMin is the exclusive similarity floor of the Levenshtein stage.
	FuzzyMin float64 `yaml:"fuzzy_min"`

	// PresenceFactor scales the keyword-presence fraction.
	PresenceFactor float64 `yaml:"presence_factor"`

	// PresenceCap is the keyword-presence confidence ceiling.
	PresenceCap float64 `yaml:"presence_cap"`

	// PresenceMin is the exclusive acceptance floor of the presence stage.
	PresenceMin float64 `yaml:"presence_min"`
}

// DefaultWeights returns the calibrated production values.
func DefaultWeights() Weights {
	return Weights{
		DictionaryFirstMin:    0.75,
		DictionaryStrippedMin: 0.5,
		DictionaryBoost:       0.2,
		ExactPhraseConfidence: 0.95,
		KeywordWeight:         2.0,
		WeightedDivisor:       5.0,
		WeightedCap:           0.9,
		WeightedMin:           0.6,
		FuzzyMin:              0.5,
		PresenceFactor:        0.7,
		PresenceCap:           0.8,
		PresenceMin:           0.4,
	}
}
