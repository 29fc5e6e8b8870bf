// Package dictionary loads intent pack files and builds the immutable lookup
// index the resolver cascade runs against.
//
// A pack is a set of YAML files, typically one per language. Files are merged
// in load order into a single [Index]; later files add entries but never
// implicitly remove them, which lets deployment-specific packs layer on top
// of the core ones.
package dictionary

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kalima-ai/kalima/pkg/types"
)

// Definition is the YAML schema of one pack file.
type Definition struct {
	// Version is an informational pack version string.
	Version string `yaml:"version"`

	// Language declares which locale this file primarily serves. Required.
	Language types.Language `yaml:"language"`

	// Intents maps an intent label to its trigger phrases and scoring
	// keywords. The first phrase of each intent is its canonical phrase.
	Intents map[string]IntentDef `yaml:"intents"`

	// Fillers are politeness tokens stripped before the second dictionary
	// pass ("please", "من فضلك").
	Fillers []string `yaml:"fillers"`

	// ArabicLexicon lists romanized Arabic words that mark an utterance as
	// Arabic even without Arabic-script runes.
	ArabicLexicon []string `yaml:"arabic_lexicon"`

	// ContextualAnswers maps an answer context (e.g. "yes_no") to canonical
	// answers and their accepted variants.
	ContextualAnswers map[string]map[string][]string `yaml:"contextual_answers"`

	// Examples are up to three showcase phrases surfaced in fallback
	// responses for this file's language.
	Examples []string `yaml:"examples"`

	// rawSynonyms preserves the file order of the synonyms mapping; the
	// partial matcher depends on it for deterministic tie-breaking.
	rawSynonyms []synonymGroup
}

// synonymGroup is one canonical phrase with its variant spellings, in file
// order.
type synonymGroup struct {
	Canonical string
	Variants  []string
}

// defFile mirrors Definition for strict decoding; synonyms is captured as a
// raw node so insertion order survives.
type defFile struct {
	Version           string                         `yaml:"version"`
	Language          types.Language                 `yaml:"language"`
	Synonyms          yaml.Node                      `yaml:"synonyms"`
	Intents           map[string]IntentDef           `yaml:"intents"`
	Fillers           []string                       `yaml:"fillers"`
	ArabicLexicon     []string                       `yaml:"arabic_lexicon"`
	ContextualAnswers map[string]map[string][]string `yaml:"contextual_answers"`
	Examples          []string                       `yaml:"examples"`
}

// UnmarshalYAML decodes a pack file, keeping synonym insertion order.
func (d *Definition) UnmarshalYAML(value *yaml.Node) error {
	var f defFile
	if err := value.Decode(&f); err != nil {
		return err
	}
	d.Version = f.Version
	d.Language = f.Language
	d.Intents = f.Intents
	d.Fillers = f.Fillers
	d.ArabicLexicon = f.ArabicLexicon
	d.ContextualAnswers = f.ContextualAnswers
	d.Examples = f.Examples

	if f.Synonyms.Kind == 0 {
		return nil
	}
	if f.Synonyms.Kind != yaml.MappingNode {
		return errors.New("synonyms must map a canonical phrase to its variant list")
	}
	for i := 0; i+1 < len(f.Synonyms.Content); i += 2 {
		var group synonymGroup
		if err := f.Synonyms.Content[i].Decode(&group.Canonical); err != nil {
			return fmt.Errorf("synonyms key %d: %w", i/2, err)
		}
		if err := f.Synonyms.Content[i+1].Decode(&group.Variants); err != nil {
			return fmt.Errorf("synonyms[%q]: %w", group.Canonical, err)
		}
		d.rawSynonyms = append(d.rawSynonyms, group)
	}
	return nil
}

// IntentDef describes one intent's trigger phrases and scoring keywords.
//
// In YAML it accepts either the full mapping form:
//
//	START_ANALYSIS:
//	  phrases: [begin analysis, start the analysis]
//	  keywords: [analysis, begin]
//
// or the shorthand bare sequence, equivalent to phrases-only:
//
//	START_ANALYSIS: [begin analysis, start the analysis]
type IntentDef struct {
	Phrases  []string `yaml:"phrases"`
	Keywords []string `yaml:"keywords"`
}

// UnmarshalYAML accepts both the mapping and the bare-sequence forms.
func (i *IntentDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		return value.Decode(&i.Phrases)
	}
	type plain IntentDef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*i = IntentDef(p)
	return nil
}

// Validate checks a single pack file for structural problems. All findings
// are joined so a broken pack reports every issue at once.
func (d *Definition) Validate() error {
	var errs []error

	if !d.Language.IsValid() {
		errs = append(errs, fmt.Errorf("language: unsupported value %q", d.Language))
	}
	if len(d.Intents) == 0 {
		errs = append(errs, errors.New("intents: at least one intent is required"))
	}
	for label, def := range d.Intents {
		if label == "" {
			errs = append(errs, errors.New("intents: empty intent label"))
			continue
		}
		if label == types.IntentUnknown {
			errs = append(errs, fmt.Errorf("intents: %q is reserved", types.IntentUnknown))
		}
		if len(def.Phrases) == 0 {
			errs = append(errs, fmt.Errorf("intents[%s]: at least one phrase is required", label))
		}
		for j, p := range def.Phrases {
			if p == "" {
				errs = append(errs, fmt.Errorf("intents[%s]: phrase %d is empty", label, j))
			}
		}
	}
	for _, group := range d.rawSynonyms {
		if group.Canonical == "" {
			errs = append(errs, errors.New("synonyms: empty canonical phrase"))
		}
		if len(group.Variants) == 0 {
			errs = append(errs, fmt.Errorf("synonyms[%s]: no variants listed", group.Canonical))
		}
		for _, v := range group.Variants {
			if v == "" {
				errs = append(errs, fmt.Errorf("synonyms[%s]: empty variant", group.Canonical))
			}
		}
	}
	for ctx, answers := range d.ContextualAnswers {
		if len(answers) == 0 {
			errs = append(errs, fmt.Errorf("contextual_answers[%s]: no answers defined", ctx))
		}
		for canonical, variants := range answers {
			if canonical == "" {
				errs = append(errs, fmt.Errorf("contextual_answers[%s]: empty canonical answer", ctx))
			}
			if len(variants) == 0 {
				errs = append(errs, fmt.Errorf("contextual_answers[%s][%s]: no variants listed", ctx, canonical))
			}
		}
	}

	return errors.Join(errs...)
}
