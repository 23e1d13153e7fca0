package domain

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

// Vocabulary maps each stage to its ordered list of allowed interests.
type Vocabulary map[Stage][]string

type vocabularyFile struct {
	Stages map[string][]string `yaml:"stages"`
}

var defaultVocabulary = mustParseVocabulary(vocabularyYAML)

// ParseVocabulary decodes a YAML vocabulary document. Every stage must be
// present and lists must not contain duplicates.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	v := make(Vocabulary, len(Stages))
	for name, interests := range f.Stages {
		st, err := ParseStage(name)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(interests))
		for _, in := range interests {
			if _, dup := seen[in]; dup {
				return nil, fmt.Errorf("vocabulary %s: duplicate interest %q", st, in)
			}
			seen[in] = struct{}{}
		}
		v[st] = interests
	}
	for _, st := range Stages {
		if _, ok := v[st]; !ok {
			return nil, fmt.Errorf("vocabulary: missing stage %s", st)
		}
	}
	return v, nil
}

func mustParseVocabulary(data []byte) Vocabulary {
	v, err := ParseVocabulary(data)
	if err != nil {
		panic(err)
	}
	return v
}

// Allowed returns a copy of the interests allowed for stage.
func (v Vocabulary) Allowed(stage Stage) []string {
	return slices.Clone(v[stage])
}

// AllowedInterests returns the built-in vocabulary for stage, in order.
func AllowedInterests(stage Stage) []string {
	return defaultVocabulary.Allowed(stage)
}
