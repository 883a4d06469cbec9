package routing

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed capabilities.yaml
var defaultVocabularyYAML []byte

const defaultPreferenceKey = "default"

// Generalist capabilities that earn a baseline match when nothing else does.
var generalistCapabilities = []string{"general support", "volunteer coordination"}

type vocabularyFile struct {
	Capabilities []struct {
		Name     string   `yaml:"name"`
		Synonyms []string `yaml:"synonyms"`
	} `yaml:"capabilities"`
	Preferences map[string][]string `yaml:"preferences"`
}

// Vocabulary maps free-text capability descriptions onto canonical tokens and knows
// which capabilities each incident type prefers.
type Vocabulary struct {
	synonyms    map[string]string
	preferences map[string][]string
}

var (
	defaultVocabOnce sync.Once
	defaultVocab     *Vocabulary
)

// DefaultVocabulary returns the vocabulary compiled into the binary.
func DefaultVocabulary() *Vocabulary {
	defaultVocabOnce.Do(func() {
		v, err := LoadVocabulary(strings.NewReader(string(defaultVocabularyYAML)))
		if err != nil {
			panic(fmt.Sprintf("routing: embedded vocabulary: %v", err))
		}
		defaultVocab = v
	})
	return defaultVocab
}

func LoadVocabulary(r io.Reader) (*Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	if len(f.Preferences[defaultPreferenceKey]) == 0 {
		return nil, fmt.Errorf("vocabulary has no %q preference list", defaultPreferenceKey)
	}

	v := &Vocabulary{
		synonyms:    map[string]string{},
		preferences: map[string][]string{},
	}
	for _, c := range f.Capabilities {
		name := normalizePhrase(c.Name)
		if name == "" {
			continue
		}
		v.synonyms[name] = name
		for _, s := range c.Synonyms {
			if key := normalizePhrase(s); key != "" {
				v.synonyms[key] = name
			}
		}
	}
	for incident, prefs := range f.Preferences {
		list := make([]string, 0, len(prefs))
		for _, p := range prefs {
			list = append(list, v.Canonical(p))
		}
		v.preferences[normalizePhrase(incident)] = list
	}
	return v, nil
}

// Canonical returns the canonical capability for a phrase, or the normalized phrase itself.
func (v *Vocabulary) Canonical(phrase string) string {
	p := normalizePhrase(phrase)
	if c, ok := v.synonyms[p]; ok {
		return c
	}
	return p
}

// Preferred returns the ranked capabilities for an incident type.
func (v *Vocabulary) Preferred(incidentType string) []string {
	if prefs, ok := v.preferences[normalizePhrase(incidentType)]; ok {
		return prefs
	}
	return v.preferences[defaultPreferenceKey]
}

// Tokens splits each capability description on list separators and canonicalizes the pieces.
func (v *Vocabulary) Tokens(capabilities []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, raw := range capabilities {
		for _, piece := range splitCapabilityList(raw) {
			tok := v.Canonical(piece)
			if tok == "" {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

func splitCapabilityList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', '|', '/', '\n':
			return true
		}
		return false
	})
}
