package vocab

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultVocabulary []byte

type DictionaryWord struct {
	Word string `yaml:"word"`
	POS  string `yaml:"pos"`
}

type Group struct {
	Label string   `yaml:"label"`
	Terms []string `yaml:"terms"`
}

// GroupTable resolves a label by the first group with a matching term.
type GroupTable struct {
	Default string  `yaml:"default"`
	Groups  []Group `yaml:"groups"`
}

type Vocabulary struct {
	SportsTerms     []string         `yaml:"sports_terms"`
	Dictionary      []DictionaryWord `yaml:"dictionary"`
	QuestionWords   []string         `yaml:"question_words"`
	Stopwords       []string         `yaml:"stopwords"`
	ContextHints    GroupTable       `yaml:"context_hints"`
	ProductTypes    GroupTable       `yaml:"product_types"`
	SportCategories GroupTable       `yaml:"sport_categories"`
	KeywordLimit    int              `yaml:"keyword_limit"`
}

func Default() (*Vocabulary, error) {
	return Parse(defaultVocabulary)
}

// Load reads a vocabulary file, or the embedded default when path is empty.
func Load(path string) (*Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary yaml: %w", err)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	if v.KeywordLimit <= 0 {
		v.KeywordLimit = 5
	}
	return &v, nil
}

func (v *Vocabulary) validate() error {
	if len(v.SportsTerms) == 0 {
		return errors.New("vocabulary: sports_terms must not be empty")
	}
	if strings.TrimSpace(v.ContextHints.Default) == "" {
		return errors.New("vocabulary: context_hints.default is required")
	}
	for _, g := range v.ContextHints.Groups {
		if strings.TrimSpace(g.Label) == "" || len(g.Terms) == 0 {
			return fmt.Errorf("vocabulary: context hint group %q needs a label and terms", g.Label)
		}
	}
	return nil
}

// CatalogTerms lists sports terms followed by dictionary words, deduplicated.
func (v *Vocabulary) CatalogTerms() []string {
	seen := make(map[string]struct{}, len(v.SportsTerms)+len(v.Dictionary))
	out := make([]string, 0, len(v.SportsTerms)+len(v.Dictionary))
	add := func(term string) {
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	for _, t := range v.SportsTerms {
		add(t)
	}
	for _, w := range v.Dictionary {
		add(w.Word)
	}
	return out
}
