package vocab

import (
	"sort"
	"strings"

	aho "github.com/anknown/ahocorasick"
)

type termRole uint8

const (
	roleSport termRole = 1 << iota
	roleQuestion
	roleCatalog
	roleGroup
)

// TermIndex matches every vocabulary term in one Aho-Corasick pass.
// It is immutable after construction and safe for concurrent use.
type TermIndex struct {
	vocab     *Vocabulary
	machine   *aho.Machine
	roles     map[string]termRole
	stopwords map[string]struct{}
}

func NewTermIndex(v *Vocabulary) (*TermIndex, error) {
	idx := &TermIndex{
		vocab:     v,
		roles:     make(map[string]termRole),
		stopwords: make(map[string]struct{}, len(v.Stopwords)),
	}
	for _, t := range v.SportsTerms {
		idx.roles[t] |= roleSport
	}
	for _, t := range v.QuestionWords {
		idx.roles[t] |= roleQuestion
	}
	for _, t := range v.CatalogTerms() {
		idx.roles[t] |= roleCatalog
	}
	for _, table := range []GroupTable{v.ContextHints, v.ProductTypes, v.SportCategories} {
		for _, g := range table.Groups {
			for _, t := range g.Terms {
				idx.roles[t] |= roleGroup
			}
		}
	}
	for _, w := range v.Stopwords {
		idx.stopwords[w] = struct{}{}
	}

	keys := make([]string, 0, len(idx.roles))
	for term := range idx.roles {
		if term != "" {
			keys = append(keys, term)
		}
	}
	if len(keys) == 0 {
		return idx, nil
	}
	sort.Strings(keys)
	runes := make([][]rune, 0, len(keys))
	for _, k := range keys {
		runes = append(runes, []rune(k))
	}
	machine := new(aho.Machine)
	if err := machine.Build(runes); err != nil {
		return nil, err
	}
	idx.machine = machine
	return idx, nil
}

func (i *TermIndex) Vocabulary() *Vocabulary {
	return i.vocab
}

// Matches returns the set of vocabulary terms occurring in text.
func (i *TermIndex) Matches(text string) map[string]struct{} {
	out := make(map[string]struct{})
	if i.machine == nil || text == "" {
		return out
	}
	for _, term := range i.machine.MultiPatternSearch([]rune(text), false) {
		out[string(term.Word)] = struct{}{}
	}
	return out
}

func (i *TermIndex) hasRole(text string, role termRole) bool {
	for term := range i.Matches(text) {
		if i.roles[term]&role != 0 {
			return true
		}
	}
	return false
}

func (i *TermIndex) HasDomainTerm(text string) bool {
	return i.hasRole(text, roleSport)
}

func (i *TermIndex) HasQuestionMarker(text string) bool {
	if strings.ContainsAny(text, "?？") {
		return true
	}
	return i.hasRole(text, roleQuestion)
}

func (i *TermIndex) ContextHint(text string) string {
	return i.lookup(i.vocab.ContextHints, i.Matches(text))
}

func (i *TermIndex) IsStopword(word string) bool {
	_, ok := i.stopwords[word]
	return ok
}

// CatalogKeywords returns catalog terms found in text, in vocabulary order.
func (i *TermIndex) CatalogKeywords(text string, limit int) []string {
	matches := i.Matches(text)
	out := make([]string, 0, limit)
	for _, term := range i.vocab.CatalogTerms() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if _, ok := matches[term]; ok {
			out = append(out, term)
		}
	}
	return out
}

func (i *TermIndex) lookup(table GroupTable, matches map[string]struct{}) string {
	for _, g := range table.Groups {
		for _, t := range g.Terms {
			if _, ok := matches[t]; ok {
				return g.Label
			}
		}
	}
	return table.Default
}
