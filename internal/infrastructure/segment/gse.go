package segment

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-ego/gse"
	"github.com/go-ego/gse/hmm/idf"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/vocab"
)

// catalogTermFreq ranks catalog words above generic dictionary entries.
const catalogTermFreq = 20000

// Segmenter wraps gse with the catalog dictionary loaded on top of the
// embedded Chinese dictionary.
type Segmenter struct {
	seg      gse.Segmenter
	tags     *idf.TagExtracter
	stopword func(string) bool
	// catalogPOS wins over gse's tag: AddToken keeps the embedded entry
	// when a catalog word is already in the base dictionary.
	catalogPOS map[string]string
}

func New(v *vocab.Vocabulary, isStopword func(string) bool) (*Segmenter, error) {
	var seg gse.Segmenter
	if err := seg.LoadDictEmbed(); err != nil {
		return nil, fmt.Errorf("load gse dictionary: %w", err)
	}
	catalogPOS := make(map[string]string)
	if v != nil {
		for _, word := range v.Dictionary {
			pos := word.POS
			if pos == "" {
				pos = "n"
			}
			catalogPOS[word.Word] = pos
		}
		for _, term := range v.SportsTerms {
			if _, ok := catalogPOS[term]; !ok {
				catalogPOS[term] = "n"
			}
		}
		for word, pos := range catalogPOS {
			if err := seg.AddToken(word, catalogTermFreq, pos); err != nil {
				return nil, fmt.Errorf("add catalog token %q: %w", word, err)
			}
		}
		seg.CalcToken()
	}
	if isStopword == nil {
		isStopword = func(string) bool { return false }
	}

	s := &Segmenter{seg: seg, stopword: isStopword, catalogPOS: catalogPOS}

	var te idf.TagExtracter
	te.WithGse(seg)
	if err := te.LoadIdfStr(gse.ZhIdf); err != nil {
		slog.Warn("gse_idf_unavailable", "error", err)
		return s, nil
	}
	s.tags = &te
	return s, nil
}

func (s *Segmenter) Cut(text string) []string {
	return s.seg.Cut(text, true)
}

func (s *Segmenter) Tag(text string) []domain.Token {
	segs := s.seg.Pos(text, false)
	out := make([]domain.Token, 0, len(segs))
	for _, sp := range segs {
		pos := sp.Pos
		if override, ok := s.catalogPOS[sp.Text]; ok {
			pos = override
		}
		out = append(out, domain.Token{Text: sp.Text, POS: pos})
	}
	return out
}

// Keywords ranks terms by TF-IDF when the IDF table loaded, otherwise by
// term frequency.
func (s *Segmenter) Keywords(text string, topK int) ([]string, error) {
	if topK <= 0 {
		return []string{}, nil
	}
	if s.tags != nil {
		out := make([]string, 0, topK)
		for _, tag := range s.tags.ExtractTags(text, topK) {
			out = append(out, tag.Text)
		}
		return out, nil
	}
	return s.frequencyKeywords(text, topK), nil
}

// Terms returns the non-stopword search terms of text.
func (s *Segmenter) Terms(text string) []string {
	out := make([]string, 0)
	for _, tok := range s.Cut(text) {
		tok = strings.TrimSpace(tok)
		if tok == "" || s.stopword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func (s *Segmenter) frequencyKeywords(text string, topK int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, tok := range s.Terms(text) {
		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > topK {
		order = order[:topK]
	}
	return order
}
