package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

const (
	maxSubQueryPhrases = 5
	maxKeywordConcepts = 3
	keywordCandidates  = 5
	maxHypotheses      = 3
)

var strategyConfidence = map[domain.Strategy]float64{
	domain.StrategyDirect:     0.9,
	domain.StrategySubquery:   0.85,
	domain.StrategyBacktrack:  0.8,
	domain.StrategyHypothesis: 0.75,
	domain.StrategyFallback:   0.5,
}

var (
	questionSuffixes  = []string{"的解答", "的相关信息", "的详细说明"}
	statementSuffixes = []string{"的特点", "的用途", "的推荐", "的对比"}
)

// hypothesisExpansions maps a hypothesis keyword to the search terms appended to the query.
var hypothesisExpansions = []struct {
	keyword string
	terms   string
}{
	{"特点", "特点 优势"},
	{"用途", "用途 应用场景"},
	{"推荐", "推荐 选择"},
	{"对比", "对比 区别"},
}

type OptimizeQueryUseCase struct {
	segmenter ports.Segmenter
	terms     ports.TermIndex
}

func NewOptimizeQueryUseCase(segmenter ports.Segmenter, terms ports.TermIndex) *OptimizeQueryUseCase {
	return &OptimizeQueryUseCase{
		segmenter: segmenter,
		terms:     terms,
	}
}

// Optimize rewrites query with the requested strategy. An unknown strategy
// yields the fallback result together with ErrInvalidStrategy.
func (uc *OptimizeQueryUseCase) Optimize(_ context.Context, query string, strategy domain.Strategy) (domain.OptimizationResult, error) {
	query = strings.TrimSpace(query)
	strategy = domain.Strategy(strings.ToLower(strings.TrimSpace(string(strategy))))
	if strategy == "" {
		strategy = domain.StrategyAuto
	}

	features := uc.Features(query)
	reason := "requested"
	if strategy == domain.StrategyAuto {
		strategy, reason = SelectStrategy(features)
	}

	var (
		subQueries []string
		err        error
	)
	switch strategy {
	case domain.StrategyDirect:
		subQueries = []string{cleanDirectQuery(query)}
	case domain.StrategySubquery:
		subQueries = uc.decompose(query)
	case domain.StrategyBacktrack:
		subQueries, err = uc.backtrack(query)
	case domain.StrategyHypothesis:
		subQueries = hypothesize(query)
	case domain.StrategyFallback:
		return fallbackOptimization(query, "fallback requested"), nil
	default:
		return fallbackOptimization(query, "unsupported strategy "+string(strategy)),
			domain.WrapError(domain.ErrInvalidStrategy, "optimize query", fmt.Errorf("unknown strategy %q", strategy))
	}
	if err == nil && (len(subQueries) == 0 || subQueries[0] == "") {
		err = errors.New("strategy produced no search query")
	}
	if err != nil {
		slog.Warn("optimization_fallback", "strategy", string(strategy), "error", err)
		return fallbackOptimization(query, err.Error()), nil
	}

	optimized := query
	if strategy == domain.StrategyDirect {
		optimized = subQueries[0]
	}
	return domain.OptimizationResult{
		Strategy:       strategy,
		OriginalQuery:  query,
		OptimizedQuery: optimized,
		SubQueries:     subQueries,
		Confidence:     strategyConfidence[strategy],
		Explanation:    fmt.Sprintf("%s: %s, %d search queries", strategy, reason, len(subQueries)),
	}, nil
}

func (uc *OptimizeQueryUseCase) Features(query string) domain.QueryFeatures {
	tokens := 0
	for _, tok := range uc.segmenter.Cut(query) {
		if strings.TrimSpace(tok) != "" {
			tokens++
		}
	}
	return domain.QueryFeatures{
		Length:            utf8.RuneCountInString(query),
		TokenCount:        tokens,
		HasQuestionMarker: uc.terms.HasQuestionMarker(query),
		HasDomainTerm:     uc.terms.HasDomainTerm(query),
	}
}

// SelectStrategy applies the selection rules in priority order.
func SelectStrategy(f domain.QueryFeatures) (domain.Strategy, string) {
	switch {
	case f.Length < 10 && f.TokenCount <= 3:
		return domain.StrategyDirect, "short query"
	case f.HasQuestionMarker && f.HasDomainTerm:
		return domain.StrategySubquery, "question about a domain term"
	case f.Length > 20 && f.TokenCount > 8:
		return domain.StrategyBacktrack, "long multi-concept query"
	case f.HasDomainTerm && !f.HasQuestionMarker:
		return domain.StrategyHypothesis, "domain statement"
	default:
		return domain.StrategyDirect, "default"
	}
}

func cleanDirectQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	var b strings.Builder
	b.Grow(len(query))
	for _, r := range query {
		switch r {
		case '？':
			r = '?'
		case '！':
			r = '!'
		case '，':
			r = ','
		case '。':
			r = '.'
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == ' ':
			b.WriteRune(r)
		case r == '?', r == '!', r == '.', r == ',':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func (uc *OptimizeQueryUseCase) decompose(query string) []string {
	var nouns, verbs []string
	var noun, verb strings.Builder
	flushNoun := func() {
		if noun.Len() > 0 {
			nouns = append(nouns, noun.String())
			noun.Reset()
		}
	}
	flushVerb := func() {
		if verb.Len() > 0 {
			verbs = append(verbs, verb.String())
			verb.Reset()
		}
	}
	for _, tok := range uc.segmenter.Tag(query) {
		switch {
		case strings.HasPrefix(tok.POS, "n"):
			noun.WriteString(tok.Text)
			flushVerb()
		case strings.HasPrefix(tok.POS, "v"):
			verb.WriteString(tok.Text)
			flushNoun()
		default:
			flushNoun()
			flushVerb()
		}
	}
	flushNoun()
	flushVerb()

	hint := uc.terms.ContextHint(query)
	seen := make(map[string]struct{}, maxSubQueryPhrases)
	out := make([]string, 0, maxSubQueryPhrases)
	for _, phrase := range append(nouns, verbs...) {
		if len(out) == maxSubQueryPhrases {
			break
		}
		if utf8.RuneCountInString(phrase) < 2 {
			continue
		}
		enhanced := phrase + " " + hint
		if _, ok := seen[enhanced]; ok {
			continue
		}
		seen[enhanced] = struct{}{}
		out = append(out, enhanced)
	}
	if len(out) == 0 {
		return []string{query}
	}
	return out
}

func (uc *OptimizeQueryUseCase) backtrack(query string) ([]string, error) {
	keywords, err := uc.segmenter.Keywords(query, keywordCandidates)
	if err != nil {
		return nil, domain.WrapError(domain.ErrOptimization, "extract keywords", err)
	}
	out := []string{query}
	concepts := 0
	for _, word := range keywords {
		if concepts == maxKeywordConcepts {
			break
		}
		if uc.terms.IsStopword(word) || utf8.RuneCountInString(word) <= 1 {
			continue
		}
		out = append(out, "什么是"+word)
		concepts++
	}
	return out, nil
}

func hypothesize(query string) []string {
	var hypotheses []string
	if strings.ContainsAny(query, "?？") {
		stripped := strings.TrimSpace(strings.NewReplacer("?", "", "？", "").Replace(query))
		hypotheses = []string{"关于" + stripped + questionSuffixes[0]}
		for _, suffix := range questionSuffixes[1:] {
			hypotheses = append(hypotheses, stripped+suffix)
		}
	} else {
		for _, suffix := range statementSuffixes {
			hypotheses = append(hypotheses, query+suffix)
		}
	}
	if len(hypotheses) > maxHypotheses {
		hypotheses = hypotheses[:maxHypotheses]
	}

	out := make([]string, 0, len(hypotheses)+1)
	out = append(out, query)
	for _, h := range hypotheses {
		out = append(out, hypothesisToQuery(h, query))
	}
	return out
}

func hypothesisToQuery(hypothesis, query string) string {
	for _, e := range hypothesisExpansions {
		if strings.Contains(hypothesis, e.keyword) {
			return query + " " + e.terms
		}
	}
	return hypothesis
}

func fallbackOptimization(query, reason string) domain.OptimizationResult {
	return domain.OptimizationResult{
		Strategy:       domain.StrategyFallback,
		OriginalQuery:  query,
		OptimizedQuery: query,
		SubQueries:     []string{query},
		Confidence:     strategyConfidence[domain.StrategyFallback],
		Explanation:    "fallback: " + reason,
	}
}
