package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

const (
	bm25K1         = 1.2
	maxSparseTerms = 256
)

// Tokenizer splits text into sparse terms.
type Tokenizer func(text string) []string

// SparseEncoder builds hashed BM25-style term weights. Queries and documents
// share one vocabulary space, so the same encoder serves both sides.
type SparseEncoder struct {
	tokenize Tokenizer
}

func NewSparseEncoder(tokenize Tokenizer) *SparseEncoder {
	if tokenize == nil {
		tokenize = TokenizeMixed
	}
	return &SparseEncoder{tokenize: tokenize}
}

func (e *SparseEncoder) Sparse(_ context.Context, text string) (domain.SparseVector, error) {
	return e.Encode(text), nil
}

func (e *SparseEncoder) Encode(text string) domain.SparseVector {
	termFreq := make(map[uint32]float64, 32)
	for _, token := range e.tokenize(strings.ToLower(text)) {
		token = strings.TrimSpace(token)
		if !hasWordRune(token) {
			continue
		}
		termFreq[hashToken(token)]++
	}
	return termFreqToSparse(termFreq)
}

// termFreqToSparse keeps the heaviest maxSparseTerms entries, sorted by index.
func termFreqToSparse(tf map[uint32]float64) domain.SparseVector {
	if len(tf) == 0 {
		return domain.SparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	if len(indices) > maxSparseTerms {
		sort.Slice(indices, func(i, j int) bool {
			if tf[indices[i]] != tf[indices[j]] {
				return tf[indices[i]] > tf[indices[j]]
			}
			return indices[i] < indices[j]
		})
		indices = indices[:maxSparseTerms]
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tfValue := tf[idx]
		weight := (tfValue * (bm25K1 + 1.0)) / (tfValue + bm25K1)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return domain.SparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

// TokenizeMixed emits ASCII alphanumeric runs as words and Han runs as
// overlapping bigrams (single characters for one-rune runs).
func TokenizeMixed(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var word strings.Builder
	var han []rune

	flushWord := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}
	flushHan := func() {
		switch len(han) {
		case 0:
		case 1:
			out = append(out, string(han))
		default:
			for i := 0; i+1 < len(han); i++ {
				out = append(out, string(han[i:i+2]))
			}
		}
		han = han[:0]
	}

	for _, r := range s {
		r = unicode.ToLower(r)
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			han = append(han, r)
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			flushHan()
			word.WriteRune(r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()
	return out
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
