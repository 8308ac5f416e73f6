package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

type cacheFake struct {
	mu      sync.Mutex
	entries map[string]domain.QAPair
	counts  map[string]int64
	sets    int
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func newCacheFake() *cacheFake {
	return &cacheFake{entries: map[string]domain.QAPair{}, counts: map[string]int64{}}
}

func (f *cacheFake) Get(_ context.Context, fingerprint string) (*domain.QAPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	pair, ok := f.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	return &pair, nil
}

func (f *cacheFake) Set(_ context.Context, fingerprint string, pair domain.QAPair, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[fingerprint] = pair
	f.sets++
	f.lastTTL = ttl
	return nil
}

func (f *cacheFake) IncrementCount(_ context.Context, normalized string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[normalized]++
	return f.counts[normalized], nil
}

func (f *cacheFake) HotQueries(context.Context, int) ([]domain.HotQuery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.HotQuery, 0, len(f.counts))
	for q, c := range f.counts {
		out = append(out, domain.HotQuery{Query: q, Count: c})
	}
	return out, nil
}

func (f *cacheFake) Stats(context.Context) (domain.CacheStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.CacheStats{Entries: int64(len(f.entries)), HotQueries: int64(len(f.counts))}, nil
}

type storeFake struct {
	mu        sync.Mutex
	pairs     []domain.QAPair
	logs      []domain.QueryLogEntry
	searchErr error
	insertErr error
	logCtxErr error
}

func (f *storeFake) Search(_ context.Context, query string, minConfidence float64) (*domain.QAPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var best *domain.QAPair
	for i := range f.pairs {
		p := f.pairs[i]
		if p.Confidence < minConfidence || !strings.Contains(query, p.Question) {
			continue
		}
		if best == nil || p.Confidence > best.Confidence {
			best = &p
		}
	}
	return best, nil
}

func (f *storeFake) Insert(_ context.Context, pair domain.QAPair) (*domain.QAPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	pair.ID = int64(len(f.pairs) + 1)
	f.pairs = append(f.pairs, pair)
	return &pair, nil
}

func (f *storeFake) Log(ctx context.Context, entry domain.QueryLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCtxErr = ctx.Err()
	f.logs = append(f.logs, entry)
	return nil
}

func (f *storeFake) Stats(context.Context) (domain.QAStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.QAStats{Total: int64(len(f.pairs))}, nil
}

func (f *storeFake) logCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

type intentFake struct {
	prediction domain.IntentPrediction
	err        error
}

func (f *intentFake) Classify(context.Context, string) (domain.IntentPrediction, error) {
	if f.err != nil {
		return domain.IntentPrediction{}, f.err
	}
	return f.prediction, nil
}

type embedderFake struct {
	mu        sync.Mutex
	dense     []float32
	denseErr  error
	sparseErr error
	texts     []string
}

func (f *embedderFake) Dense(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.denseErr != nil {
		return nil, f.denseErr
	}
	if f.dense == nil {
		return []float32{0.1, 0.2}, nil
	}
	return f.dense, nil
}

func (f *embedderFake) DenseBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.denseErr != nil {
		return nil, f.denseErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *embedderFake) Sparse(context.Context, string) (domain.SparseVector, error) {
	if f.sparseErr != nil {
		return domain.SparseVector{}, f.sparseErr
	}
	return domain.SparseVector{Indices: []uint32{1}, Values: []float32{1}}, nil
}

type indexFake struct {
	mu          sync.Mutex
	candidates  []domain.RetrievedCandidate
	bySearch    [][]domain.RetrievedCandidate
	parents     []domain.DocumentBlock
	searchErr   error
	parentsErr  error
	indexErr    error
	searches    int
	parentIDs   []string
	indexed     []domain.DocumentBlock
	indexedDims int
}

func (f *indexFake) HybridSearch(_ context.Context, _ []float32, _ domain.SparseVector, _ int) ([]domain.RetrievedCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.bySearch) >= f.searches {
		return f.bySearch[f.searches-1], nil
	}
	return f.candidates, nil
}

func (f *indexFake) GetParents(_ context.Context, ids []string) ([]domain.DocumentBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parentIDs = append([]string(nil), ids...)
	if f.parentsErr != nil {
		return nil, f.parentsErr
	}
	return f.parents, nil
}

func (f *indexFake) IndexBlocks(_ context.Context, blocks []domain.DocumentBlock, dense [][]float32, _ []domain.SparseVector) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed = blocks
	f.indexedDims = len(dense)
	return nil
}

type generatorCall struct {
	documents int
	isGeneral bool
}

type generatorFake struct {
	mu         sync.Mutex
	calls      []generatorCall
	reply      string
	err        error
	generalErr error
	block      bool
}

func (f *generatorFake) Complete(ctx context.Context, _ string, documents []domain.RetrievedDocument, isGeneral bool) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, generatorCall{documents: len(documents), isGeneral: isGeneral})
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if isGeneral && f.generalErr != nil {
		return "", f.generalErr
	}
	if !isGeneral && f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	if isGeneral {
		return "general reply", nil
	}
	return "professional reply", nil
}

type segmenterFake struct {
	tokens      []string
	tags        []domain.Token
	keywords    []string
	keywordsErr error
}

func (f *segmenterFake) Cut(string) []string       { return f.tokens }
func (f *segmenterFake) Tag(string) []domain.Token { return f.tags }
func (f *segmenterFake) Keywords(string, int) ([]string, error) {
	if f.keywordsErr != nil {
		return nil, f.keywordsErr
	}
	return f.keywords, nil
}

type termsFake struct {
	domainTerm bool
	question   bool
	hint       string
	stopwords  map[string]bool
}

func (f *termsFake) HasDomainTerm(string) bool     { return f.domainTerm }
func (f *termsFake) HasQuestionMarker(string) bool { return f.question }
func (f *termsFake) ContextHint(string) string {
	if f.hint == "" {
		return "体育用品"
	}
	return f.hint
}
func (f *termsFake) IsStopword(word string) bool { return f.stopwords[word] }

var errBoom = errors.New("boom")
