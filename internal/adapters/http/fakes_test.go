package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/config"
	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

type resolverFake struct {
	err      error
	batchErr error
	last     domain.ResolutionRequest
}

func (f *resolverFake) Resolve(_ context.Context, req domain.ResolutionRequest) (*domain.Resolution, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Resolution{Query: req.Query, Reply: "答复", Source: domain.SourceCache, SessionID: "s-1"}, nil
}

func (f *resolverFake) ResolveBatch(ctx context.Context, reqs []domain.ResolutionRequest) ([]*domain.Resolution, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]*domain.Resolution, 0, len(reqs))
	for _, req := range reqs {
		res, _ := f.Resolve(ctx, req)
		out = append(out, res)
	}
	return out, nil
}

type optimizerFake struct {
	strategy domain.Strategy
	err      error
}

func (f *optimizerFake) Optimize(_ context.Context, query string, strategy domain.Strategy) (domain.OptimizationResult, error) {
	f.strategy = strategy
	if f.err != nil {
		return domain.OptimizationResult{Strategy: domain.StrategyFallback, OriginalQuery: query}, f.err
	}
	return domain.OptimizationResult{Strategy: domain.StrategyDirect, OriginalQuery: query, OptimizedQuery: query, SubQueries: []string{query}}, nil
}

type qaFake struct {
	limit int
	err   error
}

func (f *qaFake) AddQAPair(_ context.Context, question, answer, category string) (*domain.QAPair, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.QAPair{ID: 7, Question: question, Answer: answer, Category: category, Confidence: 1}, nil
}

func (f *qaFake) HotQueries(_ context.Context, limit int) ([]domain.HotQuery, error) {
	f.limit = limit
	return []domain.HotQuery{{Query: "篮球鞋多少钱", Count: 4}}, f.err
}

func (f *qaFake) Status(context.Context) domain.SystemStatus {
	return domain.SystemStatus{QA: domain.QAStats{Total: 3}, VectorBackend: "qdrant"}
}

func (f *qaFake) ImportQAPairs(context.Context, []domain.QAPair) (domain.ImportReport, error) {
	return domain.ImportReport{}, nil
}

type ingestFake struct {
	err  error
	last domain.UploadRequest
}

func (f *ingestFake) Upload(_ context.Context, req domain.UploadRequest, body io.Reader) (*domain.Document, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		Title:       req.Title,
		Category:    req.Category,
		StoragePath: "doc-1_file.txt",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "a.txt", MimeType: "text/plain", StoragePath: "a", Status: domain.StatusReady}, nil
}

type testDeps struct {
	resolver  *resolverFake
	optimizer *optimizerFake
	qa        *qaFake
	ingest    *ingestFake
	docs      docsFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		resolver:  &resolverFake{},
		optimizer: &optimizerFake{},
		qa:        &qaFake{},
		ingest:    &ingestFake{},
	}
}

func (d *testDeps) handler(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	h, err := NewRouter(cfg, Dependencies{
		Resolver:  d.resolver,
		Optimizer: d.optimizer,
		QA:        d.qa,
		Ingestor:  d.ingest,
		Documents: d.docs,
	}).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return h
}

func validatingConfig() config.Config {
	return config.Config{APIRequestValidation: true}
}

var errBoom = errors.New("boom")
