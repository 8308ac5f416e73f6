package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

const (
	maxQueryRunes   = 1000
	logWriteTimeout = 5 * time.Second
	apologyTemplate = "抱歉，处理您的查询时出现错误，请稍后重试或联系人工客服。错误信息：%s"
)

// DocumentRetriever produces fused documents for a professional query.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, subQueries []string) ([]domain.RetrievedDocument, error)
}

type ResolverConfig struct {
	CacheTTL                 time.Duration
	StoreConfidenceThreshold float64
	Timeout                  time.Duration
	BatchMax                 int
}

// ResolveQueryUseCase cascades cache -> store -> RAG and always produces a reply
// for well-formed input.
type ResolveQueryUseCase struct {
	cache     ports.AnswerCache
	store     ports.QAStore
	gate      *IntentGate
	optimizer ports.QueryOptimizer
	retriever DocumentRetriever
	generator ports.AnswerGenerator
	observer  ports.ResolutionObserver
	cfg       ResolverConfig
	now       func() time.Time
}

func NewResolveQueryUseCase(
	cache ports.AnswerCache,
	store ports.QAStore,
	gate *IntentGate,
	optimizer ports.QueryOptimizer,
	retriever DocumentRetriever,
	generator ports.AnswerGenerator,
	observer ports.ResolutionObserver,
	cfg ResolverConfig,
) *ResolveQueryUseCase {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.StoreConfidenceThreshold <= 0 {
		cfg.StoreConfidenceThreshold = 0.8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 10
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &ResolveQueryUseCase{
		cache:     cache,
		store:     store,
		gate:      gate,
		optimizer: optimizer,
		retriever: retriever,
		generator: generator,
		observer:  observer,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (uc *ResolveQueryUseCase) Resolve(ctx context.Context, req domain.ResolutionRequest) (*domain.Resolution, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve query", errors.New("query is required"))
	}
	if utf8.RuneCountInString(query) > maxQueryRunes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve query", fmt.Errorf("query exceeds %d characters", maxQueryRunes))
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	start := uc.now()
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	fingerprint := domain.Fingerprint(query)
	normalized := domain.NormalizeQuery(query)
	resp := &domain.Resolution{
		Query:     query,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	}

	if pair := uc.probeCache(ctx, fingerprint); pair != nil {
		uc.incrementCount(ctx, normalized)
		resp.Reply = pair.Answer
		uc.finish(resp, domain.SourceCache, start)
		return resp, nil
	}

	if pair := uc.probeStore(ctx, query); pair != nil {
		resp.Reply = pair.Answer
		uc.writeThrough(ctx, fingerprint, normalized, *pair)
		uc.finish(resp, domain.SourceStore, start)
		uc.logQuery(ctx, resp)
		return resp, nil
	}

	details, reply, err := uc.runRAG(ctx, query)
	resp.RAG = details
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrTimeout) {
			err = domain.WrapError(domain.ErrTimeout, "resolve query", err)
		}
		slog.Error("query_resolution_failed", "session_id", req.SessionID, "error", err)
		resp.Reply = fmt.Sprintf(apologyTemplate, err.Error())
		resp.Error = err.Error()
		uc.finish(resp, domain.SourceError, start)
		uc.logQuery(ctx, resp)
		return resp, nil
	}

	resp.Reply = reply
	uc.writeThrough(ctx, fingerprint, normalized, domain.QAPair{
		Question: query,
		Answer:   resp.Reply,
		Category: string(domain.SourceRAG),
	})
	uc.finish(resp, domain.SourceRAG, start)
	uc.logQuery(ctx, resp)
	return resp, nil
}

// ResolveBatch resolves each request independently and in order.
func (uc *ResolveQueryUseCase) ResolveBatch(ctx context.Context, reqs []domain.ResolutionRequest) ([]*domain.Resolution, error) {
	if len(reqs) == 0 || len(reqs) > uc.cfg.BatchMax {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve batch", fmt.Errorf("batch size must be 1..%d, got %d", uc.cfg.BatchMax, len(reqs)))
	}
	out := make([]*domain.Resolution, 0, len(reqs))
	for i, req := range reqs {
		resp, err := uc.Resolve(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		out = append(out, resp)
	}
	return out, nil
}

func (uc *ResolveQueryUseCase) probeCache(ctx context.Context, fingerprint string) *domain.QAPair {
	pair, err := uc.cache.Get(ctx, fingerprint)
	if err != nil {
		uc.observer.ObserveTierFailure("cache")
		slog.Warn("cache_probe_failed", "error", domain.WrapError(domain.ErrTierLookup, "cache get", err))
		return nil
	}
	return pair
}

func (uc *ResolveQueryUseCase) probeStore(ctx context.Context, query string) *domain.QAPair {
	pair, err := uc.store.Search(ctx, query, uc.cfg.StoreConfidenceThreshold)
	if err != nil {
		uc.observer.ObserveTierFailure("store")
		slog.Warn("store_probe_failed", "error", domain.WrapError(domain.ErrTierLookup, "store search", err))
		return nil
	}
	if pair == nil || pair.Confidence < uc.cfg.StoreConfidenceThreshold {
		return nil
	}
	return pair
}

// runRAG returns the details even on failure so the error response can carry them.
func (uc *ResolveQueryUseCase) runRAG(ctx context.Context, query string) (*domain.RAGDetails, string, error) {
	intent := uc.gate.Classify(ctx, query)
	out := &domain.RAGDetails{
		Intent:    intent,
		Documents: []domain.RetrievedDocument{},
	}

	if intent.ID != domain.IntentProfessional {
		out.Path = domain.PathGeneralKnowledge
		reply, err := uc.generator.Complete(ctx, query, nil, true)
		if err != nil {
			return out, "", domain.WrapError(domain.ErrGeneration, "general answer", err)
		}
		return out, reply, nil
	}

	out.Path = domain.PathProfessional
	optimization, err := uc.optimizer.Optimize(ctx, query, domain.StrategyAuto)
	if err != nil {
		slog.Warn("query_optimization_failed", "error", err)
	}
	out.Optimization = &optimization

	documents, err := uc.retriever.Retrieve(ctx, query, optimization.SubQueries)
	if err != nil {
		uc.observer.ObserveTierFailure("retrieval")
		slog.Warn("document_retrieval_failed", "error", err)
		documents = nil
	}
	if len(documents) > 0 {
		out.Documents = documents
	}

	reply, err := uc.generator.Complete(ctx, query, out.Documents, false)
	if err == nil {
		return out, reply, nil
	}

	slog.Warn("professional_generation_failed", "error", err)
	out.Path = domain.PathFallback
	out.Error = err.Error()
	out.Documents = []domain.RetrievedDocument{}
	reply, fallbackErr := uc.generator.Complete(ctx, query, nil, true)
	if fallbackErr != nil {
		return out, "", domain.WrapError(domain.ErrGeneration, "fallback answer", fallbackErr)
	}
	return out, reply, nil
}

func (uc *ResolveQueryUseCase) writeThrough(ctx context.Context, fingerprint, normalized string, pair domain.QAPair) {
	if err := uc.cache.Set(ctx, fingerprint, pair, uc.cfg.CacheTTL); err != nil {
		uc.observer.ObserveTierFailure("cache")
		slog.Warn("cache_write_failed", "error", domain.WrapError(domain.ErrTierLookup, "cache set", err))
		return
	}
	uc.incrementCount(ctx, normalized)
}

func (uc *ResolveQueryUseCase) incrementCount(ctx context.Context, normalized string) {
	if _, err := uc.cache.IncrementCount(ctx, normalized); err != nil {
		slog.Warn("hot_query_increment_failed", "error", err)
	}
}

func (uc *ResolveQueryUseCase) finish(resp *domain.Resolution, source domain.Source, start time.Time) {
	elapsed := uc.now().Sub(start)
	resp.Source = source
	resp.Timestamp = uc.now()
	resp.ResponseTimeSeconds = math.Round(elapsed.Seconds()*1000) / 1000

	var (
		path      domain.RAGPath
		strategy  domain.Strategy
		documents int
	)
	if resp.RAG != nil {
		path = resp.RAG.Path
		documents = len(resp.RAG.Documents)
		if resp.RAG.Optimization != nil {
			strategy = resp.RAG.Optimization.Strategy
		}
	}
	uc.observer.ObserveResolution(source, path, strategy, documents, elapsed)
	slog.Info("resolution_completed",
		"session_id", resp.SessionID,
		"source", string(source),
		"path", string(path),
		"strategy", string(strategy),
		"documents", documents,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// logQuery runs detached from request cancellation so timeouts are still recorded.
func (uc *ResolveQueryUseCase) logQuery(ctx context.Context, resp *domain.Resolution) {
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
	defer cancel()

	err := uc.store.Log(logCtx, domain.QueryLogEntry{
		UserID:              resp.UserID,
		SessionID:           resp.SessionID,
		Query:               resp.Query,
		Response:            resp.Reply,
		Source:              resp.Source,
		ResponseTimeSeconds: resp.ResponseTimeSeconds,
		CreatedAt:           resp.Timestamp,
	})
	if err != nil {
		uc.observer.ObserveTierFailure("query_log")
		slog.Warn("query_log_failed", "source", string(resp.Source), "error", err)
	}
}

type noopObserver struct{}

func (noopObserver) ObserveResolution(domain.Source, domain.RAGPath, domain.Strategy, int, time.Duration) {
}
func (noopObserver) ObserveTierFailure(string) {}
