package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/sports-support-rag/internal/config"
	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
	"github.com/kirillkom/sports-support-rag/internal/core/usecase"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/cache/redis"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/embedding"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/segment"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/vector/milvus"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/sports-support-rag/internal/observability/metrics"
	"github.com/kirillkom/sports-support-rag/internal/vocab"
)

// Options tunes which process-level pieces get wired.
type Options struct {
	// Service labels resolver metrics.
	Service string
	// Registerer receives resolver and breaker metrics. A private registry is
	// used when nil.
	Registerer prometheus.Registerer
	// SkipQueue leaves the NATS connection out for processes that never
	// publish or consume ingestion events.
	SkipQueue bool
}

type vectorBackend interface {
	ports.VectorIndex
	Name() string
}

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Documents ports.DocumentReader
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	Resolver  ports.QueryResolver
	Optimizer ports.QueryOptimizer
	QA        ports.QAAdministration

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	built := false
	defer func() {
		if !built {
			app.Close()
		}
	}()

	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	service := opts.Service
	if service == "" {
		service = "catalog"
	}
	breakerMetrics := metrics.NewBreakerMetrics(registerer)
	resolutionMetrics := metrics.NewResolutionMetrics(service, registerer)
	executor := resilience.NewExecutor(resilienceConfig(cfg)).
		WithStateObserver(breakerMetrics.ObserveStateChange)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	vocabulary, err := vocab.Load(cfg.VocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	terms, err := vocab.NewTermIndex(vocabulary)
	if err != nil {
		return nil, fmt.Errorf("build term index: %w", err)
	}
	segmenter, err := segment.New(vocabulary, terms.IsStopword)
	if err != nil {
		return nil, fmt.Errorf("init segmenter: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	blocks := postgres.NewBlockRepository(db)
	qaStore := postgres.NewQARepository(db, segmenter.Terms)
	app.Documents = docs

	cache := redis.New(redis.Options{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.CacheKeyPrefix,
	})
	app.closers = append(app.closers, func() { _ = cache.Close() })
	if err := cache.Ping(ctx); err != nil {
		// The resolver degrades past an unavailable cache tier.
		slog.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	if !opts.SkipQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Concurrency:        cfg.WorkerConcurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		app.Queue = queue
	}

	llm := ollama.New(ollama.Options{
		BaseURL:     cfg.OllamaURL,
		GenModel:    cfg.OllamaGenModel,
		EmbedModel:  cfg.OllamaEmbedModel,
		IntentModel: cfg.OllamaIntentModel,
		Executor:    executor,
	})
	embedder := embedding.NewHybrid(ollama.NewEmbedder(llm), embedding.NewSparseEncoder(segmenter.Terms))

	weights := domain.HybridWeights{Dense: cfg.RAGDenseWeight, Sparse: cfg.RAGSparseWeight}
	index, err := newVectorBackend(ctx, cfg, weights, executor)
	if err != nil {
		return nil, err
	}
	if closer, ok := index.(interface{ Close(context.Context) error }); ok {
		app.closers = append(app.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = closer.Close(closeCtx)
		})
	}

	optimizer := usecase.NewOptimizeQueryUseCase(segmenter, terms)
	retriever := usecase.NewHybridRetriever(embedder, index, usecase.RetrievalOptions{
		TopK:             cfg.RAGTopK,
		TopM:             cfg.RAGTopM,
		ExpandSubQueries: cfg.RAGExpandSubQueries,
		MaxSubQueries:    cfg.RAGMaxSubQueries,
	})
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	app.Optimizer = optimizer
	app.QA = usecase.NewQAAdminUseCase(qaStore, cache, cacheTTL, index.Name())
	app.Resolver = usecase.NewResolveQueryUseCase(
		cache,
		qaStore,
		usecase.NewIntentGate(ollama.NewIntentClassifier(llm), cfg.IntentConfidenceThreshold),
		optimizer,
		retriever,
		ollama.NewGenerator(llm),
		resolutionMetrics,
		usecase.ResolverConfig{
			CacheTTL:                 cacheTTL,
			StoreConfidenceThreshold: cfg.StoreConfidenceThreshold,
			Timeout:                  time.Duration(cfg.ResolveTimeoutSeconds) * time.Second,
			BatchMax:                 cfg.BatchQueryMax,
		},
	)

	if app.Queue != nil {
		app.IngestUC = usecase.NewIngestDocumentUseCase(docs, storage, app.Queue)
	}
	textExtractor := extractor.NewByMime(plaintext.NewExtractor(storage)).
		Register(pdf.NewExtractor(storage), "application/pdf", ".pdf")
	app.ProcessUC = usecase.NewProcessDocumentUseCase(
		docs,
		blocks,
		textExtractor,
		vocab.NewClassifier(terms),
		chunking.NewBlockSplitter(cfg.MinChildChars),
		embedder,
		index,
	)

	built = true
	return app, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.RetryMaxAttempts
	policy.RetryInitialBackoff = time.Duration(cfg.RetryInitialBackoffMillis) * time.Millisecond
	policy.RetryMaxBackoff = 4 * policy.RetryInitialBackoff
	policy.BreakerEnabled = cfg.BreakerEnabled
	policy.BreakerFailureRatio = cfg.BreakerFailureRatio
	policy.BreakerOpenTimeout = time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second
	return policy
}

func newVectorBackend(ctx context.Context, cfg config.Config, weights domain.HybridWeights, executor *resilience.Executor) (vectorBackend, error) {
	switch cfg.VectorBackend {
	case "", "qdrant":
		return qdrant.New(qdrant.Options{
			BaseURL:    cfg.QdrantURL,
			Collection: cfg.QdrantCollection,
			Weights:    weights,
			Executor:   executor,
		}), nil
	case "milvus":
		index, err := milvus.New(ctx, milvus.Options{
			Address:    cfg.MilvusAddress,
			Username:   cfg.MilvusUsername,
			Password:   cfg.MilvusPassword,
			Database:   cfg.MilvusDatabase,
			Collection: cfg.MilvusCollection,
			Weights:    weights,
		})
		if err != nil {
			return nil, fmt.Errorf("init milvus: %w", err)
		}
		return index, nil
	default:
		return nil, fmt.Errorf("unsupported vector backend %q", cfg.VectorBackend)
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
