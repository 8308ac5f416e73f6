package ports

import (
	"context"
	"io"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

// QueryResolver is the inbound contract for the cascading cache→store→RAG pipeline.
// Pipeline faults degrade to an apology; only malformed input returns an error.
type QueryResolver interface {
	Resolve(ctx context.Context, req domain.ResolutionRequest) (*domain.Resolution, error)
	ResolveBatch(ctx context.Context, reqs []domain.ResolutionRequest) ([]*domain.Resolution, error)
}

// QueryOptimizer rewrites a query into search queries.
type QueryOptimizer interface {
	Optimize(ctx context.Context, query string, strategy domain.Strategy) (domain.OptimizationResult, error)
}

// QAAdministration covers the operator-facing QA operations.
type QAAdministration interface {
	AddQAPair(ctx context.Context, question, answer, category string) (*domain.QAPair, error)
	HotQueries(ctx context.Context, limit int) ([]domain.HotQuery, error)
	Status(ctx context.Context) domain.SystemStatus
	ImportQAPairs(ctx context.Context, pairs []domain.QAPair) (domain.ImportReport, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, req domain.UploadRequest, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
