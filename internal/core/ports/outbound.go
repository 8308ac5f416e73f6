package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

// AnswerCache is the exact-match tier keyed by query fingerprint.
type AnswerCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.QAPair, error)
	Set(ctx context.Context, fingerprint string, pair domain.QAPair, ttl time.Duration) error
	IncrementCount(ctx context.Context, normalizedQuery string) (int64, error)
	HotQueries(ctx context.Context, limit int) ([]domain.HotQuery, error)
	Stats(ctx context.Context) (domain.CacheStats, error)
}

// QAStore is the keyword-matched persistent tier and the query log.
type QAStore interface {
	Search(ctx context.Context, query string, minConfidence float64) (*domain.QAPair, error)
	Insert(ctx context.Context, pair domain.QAPair) (*domain.QAPair, error)
	Log(ctx context.Context, entry domain.QueryLogEntry) error
	Stats(ctx context.Context) (domain.QAStats, error)
}

// IntentClassifier is the binary intent delegate.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (domain.IntentPrediction, error)
}

// Embedder builds dense and sparse representations.
type Embedder interface {
	Dense(ctx context.Context, text string) ([]float32, error)
	DenseBatch(ctx context.Context, texts []string) ([][]float32, error)
	Sparse(ctx context.Context, text string) (domain.SparseVector, error)
}

// VectorIndex holds parent and child blocks for hybrid retrieval.
type VectorIndex interface {
	HybridSearch(ctx context.Context, dense []float32, sparse domain.SparseVector, topK int) ([]domain.RetrievedCandidate, error)
	GetParents(ctx context.Context, ids []string) ([]domain.DocumentBlock, error)
	IndexBlocks(ctx context.Context, blocks []domain.DocumentBlock, dense [][]float32, sparse []domain.SparseVector) error
}

// AnswerGenerator creates the final user-facing reply.
type AnswerGenerator interface {
	Complete(ctx context.Context, query string, documents []domain.RetrievedDocument, isGeneral bool) (string, error)
}

// Segmenter tokenizes Chinese/English text.
type Segmenter interface {
	Cut(text string) []string
	Tag(text string) []domain.Token
	Keywords(text string, topK int) ([]string, error)
}

// TermIndex recognizes catalog vocabulary.
type TermIndex interface {
	HasDomainTerm(text string) bool
	HasQuestionMarker(text string) bool
	ContextHint(text string) string
	IsStopword(word string) bool
}

// ResolutionObserver receives per-request pipeline outcomes.
type ResolutionObserver interface {
	ObserveResolution(source domain.Source, path domain.RAGPath, strategy domain.Strategy, documents int, duration time.Duration)
	ObserveTierFailure(tier string)
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveClassification(ctx context.Context, id string, cls domain.Classification, category string, blockCount int) error
}

// BlockRepository persists parent/child blocks with referential integrity.
type BlockRepository interface {
	ReplaceBlocks(ctx context.Context, documentID string, blocks []domain.DocumentBlock) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// DocumentClassifier tags extracted text with catalog facets.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// BlockSplitter turns a document into one parent and its child blocks.
type BlockSplitter interface {
	Split(documentID, title, category, text string) ([]domain.DocumentBlock, error)
}
