package embedding

import (
	"context"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

// DenseEmbedder is the model-backed half of a hybrid embedder.
type DenseEmbedder interface {
	Dense(ctx context.Context, text string) ([]float32, error)
	DenseBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Hybrid pairs a dense model with the local sparse encoder.
type Hybrid struct {
	dense  DenseEmbedder
	sparse *SparseEncoder
}

func NewHybrid(dense DenseEmbedder, sparse *SparseEncoder) *Hybrid {
	if sparse == nil {
		sparse = NewSparseEncoder(nil)
	}
	return &Hybrid{dense: dense, sparse: sparse}
}

func (h *Hybrid) Dense(ctx context.Context, text string) ([]float32, error) {
	return h.dense.Dense(ctx, text)
}

func (h *Hybrid) DenseBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return h.dense.DenseBatch(ctx, texts)
}

func (h *Hybrid) Sparse(ctx context.Context, text string) (domain.SparseVector, error) {
	return h.sparse.Sparse(ctx, text)
}
