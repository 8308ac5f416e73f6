package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

type RetrievalOptions struct {
	TopK             int
	TopM             int
	ExpandSubQueries bool
	MaxSubQueries    int
}

// HybridRetriever runs dense+sparse search over child blocks and expands each
// hit with its parent.
type HybridRetriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	opts     RetrievalOptions
}

func NewHybridRetriever(embedder ports.Embedder, index ports.VectorIndex, opts RetrievalOptions) *HybridRetriever {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.TopM <= 0 {
		opts.TopM = 5
	}
	if opts.MaxSubQueries <= 0 {
		opts.MaxSubQueries = 3
	}
	return &HybridRetriever{embedder: embedder, index: index, opts: opts}
}

// Retrieve returns at most TopM fused documents for query. subQueries are only
// searched when expansion is enabled.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, subQueries []string) ([]domain.RetrievedDocument, error) {
	candidates, err := r.search(ctx, query)
	if err != nil {
		return nil, err
	}

	if r.opts.ExpandSubQueries {
		searched := 0
		for _, sub := range subQueries {
			if searched == r.opts.MaxSubQueries {
				break
			}
			if sub == "" || sub == query {
				continue
			}
			searched++
			extra, err := r.search(ctx, sub)
			if err != nil {
				return nil, fmt.Errorf("search sub-query: %w", err)
			}
			candidates = mergeCandidates(candidates, extra)
		}
	}

	if len(candidates) == 0 {
		return []domain.RetrievedDocument{}, nil
	}

	parentIDs := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.ParentID]; ok || c.ParentID == "" {
			continue
		}
		seen[c.ParentID] = struct{}{}
		parentIDs = append(parentIDs, c.ParentID)
	}

	parents, err := r.index.GetParents(ctx, parentIDs)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "load parent blocks", err)
	}
	return fuseParentChild(candidates, parents, r.opts.TopM), nil
}

func (r *HybridRetriever) search(ctx context.Context, text string) ([]domain.RetrievedCandidate, error) {
	var (
		dense  []float32
		sparse domain.SparseVector
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := r.embedder.Dense(gctx, text)
		if err != nil {
			return fmt.Errorf("dense embedding: %w", err)
		}
		dense = v
		return nil
	})
	g.Go(func() error {
		v, err := r.embedder.Sparse(gctx, text)
		if err != nil {
			return fmt.Errorf("sparse embedding: %w", err)
		}
		sparse = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	candidates, err := r.index.HybridSearch(ctx, dense, sparse, r.opts.TopK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "hybrid search", err)
	}
	return candidates, nil
}

// mergeCandidates unions two hit lists by block id, keeping the higher
// combined score and the first-seen order.
func mergeCandidates(base, extra []domain.RetrievedCandidate) []domain.RetrievedCandidate {
	pos := make(map[string]int, len(base)+len(extra))
	for i, c := range base {
		pos[c.BlockID] = i
	}
	for _, c := range extra {
		if i, ok := pos[c.BlockID]; ok {
			if c.CombinedScore > base[i].CombinedScore {
				base[i] = c
			}
			continue
		}
		pos[c.BlockID] = len(base)
		base = append(base, c)
	}
	return base
}
