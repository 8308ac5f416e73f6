package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/resilience"
)

// pointNamespace derives stable point ids from block ids, so re-indexing a
// document overwrites its previous points.
var pointNamespace = uuid.MustParse("7f1c9a52-3c1e-4a36-9d0e-2b1f6f0c8e41")

func PointID(blockID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(blockID)).String()
}

type sparsePayload struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

type point struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) IndexBlocks(ctx context.Context, blocks []domain.DocumentBlock, dense [][]float32, sparse []domain.SparseVector) error {
	if len(blocks) == 0 {
		return nil
	}
	if len(blocks) != len(dense) || len(blocks) != len(sparse) {
		return fmt.Errorf("blocks/vectors mismatch: %d blocks, %d dense, %d sparse", len(blocks), len(dense), len(sparse))
	}
	if err := c.EnsureCollection(ctx, len(dense[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(blocks))
	for i, b := range blocks {
		vector := map[string]any{denseVectorName: dense[i]}
		if !sparse[i].Empty() {
			vector[sparseVectorName] = sparsePayload{Indices: sparse[i].Indices, Values: sparse[i].Values}
		}
		points = append(points, point{
			ID:     PointID(b.BlockID),
			Vector: vector,
			Payload: map[string]any{
				"block_id":    b.BlockID,
				"parent_id":   b.ParentID,
				"document_id": b.DocumentID,
				"title":       b.Title,
				"content":     b.Content,
				"category":    b.Category,
				"block_type":  string(b.BlockType),
				"position":    b.Position,
			},
		})
	}
	return c.call(ctx, http.MethodPut, c.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil, "upsert")
}

// HybridSearch runs the dense and sparse child searches in one batch request
// and fuses them with the configured weights.
func (c *Client) HybridSearch(ctx context.Context, dense []float32, sparse domain.SparseVector, topK int) ([]domain.RetrievedCandidate, error) {
	if topK <= 0 {
		topK = 10
	}
	childFilter := matchFilter(map[string]any{"key": "block_type", "match": map[string]any{"value": string(domain.BlockChild)}})

	searches := []map[string]any{{
		"vector":       map[string]any{"name": denseVectorName, "vector": dense},
		"filter":       childFilter,
		"limit":        topK,
		"with_payload": true,
	}}
	if !sparse.Empty() {
		searches = append(searches, map[string]any{
			"vector": map[string]any{
				"name":   sparseVectorName,
				"vector": sparsePayload{Indices: sparse.Indices, Values: sparse.Values},
			},
			"filter":       childFilter,
			"limit":        topK,
			"with_payload": true,
		})
	}

	var resp struct {
		Result [][]scoredPoint `json:"result"`
	}
	err := c.call(ctx, http.MethodPost, c.collectionPath("/points/search/batch"), map[string]any{"searches": searches}, &resp, "search")
	if isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var denseHits, sparseHits []scoredPoint
	if len(resp.Result) > 0 {
		denseHits = resp.Result[0]
	}
	if len(resp.Result) > 1 {
		sparseHits = resp.Result[1]
	}
	return c.fuse(denseHits, sparseHits, topK), nil
}

func (c *Client) fuse(denseHits, sparseHits []scoredPoint, topK int) []domain.RetrievedCandidate {
	type scored struct {
		payload map[string]any
		dense   float64
		sparse  float64
	}
	byBlock := make(map[string]*scored, len(denseHits)+len(sparseHits))
	order := make([]string, 0, len(denseHits)+len(sparseHits))
	entry := func(p scoredPoint) *scored {
		id := stringPayload(p.Payload, "block_id")
		s, ok := byBlock[id]
		if !ok {
			s = &scored{payload: p.Payload}
			byBlock[id] = s
			order = append(order, id)
		}
		return s
	}

	for _, p := range denseHits {
		entry(p).dense = p.Score
	}
	maxSparse := 0.0
	for _, p := range sparseHits {
		entry(p).sparse = p.Score
		if p.Score > maxSparse {
			maxSparse = p.Score
		}
	}

	out := make([]domain.RetrievedCandidate, 0, len(order))
	for _, id := range order {
		s := byBlock[id]
		out = append(out, domain.RetrievedCandidate{
			BlockID:       id,
			ParentID:      stringPayload(s.payload, "parent_id"),
			Title:         stringPayload(s.payload, "title"),
			Content:       stringPayload(s.payload, "content"),
			Category:      stringPayload(s.payload, "category"),
			Similarity:    s.dense,
			CombinedScore: c.weights.Combine(s.dense, s.sparse, maxSparse),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func (c *Client) GetParents(ctx context.Context, ids []string) ([]domain.DocumentBlock, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"filter": matchFilter(
			map[string]any{"key": "block_type", "match": map[string]any{"value": string(domain.BlockParent)}},
			map[string]any{"key": "block_id", "match": map[string]any{"any": ids}},
		),
		"limit":        len(ids),
		"with_payload": true,
		"with_vector":  false,
	}

	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	err := c.call(ctx, http.MethodPost, c.collectionPath("/points/scroll"), body, &resp, "scroll")
	if isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.DocumentBlock, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		out = append(out, domain.DocumentBlock{
			BlockID:    stringPayload(p.Payload, "block_id"),
			DocumentID: stringPayload(p.Payload, "document_id"),
			Title:      stringPayload(p.Payload, "title"),
			Content:    stringPayload(p.Payload, "content"),
			Category:   stringPayload(p.Payload, "category"),
			BlockType:  domain.BlockParent,
		})
	}
	return out, nil
}

func matchFilter(conditions ...map[string]any) map[string]any {
	return map[string]any{"must": conditions}
}

func stringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asStatusError(err error) (*resilience.StatusError, bool) {
	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
