package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

func (x *Index) IndexBlocks(ctx context.Context, blocks []domain.DocumentBlock, dense [][]float32, sparse []domain.SparseVector) error {
	if len(blocks) == 0 {
		return nil
	}
	if len(blocks) != len(dense) || len(blocks) != len(sparse) {
		return fmt.Errorf("blocks/vectors mismatch: %d blocks, %d dense, %d sparse", len(blocks), len(dense), len(sparse))
	}
	if err := x.EnsureCollection(ctx, len(dense[0])); err != nil {
		return err
	}

	n := len(blocks)
	ids := make([]string, n)
	parents := make([]string, n)
	documents := make([]string, n)
	titles := make([]string, n)
	contents := make([]string, n)
	categories := make([]string, n)
	types := make([]string, n)
	positions := make([]int64, n)
	terms := make([]string, n)
	for i, b := range blocks {
		encoded, err := encodeSparse(sparse[i])
		if err != nil {
			return err
		}
		ids[i] = b.BlockID
		parents[i] = b.ParentID
		documents[i] = b.DocumentID
		titles[i] = truncateBytes(b.Title, 1024)
		contents[i] = truncateBytes(b.Content, maxVarChar)
		categories[i] = truncateBytes(b.Category, 128)
		types[i] = string(b.BlockType)
		positions[i] = int64(b.Position)
		terms[i] = encoded
	}

	_, err := x.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(x.collection,
		column.NewColumnVarChar(fieldBlockID, ids),
		column.NewColumnVarChar(fieldParentID, parents),
		column.NewColumnVarChar(fieldDocumentID, documents),
		column.NewColumnVarChar(fieldTitle, titles),
		column.NewColumnVarChar(fieldContent, contents),
		column.NewColumnVarChar(fieldCategory, categories),
		column.NewColumnVarChar(fieldBlockType, types),
		column.NewColumnInt64(fieldPosition, positions),
		column.NewColumnVarChar(fieldSparse, terms),
		column.NewColumnFloatVector(fieldDense, len(dense[0]), dense),
	))
	if err != nil {
		return fmt.Errorf("upsert milvus blocks: %w", err)
	}

	task, err := x.client.Flush(ctx, milvusclient.NewFlushOption(x.collection))
	if err != nil {
		return fmt.Errorf("flush milvus collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for milvus flush: %w", err)
	}
	return nil
}

func (x *Index) HybridSearch(ctx context.Context, dense []float32, sparse domain.SparseVector, topK int) ([]domain.RetrievedCandidate, error) {
	if topK <= 0 {
		topK = 10
	}
	if err := x.EnsureCollection(ctx, len(dense)); err != nil {
		return nil, err
	}

	results, err := x.client.Search(ctx, milvusclient.NewSearchOption(
		x.collection,
		topK*x.candidateFactor,
		[]entity.Vector{entity.FloatVector(dense)},
	).WithANNSField(fieldDense).
		WithSearchParam("nprobe", "16").
		WithFilter(eqExpr(fieldBlockType, string(domain.BlockChild))).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("search milvus: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rows := decodeRows(results[0].Fields, results[0].ResultCount)
	hits := make([]hit, 0, len(rows))
	for i, r := range rows {
		score := 0.0
		if i < len(results[0].Scores) {
			score = float64(results[0].Scores[i])
		}
		hits = append(hits, hit{row: r, dense: score})
	}
	return rescore(hits, sparse, x.weights, topK), nil
}

func (x *Index) GetParents(ctx context.Context, ids []string) ([]domain.DocumentBlock, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	expr := eqExpr(fieldBlockType, string(domain.BlockParent)) + " && " + inExpr(fieldBlockID, ids)
	rs, err := x.client.Query(ctx, milvusclient.NewQueryOption(x.collection).
		WithFilter(expr).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("query milvus parents: %w", err)
	}

	rows := decodeRows(rs.Fields, -1)
	out := make([]domain.DocumentBlock, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.block())
	}
	return out, nil
}

type row map[string]any

func (r row) str(name string) string {
	s, _ := r[name].(string)
	return s
}

func (r row) block() domain.DocumentBlock {
	pos, _ := r[fieldPosition].(int64)
	return domain.DocumentBlock{
		BlockID:    r.str(fieldBlockID),
		ParentID:   r.str(fieldParentID),
		DocumentID: r.str(fieldDocumentID),
		Title:      r.str(fieldTitle),
		Content:    r.str(fieldContent),
		Category:   r.str(fieldCategory),
		BlockType:  domain.BlockType(r.str(fieldBlockType)),
		Position:   int(pos),
	}
}

// decodeRows pivots result columns into rows. A negative count means the
// length of the longest column.
func decodeRows(fields []column.Column, count int) []row {
	if count < 0 {
		count = 0
		for _, f := range fields {
			if f.Len() > count {
				count = f.Len()
			}
		}
	}
	rows := make([]row, count)
	for i := range rows {
		rows[i] = make(row, len(fields))
	}
	for _, f := range fields {
		switch col := f.(type) {
		case *column.ColumnVarChar:
			data := col.Data()
			for i := 0; i < count && i < len(data); i++ {
				rows[i][col.Name()] = data[i]
			}
		case *column.ColumnInt64:
			data := col.Data()
			for i := 0; i < count && i < len(data); i++ {
				rows[i][col.Name()] = data[i]
			}
		}
	}
	return rows
}

type hit struct {
	row   row
	dense float64
}

// rescore fuses the ANN score with the sparse dot product of each stored
// term vector, normalized by the best sparse score in the result set.
func rescore(hits []hit, query domain.SparseVector, weights domain.HybridWeights, topK int) []domain.RetrievedCandidate {
	sparseScores := make([]float64, len(hits))
	maxSparse := 0.0
	if !query.Empty() {
		for i, h := range hits {
			stored, err := decodeSparse(h.row.str(fieldSparse))
			if err != nil {
				continue
			}
			sparseScores[i] = query.Dot(stored)
			if sparseScores[i] > maxSparse {
				maxSparse = sparseScores[i]
			}
		}
	}

	out := make([]domain.RetrievedCandidate, 0, len(hits))
	for i, h := range hits {
		b := h.row.block()
		out = append(out, domain.RetrievedCandidate{
			BlockID:       b.BlockID,
			ParentID:      b.ParentID,
			Title:         b.Title,
			Content:       b.Content,
			Category:      b.Category,
			Similarity:    h.dense,
			CombinedScore: weights.Combine(h.dense, sparseScores[i], maxSparse),
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

func encodeSparse(v domain.SparseVector) (string, error) {
	if v.Empty() {
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode sparse vector: %w", err)
	}
	if len(raw) > maxVarChar {
		return "", fmt.Errorf("sparse vector exceeds %d bytes", maxVarChar)
	}
	return string(raw), nil
}

func decodeSparse(raw string) (domain.SparseVector, error) {
	var v domain.SparseVector
	if raw == "" {
		return v, nil
	}
	err := json.Unmarshal([]byte(raw), &v)
	return v, err
}

func eqExpr(field, value string) string {
	return field + " == " + strconv.Quote(value)
}

func inExpr(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return field + " in [" + strings.Join(quoted, ", ") + "]"
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
