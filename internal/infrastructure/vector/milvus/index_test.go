package milvus

import (
	"math"
	"strings"
	"testing"

	"github.com/milvus-io/milvus/client/v2/column"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

func TestDecodeRows(t *testing.T) {
	fields := []column.Column{
		column.NewColumnVarChar(fieldBlockID, []string{"d_child_0", "d_child_1"}),
		column.NewColumnVarChar(fieldParentID, []string{"d_parent", "d_parent"}),
		column.NewColumnInt64(fieldPosition, []int64{0, 1}),
	}
	rows := decodeRows(fields, -1)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	b := rows[1].block()
	if b.BlockID != "d_child_1" || b.ParentID != "d_parent" || b.Position != 1 {
		t.Fatalf("unexpected block %+v", b)
	}
}

func TestRescoreNormalizesSparse(t *testing.T) {
	query := domain.SparseVector{Indices: []uint32{1, 5}, Values: []float32{1, 1}}
	strong, _ := encodeSparse(domain.SparseVector{Indices: []uint32{1, 5}, Values: []float32{2, 2}})
	weak, _ := encodeSparse(domain.SparseVector{Indices: []uint32{5}, Values: []float32{1}})
	hits := []hit{
		{row: row{fieldBlockID: "a", fieldSparse: weak}, dense: 0.9},
		{row: row{fieldBlockID: "b", fieldSparse: strong}, dense: 0.8},
		{row: row{fieldBlockID: "c"}, dense: 0.5},
	}

	got := rescore(hits, query, domain.DefaultHybridWeights(), 2)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	// b: 0.56 + 0.3, a: 0.63 + 0.3*0.25
	if got[0].BlockID != "b" || got[1].BlockID != "a" {
		t.Fatalf("unexpected order %+v", got)
	}
	if math.Abs(got[0].CombinedScore-0.86) > 1e-9 || math.Abs(got[1].CombinedScore-0.705) > 1e-9 {
		t.Fatalf("unexpected scores %v %v", got[0].CombinedScore, got[1].CombinedScore)
	}
	if got[0].Similarity != 0.8 {
		t.Fatalf("similarity should stay the dense score, got %v", got[0].Similarity)
	}
}

func TestRescoreWithoutSparseQuery(t *testing.T) {
	hits := []hit{{row: row{fieldBlockID: "a"}, dense: 0.5}}
	got := rescore(hits, domain.SparseVector{}, domain.DefaultHybridWeights(), 5)
	if math.Abs(got[0].CombinedScore-0.35) > 1e-9 {
		t.Fatalf("expected dense-only score, got %v", got[0].CombinedScore)
	}
}

func TestExpressions(t *testing.T) {
	if got := eqExpr(fieldBlockType, "child"); got != `block_type == "child"` {
		t.Fatalf("eqExpr() = %s", got)
	}
	got := inExpr(fieldBlockID, []string{"a_parent", `b"x`})
	if got != `block_id in ["a_parent", "b\"x"]` {
		t.Fatalf("inExpr() = %s", got)
	}
}

func TestTruncateBytesKeepsRunes(t *testing.T) {
	s := strings.Repeat("球", 10)
	got := truncateBytes(s, 7)
	if got != "球球" {
		t.Fatalf("truncateBytes() = %q", got)
	}
}
