package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/resilience"
)

func testBlocks() ([]domain.DocumentBlock, [][]float32, []domain.SparseVector) {
	blocks := []domain.DocumentBlock{
		{BlockID: "d_parent", DocumentID: "d", Title: "护膝", Content: "护膝\n\n运动护膝", BlockType: domain.BlockParent},
		{BlockID: "d_child_0", ParentID: "d_parent", DocumentID: "d", Title: "护膝 - 段落1", Content: "运动护膝保护膝盖", BlockType: domain.BlockChild},
	}
	dense := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	sparse := []domain.SparseVector{{Indices: []uint32{1}, Values: []float32{0.5}}, {}}
	return blocks, dense, sparse
}

func TestIndexBlocksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls, indexCalls int32
	var upsert struct {
		Points []point `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/blocks":
			atomic.AddInt32(&ensureCalls, 1)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if _, ok := body["sparse_vectors"]; !ok {
				t.Errorf("collection must declare sparse vectors: %v", body)
			}
			w.WriteHeader(http.StatusConflict)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/blocks/index":
			atomic.AddInt32(&indexCalls, 1)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/blocks/points":
			_ = json.NewDecoder(r.Body).Decode(&upsert)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Collection: "blocks"})
	blocks, dense, sparse := testBlocks()
	for i := 0; i < 2; i++ {
		if err := client.IndexBlocks(context.Background(), blocks, dense, sparse); err != nil {
			t.Fatalf("IndexBlocks() #%d error = %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if got := atomic.LoadInt32(&indexCalls); got != 2 {
		t.Fatalf("expected two payload indexes, got %d", got)
	}
	if len(upsert.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(upsert.Points))
	}
	if upsert.Points[0].ID != PointID("d_parent") {
		t.Fatalf("point id should derive from block id, got %s", upsert.Points[0].ID)
	}
	if _, ok := upsert.Points[1].Vector[sparseVectorName]; ok {
		t.Fatalf("empty sparse vector must be omitted")
	}
	if upsert.Points[1].Payload["parent_id"] != "d_parent" || upsert.Points[1].Payload["block_type"] != "child" {
		t.Fatalf("unexpected child payload %v", upsert.Points[1].Payload)
	}
}

func TestIndexBlocksRejectsMismatch(t *testing.T) {
	client := New(Options{BaseURL: "http://unused"})
	blocks, dense, _ := testBlocks()
	if err := client.IndexBlocks(context.Background(), blocks, dense, nil); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer server.Close()

	err := New(Options{BaseURL: server.URL}).EnsureCollection(context.Background(), 2)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be temporary: %v", err)
	}
}

func TestHybridSearchCombinesDenseAndSparse(t *testing.T) {
	var searches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/catalog_blocks/points/search/batch" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Searches []map[string]any `json:"searches"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		searches = len(req.Searches)
		_, _ = w.Write([]byte(`{"result":[
			[{"id":"1","score":0.9,"payload":{"block_id":"a","parent_id":"pa","content":"A"}},
			 {"id":"2","score":0.8,"payload":{"block_id":"b","parent_id":"pb","content":"B"}}],
			[{"id":"2","score":4.0,"payload":{"block_id":"b","parent_id":"pb","content":"B"}},
			 {"id":"3","score":2.0,"payload":{"block_id":"c","parent_id":"pc","content":"C"}}]
		]}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	got, err := client.HybridSearch(context.Background(), []float32{0.1}, domain.SparseVector{Indices: []uint32{3}, Values: []float32{1}}, 10)
	if err != nil {
		t.Fatalf("HybridSearch() error = %v", err)
	}
	if searches != 2 {
		t.Fatalf("expected dense and sparse searches, got %d", searches)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	// b: 0.7*0.8 + 0.3*1.0 = 0.86, a: 0.63, c: 0.15
	if got[0].BlockID != "b" || got[1].BlockID != "a" || got[2].BlockID != "c" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if diff := got[0].CombinedScore - 0.86; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("unexpected combined score %v", got[0].CombinedScore)
	}
	if got[0].Similarity != 0.8 || got[2].Similarity != 0 {
		t.Fatalf("similarity should be the dense score: %+v", got)
	}
}

func TestHybridSearchMissingCollectionIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	got, err := New(Options{BaseURL: server.URL}).HybridSearch(context.Background(), []float32{0.1}, domain.SparseVector{}, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
}

func TestGetParentsFiltersParents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filter struct {
				Must []map[string]any `json:"must"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Filter.Must) != 2 {
			t.Errorf("expected block_type and block_id conditions, got %v", req.Filter.Must)
		}
		_, _ = w.Write([]byte(`{"result":{"points":[{"id":"x","payload":{"block_id":"p1","document_id":"d","title":"T","content":"parent"}}],"next_page_offset":null}}`))
	}))
	defer server.Close()

	got, err := New(Options{BaseURL: server.URL}).GetParents(context.Background(), []string{"p1"})
	if err != nil {
		t.Fatalf("GetParents() error = %v", err)
	}
	if len(got) != 1 || got[0].BlockID != "p1" || got[0].Content != "parent" || got[0].BlockType != domain.BlockParent {
		t.Fatalf("unexpected parents %+v", got)
	}
}

func TestSearchRetriesUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":[[]]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	client := New(Options{BaseURL: server.URL, Executor: exec})
	if _, err := client.HybridSearch(context.Background(), []float32{0.1}, domain.SparseVector{}, 3); err != nil {
		t.Fatalf("HybridSearch() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected a retry, got %d calls", calls)
	}
}
