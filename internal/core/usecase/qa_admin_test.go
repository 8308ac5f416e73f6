package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

func TestAddQAPairWritesThroughCache(t *testing.T) {
	store := &storeFake{}
	cache := newCacheFake()
	uc := NewQAAdminUseCase(store, cache, time.Minute, "qdrant")

	pair, err := uc.AddQAPair(context.Background(), " 护膝怎么洗 ", "手洗晾干", "防护装备")
	if err != nil {
		t.Fatalf("AddQAPair() error = %v", err)
	}
	if pair.ID == 0 || pair.Confidence != 1 || pair.Question != "护膝怎么洗" {
		t.Fatalf("unexpected pair %+v", pair)
	}
	cached, _ := cache.Get(context.Background(), domain.Fingerprint("护膝怎么洗"))
	if cached == nil || cached.Answer != "手洗晾干" {
		t.Fatalf("expected cached answer, got %+v", cached)
	}
	if cache.counts["护膝怎么洗"] != 1 {
		t.Fatalf("expected hot counter increment")
	}
}

func TestAddQAPairCacheFailureIsNotFatal(t *testing.T) {
	cache := newCacheFake()
	cache.setErr = errBoom
	uc := NewQAAdminUseCase(&storeFake{}, cache, time.Minute, "qdrant")

	if _, err := uc.AddQAPair(context.Background(), "q", "a", ""); err != nil {
		t.Fatalf("expected success despite cache failure, got %v", err)
	}
}

func TestAddQAPairValidation(t *testing.T) {
	uc := NewQAAdminUseCase(&storeFake{}, newCacheFake(), time.Minute, "qdrant")

	cases := [][2]string{{"", "a"}, {"q", " "}, {"q", strings.Repeat("答", 5001)}}
	for _, c := range cases {
		if _, err := uc.AddQAPair(context.Background(), c[0], c[1], ""); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", c[0], err)
		}
	}
}

func TestHotQueriesClampsLimit(t *testing.T) {
	cache := &limitCacheFake{cacheFake: newCacheFake()}
	uc := NewQAAdminUseCase(&storeFake{}, cache, time.Minute, "qdrant")

	_, _ = uc.HotQueries(context.Background(), 0)
	if cache.limit != 10 {
		t.Fatalf("expected default limit 10, got %d", cache.limit)
	}
	_, _ = uc.HotQueries(context.Background(), 500)
	if cache.limit != 100 {
		t.Fatalf("expected max limit 100, got %d", cache.limit)
	}
}

type limitCacheFake struct {
	*cacheFake
	limit int
}

func (f *limitCacheFake) HotQueries(ctx context.Context, limit int) ([]domain.HotQuery, error) {
	f.limit = limit
	return f.cacheFake.HotQueries(ctx, limit)
}

func TestStatusCollectsErrors(t *testing.T) {
	store := &storeFake{pairs: []domain.QAPair{{Question: "q"}}}
	cache := &statsErrCache{cacheFake: newCacheFake()}
	uc := NewQAAdminUseCase(store, cache, time.Minute, "milvus")

	status := uc.Status(context.Background())
	if status.QA.Total != 1 || status.VectorBackend != "milvus" {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Errors) != 1 || !strings.HasPrefix(status.Errors[0], "cache:") {
		t.Fatalf("expected cache error, got %v", status.Errors)
	}
}

type statsErrCache struct {
	*cacheFake
}

func (statsErrCache) Stats(context.Context) (domain.CacheStats, error) {
	return domain.CacheStats{}, errBoom
}

func TestImportQAPairsReportsSkippedRows(t *testing.T) {
	store := &storeFake{}
	uc := NewQAAdminUseCase(store, newCacheFake(), time.Minute, "qdrant")

	report, err := uc.ImportQAPairs(context.Background(), []domain.QAPair{
		{Question: "护膝尺码", Answer: "按膝围"},
		{Question: "", Answer: "orphan"},
		{Question: "跑鞋", Answer: "轻量", Confidence: 0.6},
	})
	if err != nil {
		t.Fatalf("ImportQAPairs() error = %v", err)
	}
	if report.Inserted != 2 || report.Skipped != 1 || len(report.Problems) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if store.pairs[0].Confidence != 1 || store.pairs[1].Confidence != 0.6 {
		t.Fatalf("unexpected confidences %+v", store.pairs)
	}
}
