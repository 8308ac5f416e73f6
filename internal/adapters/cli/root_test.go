package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

type qaFake struct {
	imported []domain.QAPair
	added    domain.QAPair
	limit    int
}

func (f *qaFake) AddQAPair(_ context.Context, question, answer, category string) (*domain.QAPair, error) {
	f.added = domain.QAPair{ID: 42, Question: question, Answer: answer, Category: category}
	return &f.added, nil
}

func (f *qaFake) HotQueries(_ context.Context, limit int) ([]domain.HotQuery, error) {
	f.limit = limit
	return []domain.HotQuery{{Query: "篮球鞋多少钱", Count: 9}}, nil
}

func (f *qaFake) Status(context.Context) domain.SystemStatus {
	return domain.SystemStatus{QA: domain.QAStats{Total: 12}, VectorBackend: "milvus"}
}

func (f *qaFake) ImportQAPairs(_ context.Context, pairs []domain.QAPair) (domain.ImportReport, error) {
	f.imported = pairs
	return domain.ImportReport{Inserted: len(pairs)}, nil
}

type resolverFake struct{}

func (resolverFake) Resolve(_ context.Context, req domain.ResolutionRequest) (*domain.Resolution, error) {
	return &domain.Resolution{Query: req.Query, Reply: "有现货", Source: domain.SourceCache, UserID: req.UserID}, nil
}

func (resolverFake) ResolveBatch(context.Context, []domain.ResolutionRequest) ([]*domain.Resolution, error) {
	return nil, nil
}

type optimizerFake struct {
	strategy domain.Strategy
}

func (f *optimizerFake) Optimize(_ context.Context, query string, strategy domain.Strategy) (domain.OptimizationResult, error) {
	f.strategy = strategy
	return domain.OptimizationResult{Strategy: domain.StrategySubquery, OriginalQuery: query, OptimizedQuery: query, SubQueries: []string{"跑步机", "价格"}}, nil
}

type harness struct {
	qa        *qaFake
	optimizer *optimizerFake
	loads     int
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(context.Context) (*Services, error) {
		h.loads++
		return &Services{Resolver: resolverFake{}, Optimizer: h.optimizer, QA: h.qa}, nil
	})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func newHarness() *harness {
	return &harness{qa: &qaFake{}, optimizer: &optimizerFake{}}
}

func TestAddRequiresQuestionAndAnswer(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "add", "--question", "护膝怎么选")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer")
	assert.Zero(t, h.loads, "services must not load on flag errors")
}

func TestAddPrintsID(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "add", "-q", "护膝怎么选", "-a", "按尺码选择", "-c", "护具")
	require.NoError(t, err)
	assert.Contains(t, out, "Added QA pair 42")
	assert.Equal(t, "护具", h.qa.added.Category)
}

func TestHotUsesLimitFlag(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "hot", "-n", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, h.qa.limit)
	assert.Contains(t, out, "篮球鞋多少钱 (9)")
}

func TestStatusJSON(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "status", "--json")
	require.NoError(t, err)

	var status domain.SystemStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "milvus", status.VectorBackend)
	assert.EqualValues(t, 12, status.QA.Total)
}

func TestOptimizePassesStrategy(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "optimize", "--strategy", "SUBQUERY", "跑步机多少钱")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategySubquery, h.optimizer.strategy)
	assert.Contains(t, out, "[2] 价格")
}

func TestResolveRequiresQuery(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "resolve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestResolvePrintsSourceAndReply(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "resolve", "瑜伽垫有货吗")
	require.NoError(t, err)
	assert.Contains(t, out, "[cache] 有现货")
}

func TestImportReadsWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"问题", "答案", "分类"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"篮球几号", "成人用7号球", "篮球"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"羽毛球拍多重", "一般80到90克", "羽毛球"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	h := newHarness()
	out, err := h.run(t, "import", path)
	require.NoError(t, err)
	require.Len(t, h.qa.imported, 2)
	assert.Equal(t, "篮球几号", h.qa.imported[0].Question)
	assert.Contains(t, out, "Inserted: 2")
}

func TestImportMissingFile(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "import", filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)
	assert.Zero(t, h.loads)
}

func TestLoaderErrorIsReported(t *testing.T) {
	cmd := NewRootCommand(func(context.Context) (*Services, error) {
		return nil, errors.New("postgres unreachable")
	})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"status"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres unreachable")
}
