package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/resilience"
)

func newTestClient(url string) *Client {
	return New(Options{BaseURL: url, GenModel: "gen", EmbedModel: "embed"})
}

func TestGeneratorBuildsContextPrompt(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":" 建议选 M 码 "}`))
	}))
	defer server.Close()

	gen := NewGenerator(newTestClient(server.URL))
	reply, err := gen.Complete(context.Background(), "护膝选什么尺码？", []domain.RetrievedDocument{{Title: "护膝指南", Category: "防护装备", Content: "膝围 35-38cm 选 M 码", CombinedScore: 0.91}}, false)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "建议选 M 码" {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}
	if !strings.Contains(capturedPrompt, "护膝选什么尺码？") || !strings.Contains(capturedPrompt, "膝围 35-38cm") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
}

func TestGeneratorGeneralPromptOmitsContext(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"你好"}`))
	}))
	defer server.Close()

	gen := NewGenerator(newTestClient(server.URL))
	if _, err := gen.Complete(context.Background(), "你好", nil, true); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if strings.Contains(capturedPrompt, "商品资料：") {
		t.Fatalf("general prompt must not include a context section: %s", capturedPrompt)
	}
}

func TestIntentClassifierParsesLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["model"] != "intent" || payload["format"] != "json" {
			t.Errorf("unexpected payload %v", payload)
		}
		_, _ = w.Write([]byte(`{"response":"结果: {\"label\": 1, \"confidence\": 0.86}"}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, GenModel: "gen", IntentModel: "intent"})
	pred, err := NewIntentClassifier(client).Classify(context.Background(), "篮球鞋怎么选")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if pred.Label != 1 || pred.Confidence != 0.86 {
		t.Fatalf("unexpected prediction %+v", pred)
	}
}

func TestIntentClassifierRejectsUnknownLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"{\"label\": 7}"}`))
	}))
	defer server.Close()

	_, err := NewIntentClassifier(newTestClient(server.URL)).Classify(context.Background(), "q")
	if err == nil {
		t.Fatalf("expected error for out-of-range label")
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewEmbedder(newTestClient(server.URL)).DenseBatch(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	_, err := NewEmbedder(newTestClient(server.URL)).DenseBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestExecutorRetriesTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.5]]}`))
	}))
	defer server.Close()

	client := New(Options{
		BaseURL:    server.URL,
		EmbedModel: "embed",
		Executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
		}),
	})
	vec, err := NewEmbedder(client).Dense(context.Background(), "护膝")
	if err != nil {
		t.Fatalf("Dense() error = %v", err)
	}
	if len(vec) != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected retry then success, got vec=%v calls=%d", vec, calls)
	}
}
