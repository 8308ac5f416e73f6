package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/infrastructure/resilience"
)

type Options struct {
	BaseURL     string
	GenModel    string
	EmbedModel  string
	IntentModel string
	Timeout     time.Duration
	Executor    *resilience.Executor
}

type Client struct {
	baseURL     string
	genModel    string
	embedModel  string
	intentModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.IntentModel == "" {
		opts.IntentModel = opts.GenModel
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		genModel:    opts.GenModel,
		embedModel:  opts.EmbedModel,
		intentModel: opts.IntentModel,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		executor:    opts.Executor,
	}
}

func (c *Client) generateJSON(ctx context.Context, model, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
