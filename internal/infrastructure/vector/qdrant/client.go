package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

type Options struct {
	BaseURL    string
	Collection string
	Timeout    time.Duration
	Weights    domain.HybridWeights
	Executor   *resilience.Executor
}

// Client stores parent and child blocks in one collection with a named
// dense vector and a named sparse vector per point.
type Client struct {
	baseURL    string
	collection string
	weights    domain.HybridWeights
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Collection == "" {
		opts.Collection = "catalog_blocks"
	}
	if opts.Weights == (domain.HybridWeights{}) {
		opts.Weights = domain.DefaultHybridWeights()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		collection: opts.Collection,
		weights:    opts.Weights,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
	}
}

func (c *Client) Name() string {
	return "qdrant"
}

// EnsureCollection creates the collection and its payload indexes. An
// existing collection is accepted as is.
func (c *Client) EnsureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{"size": vectorSize, "distance": "Cosine"},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}
	err := c.call(ctx, http.MethodPut, c.collectionPath(""), body, nil, "ensure_collection")
	if err != nil && !isStatus(err, http.StatusConflict) {
		return err
	}

	for _, field := range []string{"block_type", "block_id"} {
		index := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := c.call(ctx, http.MethodPut, c.collectionPath("/index?wait=true"), index, nil, "ensure_index"); err != nil {
			return err
		}
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) collectionPath(suffix string) string {
	return fmt.Sprintf("/collections/%s%s", c.collection, suffix)
}

func (c *Client) call(ctx context.Context, method, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	do := func(ctx context.Context) error {
		return c.do(ctx, method, path, body, out, operation)
	}
	if c.executor == nil {
		err = do(ctx)
	} else {
		err = c.executor.Execute(ctx, "qdrant."+operation, do, resilience.ClassifyHTTPError)
	}
	return resilience.WrapTemporary("qdrant "+operation, err, resilience.ClassifyHTTPError)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	statusErr, ok := asStatusError(err)
	return ok && statusErr.StatusCode == code
}
