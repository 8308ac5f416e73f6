package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kirillkom/sports-support-rag/internal/infrastructure/resilience"
)

const serviceName = "ollama"

// postJSON sends one request through the resilience executor when configured.
// Retryable failures surface as domain.ErrTemporary.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	call := func(ctx context.Context) error {
		return c.doPost(ctx, path, body, out, operation)
	}
	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, serviceName+"."+operation, call, resilience.ClassifyHTTPError)
	}
	return resilience.WrapTemporary(serviceName+" "+operation, err, resilience.ClassifyHTTPError)
}

func (c *Client) doPost(ctx context.Context, path string, body []byte, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", serviceName, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError(serviceName, operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
