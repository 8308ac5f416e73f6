package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		retry  bool
		record bool
	}{
		{name: "unavailable", err: &StatusError{StatusCode: http.StatusServiceUnavailable}, retry: true, record: true},
		{name: "bad request", err: &StatusError{StatusCode: http.StatusBadRequest}},
		{name: "canceled", err: fmt.Errorf("search: %w", context.Canceled)},
		{name: "plain", err: errors.New("decode"), record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyHTTPError(tc.err)
			if got.Retryable != tc.retry || got.RecordFailure != tc.record {
				t.Fatalf("ClassifyHTTPError() = %+v", got)
			}
		})
	}
}

func TestWrapTemporary(t *testing.T) {
	err := WrapTemporary("qdrant search", &StatusError{StatusCode: http.StatusBadGateway}, nil)
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	plain := errors.New("bad payload")
	if got := WrapTemporary("qdrant search", plain, nil); got != plain {
		t.Fatalf("permanent error should pass through, got %v", got)
	}
}
