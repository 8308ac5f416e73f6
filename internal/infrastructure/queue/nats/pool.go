package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
)

type dispatcher struct {
	pool    *ants.Pool
	timeout time.Duration
	handler func(context.Context, string) error
}

func newDispatcher(size int, timeout time.Duration, handler func(context.Context, string) error) (*dispatcher, error) {
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(p any) {
			slog.Error("worker_panic_recovered", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &dispatcher{pool: pool, timeout: timeout, handler: handler}, nil
}

// dispatch hands the document to the pool. Handler errors are logged; the
// returned error only reports a failed submission.
func (d *dispatcher) dispatch(ctx context.Context, documentID string) error {
	return d.pool.Submit(func() {
		handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.handler(handlerCtx, documentID); err != nil {
			slog.Error("worker_handler_failed", "document_id", documentID, "error", err)
		}
	})
}

func (d *dispatcher) release(timeout time.Duration) {
	if err := d.pool.ReleaseTimeout(timeout); err != nil {
		slog.Warn("worker_pool_release_timeout", "error", err)
	}
}
