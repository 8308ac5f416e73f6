package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/sports-support-rag/internal/adapters/cli"
	"github.com/kirillkom/sports-support-rag/internal/bootstrap"
	"github.com/kirillkom/sports-support-rag/internal/config"
	"github.com/kirillkom/sports-support-rag/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "qactl", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app *bootstrap.App
	root := cli.NewRootCommand(func(ctx context.Context) (*cli.Services, error) {
		var err error
		app, err = bootstrap.New(ctx, cfg, bootstrap.Options{Service: "qactl", SkipQueue: true})
		if err != nil {
			return nil, err
		}
		return &cli.Services{Resolver: app.Resolver, Optimizer: app.Optimizer, QA: app.QA}, nil
	})

	err := root.ExecuteContext(ctx)
	if app != nil {
		app.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
