package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/sports-support-rag/internal/adapters/mcp"
	"github.com/kirillkom/sports-support-rag/internal/bootstrap"
	"github.com/kirillkom/sports-support-rag/internal/config"
	"github.com/kirillkom/sports-support-rag/internal/observability/logging"
)

// stdout carries the MCP protocol; every diagnostic goes to stderr.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "mcp", SkipQueue: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Resolver, app.Optimizer, app.QA)
	if err := server.ServeStdio(ctx, os.Stdin, os.Stdout, log.New(os.Stderr, "mcp: ", log.LstdFlags)); err != nil && ctx.Err() == nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
