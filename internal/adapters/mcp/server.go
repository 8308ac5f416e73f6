package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

const (
	serverName    = "sports-support"
	serverVersion = "1.0.0"
)

// Server exposes the resolver and the optimizer as MCP tools.
type Server struct {
	resolver  ports.QueryResolver
	optimizer ports.QueryOptimizer
	qa        ports.QAAdministration
	mcp       *server.MCPServer
}

func NewServer(resolver ports.QueryResolver, optimizer ports.QueryOptimizer, qa ports.QAAdministration) *Server {
	s := &Server{resolver: resolver, optimizer: optimizer, qa: qa}
	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Product support for a sports-goods catalog: answers customer questions and rewrites queries for search."),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_query",
		mcp.WithDescription("Answer a customer question through the cache, the QA store and document retrieval"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Customer question")),
		mcp.WithString("user_id", mcp.Description("Caller identifier for the query log")),
		mcp.WithString("session_id", mcp.Description("Conversation session identifier")),
	), s.handleResolve)

	s.mcp.AddTool(mcp.NewTool("optimize_query",
		mcp.WithDescription("Rewrite a question into search queries"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question to optimize")),
		mcp.WithString("strategy",
			mcp.Description("Optimization strategy"),
			mcp.Enum(string(domain.StrategyAuto), string(domain.StrategyDirect), string(domain.StrategySubquery),
				string(domain.StrategyBacktrack), string(domain.StrategyHypothesis)),
		),
	), s.handleOptimize)

	if qa != nil {
		s.mcp.AddTool(mcp.NewTool("hot_queries",
			mcp.WithDescription("List the most frequently asked questions"),
			mcp.WithNumber("limit", mcp.Description("Maximum number of entries"), mcp.Min(1), mcp.Max(100)),
		), s.handleHotQueries)
	}
	return s
}

// ServeStdio speaks MCP over the given streams until ctx is done or the
// input closes. Diagnostics go to errLog, never to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer, errLog *log.Logger) error {
	stdio := server.NewStdioServer(s.mcp)
	if errLog != nil {
		stdio.SetErrorLogger(errLog)
	}
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.resolver.Resolve(ctx, domain.ResolutionRequest{
		Query:     query,
		UserID:    req.GetString("user_id", "mcp"),
		SessionID: req.GetString("session_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("resolve query", err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleOptimize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strategy := domain.Strategy(req.GetString("strategy", string(domain.StrategyAuto)))
	result, err := s.optimizer.Optimize(ctx, query, strategy)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("optimize query", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleHotQueries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hot, err := s.qa.HotQueries(ctx, req.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("hot queries", err), nil
	}
	return jsonResult(map[string]any{"hot_queries": hot})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
