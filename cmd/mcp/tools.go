package main

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

type tools struct {
	search   ports.SearchService
	feedback ports.FeedbackService
	stats    ports.StatsReader
}

func newServer(t tools) *server.MCPServer {
	s := server.NewMCPServer("campus-assistant", "1.0.0", server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question about the university from the campus knowledge base"),
		mcp.WithString("question", mcp.Required(), mcp.Description("the question to answer")),
	), t.ask)

	s.AddTool(mcp.NewTool("feedback",
		mcp.WithDescription("Record whether an answer was helpful; disliked answers are never served again"),
		mcp.WithString("question", mcp.Description("the question that was asked")),
		mcp.WithString("answer", mcp.Required(), mcp.Description("the answer being rated")),
		mcp.WithString("feedback", mcp.Required(), mcp.Enum(string(domain.FeedbackLike), string(domain.FeedbackDislike))),
	), t.recordFeedback)

	s.AddTool(mcp.NewTool("stats",
		mcp.WithDescription("Learning counters and corpus sizes"),
	), t.readStats)

	return s
}

func (t tools) ask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t.search.Search(ctx, question))
}

func (t tools) recordFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	answer, err := req.RequireString("answer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := req.RequireString("feedback")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	receipt, err := t.feedback.Record(ctx, req.GetString("question", ""), answer, domain.FeedbackKind(kind))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(receipt)
}

func (t tools) readStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.stats.Stats())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
