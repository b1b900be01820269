package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

type searchStub struct{}

func (searchStub) Search(_ context.Context, text string) domain.SearchOutcome {
	return domain.SearchOutcome{Answer: "echo: " + text, Method: domain.MethodHighConfidenceJSON, Confidence: 1}
}

type feedbackStub struct{}

func (feedbackStub) Record(_ context.Context, _, _ string, kind domain.FeedbackKind) (domain.FeedbackReceipt, error) {
	if _, ok := domain.ParseFeedbackKind(string(kind)); !ok {
		return domain.FeedbackReceipt{}, domain.WrapError(domain.ErrInvalidInput, "record feedback", errors.New("unknown kind"))
	}
	return domain.FeedbackReceipt{TotalFeedback: 1}, nil
}

func (feedbackStub) Stats() domain.EngineStats {
	return domain.EngineStats{CorpusStats: domain.CorpusStats{AvailableItems: 7}}
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
		return ""
	}
}

func testTools() tools {
	return tools{search: searchStub{}, feedback: feedbackStub{}, stats: feedbackStub{}}
}

func TestAskToolReturnsOutcome(t *testing.T) {
	res, err := testTools().ask(context.Background(), callTool("ask", map[string]any{"question": "fees?"}))
	if err != nil {
		t.Fatalf("ask() error = %v", err)
	}
	var outcome domain.SearchOutcome
	if err := json.Unmarshal([]byte(resultText(t, res)), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Answer != "echo: fees?" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestAskToolRequiresQuestion(t *testing.T) {
	res, err := testTools().ask(context.Background(), callTool("ask", map[string]any{}))
	if err != nil {
		t.Fatalf("ask() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing question")
	}
}

func TestFeedbackToolReportsInvalidKind(t *testing.T) {
	res, err := testTools().recordFeedback(context.Background(), callTool("feedback", map[string]any{
		"answer":   "50000 BDT",
		"feedback": "meh",
	}))
	if err != nil {
		t.Fatalf("recordFeedback() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for invalid kind")
	}
}

func TestStatsTool(t *testing.T) {
	res, err := testTools().readStats(context.Background(), callTool("stats", nil))
	if err != nil {
		t.Fatalf("readStats() error = %v", err)
	}
	var stats domain.EngineStats
	if err := json.Unmarshal([]byte(resultText(t, res)), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.AvailableItems != 7 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	if newServer(testTools()) == nil {
		t.Fatalf("expected server")
	}
}
