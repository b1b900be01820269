package langchain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

type fakeModel struct {
	prompt string
	answer string
	err    error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				f.prompt = text.Text
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGenerateSendsRenderedPrompt(t *testing.T) {
	model := &fakeModel{answer: " Library opens at 9 "}
	answer, err := New(model, "Green University", nil).Generate(context.Background(), "library hours?", "JSON Data: 9 to 5")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "Library opens at 9" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if !strings.Contains(model.prompt, "library hours?") || !strings.Contains(model.prompt, "JSON Data: 9 to 5") {
		t.Fatalf("unexpected prompt: %s", model.prompt)
	}
}

func TestGenerateWrapsModelError(t *testing.T) {
	_, err := New(&fakeModel{err: errors.New("connection refused")}, "", nil).Generate(context.Background(), "q", "")
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected generation unavailable, got %v", err)
	}
}
