// Package openaicompat generates answers through any server that speaks
// the OpenAI chat completions API (OpenAI itself, vLLM, llama.cpp, Ollama's
// /v1 endpoint).
package openaicompat

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

const systemPrompt = "You answer questions from university students. Be concise and factual."

type Generator struct {
	client    *openai.Client
	model     string
	assistant string
	executor  *resilience.Executor
}

// New targets baseURL when set, api.openai.com otherwise.
func New(baseURL, apiKey, model, assistant string, executor *resilience.Executor) *Generator {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Generator{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		assistant: assistant,
		executor:  executor,
	}
}

var classify = resilience.TransportClassifier(func(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
})

func (g *Generator) Generate(ctx context.Context, question, kbContext string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.Build(g.assistant, question, kbContext)},
		},
		Temperature: 0.2,
	}

	var answer string
	call := func(callCtx context.Context) error {
		resp, err := g.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai: empty choices")
		}
		answer = resp.Choices[0].Message.Content
		return nil
	}

	var err error
	if g.executor != nil {
		err = g.executor.Execute(ctx, "openai.chat", call, classify)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", resilience.WrapUnavailable("openai chat", err, classify)
	}
	return strings.TrimSpace(answer), nil
}
