// Package langchain generates answers through a langchaingo model. The
// default model is langchaingo's Ollama binding.
package langchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

const defaultTemperature = 0.2

type Generator struct {
	model     llms.Model
	assistant string
	executor  *resilience.Executor
}

// NewOllama connects langchaingo's Ollama model to serverURL.
func NewOllama(serverURL, model, assistant string, executor *resilience.Executor) (*Generator, error) {
	llm, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("create langchain ollama model: %w", err)
	}
	return New(llm, assistant, executor), nil
}

func New(model llms.Model, assistant string, executor *resilience.Executor) *Generator {
	return &Generator{model: model, assistant: assistant, executor: executor}
}

var classify = resilience.TransportClassifier(nil)

func (g *Generator) Generate(ctx context.Context, question, kbContext string) (string, error) {
	text := prompt.Build(g.assistant, question, kbContext)

	var answer string
	call := func(callCtx context.Context) error {
		out, err := llms.GenerateFromSinglePrompt(callCtx, g.model, text, llms.WithTemperature(defaultTemperature))
		if err != nil {
			return err
		}
		answer = out
		return nil
	}

	var err error
	if g.executor != nil {
		err = g.executor.Execute(ctx, "langchain.generate", call, classify)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", resilience.WrapUnavailable("langchain generate", err, classify)
	}
	return strings.TrimSpace(answer), nil
}
