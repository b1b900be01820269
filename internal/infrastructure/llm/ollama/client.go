package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds a client for the Ollama HTTP API. A nil executor sends every
// request exactly once.
func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Ping checks that the server answers and has the configured model pulled.
func (c *Client) Ping(ctx context.Context) error {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/tags", &response, "tags"); err != nil {
		return err
	}
	for _, m := range response.Models {
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			return nil
		}
	}
	return fmt.Errorf("ollama model %q is not pulled", c.model)
}

// Generator answers questions through /api/generate.
type Generator struct {
	client    *Client
	assistant string
}

func NewGenerator(client *Client, assistant string) *Generator {
	return &Generator{client: client, assistant: assistant}
}

func (g *Generator) Ping(ctx context.Context) error {
	return g.client.Ping(ctx)
}

func (g *Generator) Generate(ctx context.Context, question, kbContext string) (string, error) {
	return g.client.generateText(ctx, prompt.Build(g.assistant, question, kbContext))
}

func (c *Client) generateText(ctx context.Context, text string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": text,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", resilience.WrapUnavailable("ollama generate", err, classifyOllamaError)
	}
	return strings.TrimSpace(response.Response), nil
}
