package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

func TestGeneratorBuildsContextPrompt(t *testing.T) {
	var capturedPrompt, capturedModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		capturedModel, _ = payload["model"].(string)
		_, _ = w.Write([]byte(`{"response":"  ok  "}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "llama3.2:1b", nil), "Green University")
	answer, err := gen.Generate(context.Background(), "when are exams?", "JSON Data: in May")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "ok" {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
	if capturedModel != "llama3.2:1b" {
		t.Fatalf("unexpected model %q", capturedModel)
	}
	if !strings.Contains(capturedPrompt, "when are exams?") || !strings.Contains(capturedPrompt, "JSON Data: in May") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewGenerator(New(server.URL, "gen", nil), "").Generate(context.Background(), "hello", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 should be a permanent outage, got %v", err)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"ready"}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	answer, err := NewGenerator(New(server.URL, "gen", exec), "").Generate(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "ready" || calls.Load() != 2 {
		t.Fatalf("expected retry to succeed, got %q after %d calls", answer, calls.Load())
	}
}

func TestPingChecksModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:1b"},{"name":"mistral:latest"}]}`))
	}))
	defer server.Close()

	if err := New(server.URL, "llama3.2:1b", nil).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := New(server.URL, "mistral", nil).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() should accept implicit latest tag: %v", err)
	}
	if err := New(server.URL, "phi3", nil).Ping(context.Background()); err == nil {
		t.Fatalf("expected missing model error")
	}
	if err := NewGenerator(New(server.URL, "llama3.2:1b", nil), "Green University").Ping(context.Background()); err != nil {
		t.Fatalf("Generator.Ping() error = %v", err)
	}
}
