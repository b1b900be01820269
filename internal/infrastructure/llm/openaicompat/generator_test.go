package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func TestGenerateCallsChatCompletions(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Fees are due in June. "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	gen := New(server.URL+"/v1", "secret", "llama3.2", "Green University", nil)
	answer, err := gen.Generate(context.Background(), "when are fees due?", "JSON Data: June")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "Fees are due in June." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if auth != "Bearer secret" || captured.Model != "llama3.2" {
		t.Fatalf("unexpected request: auth=%q model=%q", auth, captured.Model)
	}
	if len(captured.Messages) != 2 || !strings.Contains(captured.Messages[1].Content, "JSON Data: June") {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
}

func TestGenerateMapsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := New(server.URL+"/v1", "k", "m", "", nil).Generate(context.Background(), "q", "")
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary outage, got %v", err)
	}
}
