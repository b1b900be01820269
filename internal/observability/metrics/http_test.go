package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestEngineObservationsAreExported(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.ObserveSearch(domain.MethodHighConfidenceJSON, 0.01)
	m.ObserveGeneration("timeout")
	m.ObserveFeedback(domain.FeedbackDislike)
	m.ObserveRebuild(0.2, domain.CorpusStats{AvailableItems: 3, TotalOriginalData: 4, InstructionPairs: 1})
	m.ObserveBreaker("ollama.generate", gobreaker.StateClosed, gobreaker.StateOpen)

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`campus_search_requests_total{method="high_confidence_json_search",service="api"} 1`,
		`campus_llm_generations_total{service="api",status="timeout"} 1`,
		`campus_feedback_records_total{kind="dislike",service="api"} 1`,
		`campus_index_corpus_items{kind="available",service="api"} 3`,
		`campus_resilience_breaker_state{operation="ollama.generate",service="api"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestMiddlewareCollapsesUnknownPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	h := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/123", nil))

	body := scrape(t, m.Handler())
	if !strings.Contains(body, `campus_http_requests_total{method="GET",path="other",service="api",status="404"} 1`) {
		t.Fatalf("expected collapsed path label:\n%s", body)
	}
}
