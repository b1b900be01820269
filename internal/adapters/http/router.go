package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/campus-assistant/internal/config"
	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
	"github.com/kirillkom/campus-assistant/internal/observability/metrics"
)

const (
	serviceName     = "campus-api"
	offlineModel    = "offline_json"
	maxRequestBytes = 1 << 20
)

// Dependencies are the engine services the router serves.
type Dependencies struct {
	Search   ports.SearchService
	Feedback ports.FeedbackService
	Stats    ports.StatsReader
	Reloader ports.CorpusReloader
	Metrics  *metrics.HTTPServerMetrics

	// Model is reported in /chat responses; LLMActive reports whether the
	// arbiter may call the generator.
	Model     string
	LLMActive bool
}

type Router struct {
	cfg       config.Config
	deps      Dependencies
	validator *requestValidator
	started   time.Time
}

func NewRouter(cfg config.Config, deps Dependencies) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:       cfg,
		deps:      deps,
		validator: validator,
		started:   time.Now(),
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.root)
	mux.HandleFunc("GET /health", rt.health)
	mux.HandleFunc("GET /stats", rt.stats)
	mux.HandleFunc("POST /chat", rt.chat)
	mux.HandleFunc("POST /feedback", rt.feedback)
	mux.HandleFunc("POST /admin/reload", rt.reload)
	if rt.deps.Metrics != nil {
		mux.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = corsMiddleware(handler, rt.cfg.CORSOrigins)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) mode() string {
	if rt.cfg.OfflineMode {
		return "offline"
	}
	return "online"
}

func (rt *Router) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": rt.cfg.AssistantName + " campus assistant API (" + strings.ToUpper(rt.mode()) + " MODE)",
		"status":  "running",
		"mode":    rt.mode(),
		"endpoints": map[string]string{
			"GET /health":        "Health check",
			"GET /stats":         "System statistics",
			"GET /metrics":       "Prometheus metrics",
			"POST /chat":         "Ask a question",
			"POST /feedback":     "Submit feedback",
			"POST /admin/reload": "Re-read knowledge sources",
		},
	})
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "healthy",
		"mode":                 rt.mode(),
		"llm_loaded":           rt.deps.LLMActive,
		"search_system_loaded": rt.deps.Search != nil,
		"model":                rt.model(),
		"timestamp":            float64(time.Now().UnixMilli()) / 1000,
		"uptime_seconds":       int64(time.Since(rt.started).Seconds()),
		"learning_active":      rt.deps.Feedback != nil,
		"offline_capable":      true,
	})
}

func (rt *Router) model() string {
	if rt.cfg.OfflineMode || rt.deps.Model == "" {
		return offlineModel
	}
	return rt.deps.Model
}

type chatResponse struct {
	domain.SearchOutcome
	Model       string `json:"model"`
	OfflineMode bool   `json:"offline_mode"`
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := rt.validator.Validate(r); err != nil {
		writeChatError(w, "Missing message field", "Please provide a message to process.")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, "Missing message field", "Please provide a message to process.")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeChatError(w, "Empty message", "Please enter a valid message.")
		return
	}

	outcome := rt.deps.Search.Search(r.Context(), message)
	writeJSON(w, http.StatusOK, chatResponse{
		SearchOutcome: outcome,
		Model:         rt.model(),
		OfflineMode:   rt.cfg.OfflineMode,
	})
}

func writeChatError(w http.ResponseWriter, reason, answer string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":          reason,
		"answer":         answer,
		"method":         "error",
		"confidence":     0,
		"analyzed_items": 0,
	})
}

func (rt *Router) feedback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := rt.validator.Validate(r); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid feedback payload"})
		return
	}

	var req struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	receipt, err := rt.deps.Feedback.Record(r.Context(), req.Question, req.Answer, domain.FeedbackKind(req.Feedback))
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "feedback_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"message":         "Feedback recorded and learning updated",
		"learning_stats":  receipt.Stats,
		"blocked_answers": receipt.BlockedAnswers,
		"total_feedback":  receipt.TotalFeedback,
	})
}

func (rt *Router) stats(w http.ResponseWriter, _ *http.Request) {
	stats := rt.deps.Stats.Stats()
	var builtAt any
	if !stats.IndexBuiltAt.IsZero() {
		builtAt = stats.IndexBuiltAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_feedback":      stats.TotalFeedback,
		"likes":               stats.Likes,
		"dislikes":            stats.Dislikes,
		"blocked_answers":     stats.BlockedAnswers,
		"improved_responses":  stats.ImprovedResponses,
		"available_data":      stats.AvailableItems,
		"total_original_data": stats.TotalOriginalData,
		"instruction_pairs":   stats.InstructionPairs,
		"index_built_at":      builtAt,
		"llm_active":          rt.deps.LLMActive,
		"learning_enabled":    rt.deps.Feedback != nil,
	})
}

func (rt *Router) reload(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.AdminAPIKey != "" && !isAuthorizedBearerHeader(r.Header.Get("Authorization"), rt.cfg.AdminAPIKey) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if rt.deps.Reloader == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "reload is not available"})
		return
	}
	if err := rt.deps.Reloader.Reload(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "reload_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	stats := rt.deps.Stats.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "reloaded",
		"available_data":      stats.AvailableItems,
		"total_original_data": stats.TotalOriginalData,
		"instruction_pairs":   stats.InstructionPairs,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
