package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

const namespace = "campus"

// HTTPServerMetrics covers the API process: request traffic plus the search
// engine observations reported through ports.EngineMetrics.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal      *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	generationTotal  *prometheus.CounterVec
	feedbackTotal    *prometheus.CounterVec
	rebuildDuration  prometheus.Histogram
	corpusItems      *prometheus.GaugeVec
	breakerState     *prometheus.GaugeVec
	breakerTransfers *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "search",
			Name:        "requests_total",
			Help:        "Total answered searches by arbiter method.",
			ConstLabels: constLabels,
		},
		[]string{"method"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "search",
			Name:        "duration_seconds",
			Help:        "Search duration in seconds by arbiter method.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		},
		[]string{"method"},
	)
	generationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "llm",
			Name:        "generations_total",
			Help:        "Answer generation attempts by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	feedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "feedback",
			Name:        "records_total",
			Help:        "Recorded feedback by kind.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)
	rebuildDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "rebuild_duration_seconds",
			Help:        "Knowledge index rebuild duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
	)
	corpusItems := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "corpus_items",
			Help:        "Corpus sizes after the latest rebuild.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_state",
			Help:        "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)
	breakerTransfers := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_transitions_total",
			Help:        "Circuit breaker transitions per operation and target state.",
			ConstLabels: constLabels,
		},
		[]string{"operation", "to"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		generationTotal,
		feedbackTotal,
		rebuildDuration,
		corpusItems,
		breakerState,
		breakerTransfers,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		service:          service,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		searchTotal:      searchTotal,
		searchDuration:   searchDuration,
		generationTotal:  generationTotal,
		feedbackTotal:    feedbackTotal,
		rebuildDuration:  rebuildDuration,
		corpusItems:      corpusItems,
		breakerState:     breakerState,
		breakerTransfers: breakerTransfers,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded: unknown paths collapse into
// a single bucket.
func normalizePath(path string) string {
	switch path {
	case "/", "/chat", "/feedback", "/stats", "/health", "/metrics", "/admin/reload":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) ObserveSearch(method domain.Method, seconds float64) {
	if method == "" {
		method = "unknown"
	}
	m.searchTotal.WithLabelValues(string(method)).Inc()
	m.searchDuration.WithLabelValues(string(method)).Observe(seconds)
}

func (m *HTTPServerMetrics) ObserveGeneration(status string) {
	if status == "" {
		status = "unknown"
	}
	m.generationTotal.WithLabelValues(status).Inc()
}

func (m *HTTPServerMetrics) ObserveFeedback(kind domain.FeedbackKind) {
	m.feedbackTotal.WithLabelValues(string(kind)).Inc()
}

func (m *HTTPServerMetrics) ObserveRebuild(seconds float64, corpus domain.CorpusStats) {
	m.rebuildDuration.Observe(seconds)
	m.corpusItems.WithLabelValues("available").Set(float64(corpus.AvailableItems))
	m.corpusItems.WithLabelValues("original").Set(float64(corpus.TotalOriginalData))
	m.corpusItems.WithLabelValues("instruction_pairs").Set(float64(corpus.InstructionPairs))
}

// ObserveBreaker has the resilience.StateObserver signature.
func (m *HTTPServerMetrics) ObserveBreaker(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(to))
	m.breakerTransfers.WithLabelValues(operation, to.String()).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
