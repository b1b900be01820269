package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kirillkom/campus-assistant/internal/config"
	"github.com/kirillkom/campus-assistant/internal/core/knowledge"
	"github.com/kirillkom/campus-assistant/internal/core/lexical"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
	"github.com/kirillkom/campus-assistant/internal/core/textnorm"
	"github.com/kirillkom/campus-assistant/internal/core/usecase"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/langchain"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/source"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/storage/badgerkv"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/campus-assistant/internal/infrastructure/storage/redisblob"
	"github.com/kirillkom/campus-assistant/internal/observability/metrics"
)

// App is the fully wired search engine shared by the API, the CLI and the
// MCP server.
type App struct {
	Config config.Config

	Engine   *usecase.Engine
	Search   *usecase.SearchUseCase
	Feedback *usecase.FeedbackUseCase
	Metrics  *metrics.HTTPServerMetrics
	Executor *resilience.Executor

	// Model names the generation model; empty when running offline or when
	// the model did not answer at startup.
	Model string

	closers []func()
}

func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	rules, err := knowledge.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	normalizer, err := newNormalizer(cfg, rules)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init state store: %w", err)
	}
	app.closers = append(app.closers, func() { _ = store.Close() })

	app.Metrics = metrics.NewHTTPServerMetrics("campus-api")
	app.Executor = resilience.NewExecutor(cfg.Resilience()).WithStateObserver(app.Metrics.ObserveBreaker)

	app.Engine = usecase.NewEngine(
		source.Files{DirectPath: cfg.DataFile, InstructionPath: cfg.InstructionFile},
		knowledge.NewLoader(rules),
		normalizer,
		lexical.DefaultOptions(),
		app.Metrics,
	)

	var publisher ports.FeedbackPublisher
	if cfg.FeedbackEventsEnabled {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: app.Executor})
		if err != nil {
			return nil, fmt.Errorf("init feedback events: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		publisher = queue
	}

	app.Feedback = usecase.NewFeedbackUseCase(app.Engine, store, publisher, app.Metrics)
	if err := app.Feedback.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore learning state: %w", err)
	}
	if err := app.Engine.Reload(ctx); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	var generator ports.AnswerGenerator
	if !cfg.OfflineMode {
		generator, app.Model, err = newGenerator(cfg, app.Executor)
		if err != nil {
			return nil, fmt.Errorf("init generator: %w", err)
		}
		if checker, ok := generator.(healthChecker); ok {
			pingCtx, cancel := context.WithTimeout(ctx, generatorPingTimeout)
			pingErr := checker.Ping(pingCtx)
			cancel()
			if pingErr != nil {
				slog.WarnContext(ctx, "generator_unavailable",
					"backend", cfg.GeneratorBackend,
					"model", app.Model,
					"error", pingErr,
				)
				generator, app.Model = nil, ""
			}
		}
	}
	app.Search = usecase.NewSearchUseCase(app.Engine, generator, usecase.SearchOptions{
		Offline:           cfg.OfflineMode,
		GenerationTimeout: cfg.GenerationTimeout,
	}, app.Metrics)

	slog.InfoContext(ctx, "engine_ready",
		"online", app.Search.Online(),
		"generator", cfg.GeneratorBackend,
		"model", app.Model,
		"store", cfg.StoreBackend,
		"feedback_events", cfg.FeedbackEventsEnabled,
	)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewTokenizer builds the normalizer New indexes with, so an exported index
// snapshot can be decoded and queried outside a running engine.
func NewTokenizer(cfg config.Config) (*textnorm.Normalizer, error) {
	rules, err := knowledge.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return newNormalizer(cfg, rules)
}

// newNormalizer merges stop words from the environment and the rules file.
func newNormalizer(cfg config.Config, rules knowledge.Rules) (*textnorm.Normalizer, error) {
	stopWords := append(slices.Clone(cfg.ExtraStopWords), rules.StopWords...)
	normalizer, err := textnorm.New(stopWords, cfg.NormalizeWorkers)
	if err != nil {
		return nil, fmt.Errorf("init normalizer: %w", err)
	}
	return normalizer, nil
}

type stateStore interface {
	ports.BlobStore
	Close() error
}

func openStore(cfg config.Config) (stateStore, error) {
	switch cfg.StoreBackend {
	case "", "file":
		return localfs.New(cfg.StorePath)
	case "badger":
		return badgerkv.Open(cfg.StorePath)
	case "redis":
		return redisblob.New(redisblob.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

const generatorPingTimeout = 10 * time.Second

// healthChecker is implemented by generators that can confirm the model is
// reachable before the engine reports itself online.
type healthChecker interface {
	Ping(ctx context.Context) error
}

func newGenerator(cfg config.Config, executor *resilience.Executor) (ports.AnswerGenerator, string, error) {
	switch cfg.GeneratorBackend {
	case "", "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, executor)
		return ollama.NewGenerator(client, cfg.AssistantName), client.Model(), nil
	case "langchain":
		gen, err := langchain.NewOllama(cfg.OllamaURL, cfg.OllamaGenModel, cfg.AssistantName, executor)
		if err != nil {
			return nil, "", err
		}
		return gen, cfg.OllamaGenModel, nil
	case "openai":
		return openaicompat.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AssistantName, executor), cfg.OpenAIModel, nil
	default:
		return nil, "", fmt.Errorf("unknown GENERATOR_BACKEND %q", cfg.GeneratorBackend)
	}
}

// Worker holds what the feedback archiver needs: the event subscription and
// the Postgres archive.
type Worker struct {
	Config  config.Config
	Events  ports.FeedbackSubscriber
	Archive *postgres.FeedbackRepository
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewFeedbackRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &Worker{
		Config:  cfg,
		Events:  queue,
		Archive: repo,
		Metrics: metrics.NewWorkerMetrics("campus-worker"),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// OpenArchive opens only the Postgres archive for read-side reporting.
func OpenArchive(ctx context.Context, cfg config.Config) (*postgres.FeedbackRepository, func(), error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewFeedbackRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, func() { _ = db.Close() }, nil
}
