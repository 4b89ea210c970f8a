package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"

	"secondbrain/features/ingest"
	"secondbrain/features/job"
	"secondbrain/features/mcp"
	"secondbrain/features/query"
	"secondbrain/features/status"
	"secondbrain/internal/adapter/gemini"
	"secondbrain/internal/adapter/openai"
	"secondbrain/internal/config"
	"secondbrain/internal/llm"
	"secondbrain/internal/middleware"
	"secondbrain/internal/retrieval"
	"secondbrain/internal/settings"
	"secondbrain/internal/vector"
	"secondbrain/internal/worker"
)

// Version is reported by the service info endpoint.
const Version = "1.0.0"

const (
	consumerChannel = "secondbrain"
	shutdownTimeout = 10 * time.Second
)

type App struct {
	Handler          http.Handler
	DocumentConsumer *worker.DocumentConsumer
	EmbedderConsumer *worker.EmbedderConsumer

	cfg     *config.Config
	closers []io.Closer
}

func New(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*App, error) {
	if deps.Backend == nil || deps.Publisher == nil {
		return nil, errors.New("app: vector backend and publisher are required")
	}
	a := &App{cfg: cfg}

	// Feature: Settings
	var settingsRepo settings.Repository = settings.NewMemoryRepo()
	var jobRepo job.Repository = job.NewMemoryRepo()
	if deps.DB != nil {
		settingsRepo = settings.NewPostgresRepo(deps.DB)
		jobRepo = job.NewPostgresRepo(deps.DB)
	}
	settingsService := settings.NewService(settingsRepo)
	settingsHandler := settings.NewHandler(settingsService)

	// Feature: Job
	jobService := job.NewService(jobRepo, deps.Publisher, logger)
	jobHandler := job.NewHandler(jobService)

	// Storage & embeddings
	store := vector.NewStore(deps.Backend)
	embedder := deps.Embedder
	if embedder == nil {
		e, closer, err := newEmbedder(cfg, settingsService)
		if err != nil {
			return nil, err
		}
		embedder = e
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	embedTimeout := time.Duration(cfg.EmbedTimeoutSeconds) * time.Second

	// Feature: Query
	queryLogger := retrieval.NewQueryLogger(os.Stdout)
	if cfg.QueryLogPath != "" {
		ql, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
		if err != nil {
			slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		} else {
			queryLogger = ql
		}
	}
	retrievalService := retrieval.NewService(embedder, store, embedTimeout)
	registry := llm.NewRegistry(cfg.LocalLLMURL, cfg.LocalContextWindow, cfg.GroqBaseURL)
	completer := llm.NewClient(time.Duration(cfg.LLMTimeoutSeconds) * time.Second)
	queryService := query.NewService(registry, retrievalService, completer, settingsService, queryLogger, cfg.LLMTemperature)
	queryHandler := query.NewHandler(queryService)

	// Feature: Ingest
	ingestHandler := ingest.NewHandler(ingest.NewService(deps.Publisher))

	// Feature: Status & MCP
	statusHandler := status.NewHandler(store, jobRepo)
	mcpHandler := mcp.NewHandler(retrievalService, settingsService)

	// Workers
	a.DocumentConsumer = worker.NewDocumentConsumer(settingsService, deps.Publisher, jobRepo)
	a.EmbedderConsumer = worker.NewEmbedderConsumer(embedder, store, jobRepo, embedTimeout)

	// Routes
	mux := http.NewServeMux()
	preflight := map[string]bool{}
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(middleware.CORS(h)))
		path := strings.SplitN(pattern, " ", 2)[1]
		if !preflight[path] {
			preflight[path] = true
			mux.Handle("OPTIONS "+path, middleware.CORS(func(w http.ResponseWriter, r *http.Request) {}))
		}
	}

	route("POST /ingest", ingestHandler.Ingest)
	route("POST /query", queryHandler.Query)
	route("GET /models", queryHandler.Models)

	route("GET /settings", settingsHandler.GetSettings)
	route("PUT /settings", settingsHandler.UpdateSettings)

	route("GET /jobs/failed", jobHandler.List)
	route("POST /jobs/{id}/retry", jobHandler.Retry)

	route("GET /status", statusHandler.GetStatus)

	route("POST /mcp", mcpHandler.ServeHTTP)
	route("GET /mcp/sse", mcpHandler.HandleSSE)
	route("POST /mcp/messages", mcpHandler.HandleMessage)

	route("GET /{$}", serviceInfo)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	a.Handler = mux
	return a, nil
}

func newEmbedder(cfg *config.Config, svc *settings.Service) (worker.Embedder, io.Closer, error) {
	switch cfg.EmbedderProvider {
	case config.EmbedderOpenAI:
		return openai.NewEmbedder(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel), nil, nil
	case config.EmbedderGemini:
		e := gemini.NewDynamicEmbedder(svc, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		return e, e, nil
	}
	return nil, nil, fmt.Errorf("%w: EMBEDDER_PROVIDER=%q", config.ErrInvalidValue, cfg.EmbedderProvider)
}

func serviceInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "secondbrain",
		"version": Version,
		"endpoints": []string{
			"POST /ingest", "POST /query", "GET /models", "GET /status",
			"GET /settings", "PUT /settings", "GET /jobs/failed", "POST /jobs/{id}/retry",
			"POST /mcp", "GET /health",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// StartConsumers attaches the ingestion consumers to the queue, or to the
// in-process bus when the queue is disabled. The returned function stops them.
func (a *App) StartConsumers(deps *Dependencies) (func(), error) {
	handlers := map[string]nsq.Handler{
		config.TopicIngestDocument: a.DocumentConsumer,
		config.TopicIngestEmbed:    a.EmbedderConsumer,
	}

	if deps.Bus != nil {
		for topic, h := range handlers {
			deps.Bus.Subscribe(topic, h)
		}
		return deps.Bus.Wait, nil
	}

	concurrency := a.cfg.IngestionConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var consumers []*nsq.Consumer
	stop := func() {
		for _, c := range consumers {
			c.Stop()
		}
		for _, c := range consumers {
			<-c.StopChan
		}
	}

	for topic, h := range handlers {
		nsqCfg := nsq.NewConfig()
		nsqCfg.MaxInFlight = concurrency
		c, err := nsq.NewConsumer(topic, consumerChannel, nsqCfg)
		if err != nil {
			stop()
			return nil, fmt.Errorf("nsq consumer %s: %w", topic, err)
		}
		c.AddConcurrentHandlers(h, concurrency)
		if err := c.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
			c.Stop()
			stop()
			return nil, fmt.Errorf("nsq lookupd %s: %w", topic, err)
		}
		consumers = append(consumers, c)
		slog.Info("NSQ consumer connected", "topic", topic, "concurrency", concurrency)
	}
	return stop, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close", "error", err)
		}
	}
}
