package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"secondbrain/internal/adapter/pgvector"
	"secondbrain/internal/adapter/qdrant"
	wstore "secondbrain/internal/adapter/weaviate"
	"secondbrain/internal/config"
	"secondbrain/internal/vector"
	"secondbrain/internal/worker"
)

// Publisher is satisfied by *nsq.Producer and *worker.LocalBus.
type Publisher interface {
	Publish(topic string, body []byte) error
}

type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// Dependencies are the external connections the application runs on.
type Dependencies struct {
	DB        *sql.DB // nil for the memory backend
	Backend   vector.Backend
	Publisher Publisher
	Producer  *nsq.Producer    // nil when the queue is disabled
	Bus       *worker.LocalBus // nil when the queue is enabled

	// Embedder, when set, replaces the configured embedding provider.
	Embedder worker.Embedder

	closers []io.Closer
}

// Close releases everything Bootstrap opened.
func (d *Dependencies) Close() {
	if d.Producer != nil {
		d.Producer.Stop()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			slog.Warn("failed to close dependency", "error", err)
		}
	}
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	if cfg.UsesPostgres() {
		db, err := openDatabase(ctx, cfg, retryDelay)
		if err != nil {
			return nil, err
		}
		deps.DB = db
		deps.closers = append(deps.closers, db)
	}

	backend, err := openBackend(cfg, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}
	if err := EnsureSchemaWithRetry(ctx, backend, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		deps.Close()
		return nil, fmt.Errorf("%s schema error: %w", cfg.VectorBackend, err)
	}
	deps.Backend = backend
	slog.Info("vector backend ready", "backend", cfg.VectorBackend)

	if cfg.NSQEnabled {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.Producer = producer
		deps.Publisher = producer

		go func() {
			time.Sleep(2 * time.Second)
			createTopics(http.DefaultClient, cfg.NSQDHTTP)
		}()
	} else {
		deps.Bus = worker.NewLocalBus(cfg.IngestionConcurrency)
		deps.Publisher = deps.Bus
		slog.Info("queue disabled, dispatching ingestion in process")
	}

	return deps, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = retry(ctx, cfg.BootstrapRetryAttempts, retryDelay, func() error {
		return db.PingContext(ctx)
	}, "failed to ping db, retrying...")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_ = db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied")
	return db, nil
}

func openBackend(cfg *config.Config, deps *Dependencies) (vector.Backend, error) {
	switch cfg.VectorBackend {
	case config.BackendWeaviate:
		client, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		return wstore.NewStore(client), nil
	case config.BackendQdrant:
		store, err := qdrant.Dial(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.QdrantVectorSize)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store)
		return store, nil
	case config.BackendPgvector:
		return pgvector.NewStore(deps.DB), nil
	case config.BackendMemory:
		return vector.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("%w: VECTOR_BACKEND=%q", config.ErrInvalidValue, cfg.VectorBackend)
}

// createTopics registers the ingestion topics with nsqd so consumers polling
// nsqlookupd find them before the first publish.
func createTopics(client *http.Client, nsqdHTTP string) {
	for _, topic := range []string{config.TopicIngestDocument, config.TopicIngestEmbed} {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := client.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			slog.Warn("NSQ topic creation rejected", "topic", topic, "status", resp.StatusCode)
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}
}

// EnsureSchemaWithRetry calls EnsureSchema up to attempts times.
func EnsureSchemaWithRetry(ctx context.Context, store SchemaEnsurer, attempts int, delay time.Duration) error {
	return retry(ctx, attempts, delay, func() error {
		return store.EnsureSchema(ctx)
	}, "failed to ensure vector schema, retrying...")
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, msg string) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		slog.Warn(msg, "attempt", i+1, "max_attempts", attempts, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
