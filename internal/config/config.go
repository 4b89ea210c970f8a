package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

const (
	BackendWeaviate = "weaviate"
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
	BackendMemory   = "memory"

	EmbedderOpenAI = "openai"
	EmbedderGemini = "gemini"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"secondbrain"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"secondbrain"`

	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"weaviate"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	QdrantHost       string `envconfig:"QDRANT_HOST" default:"localhost"`
	QdrantPort       int    `envconfig:"QDRANT_PORT" default:"6334"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"knowledge_chunks"`
	QdrantVectorSize int    `envconfig:"QDRANT_VECTOR_SIZE" default:"384"`

	NSQEnabled           bool   `envconfig:"NSQ_ENABLED" default:"true"`
	NSQLookupd           string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost             string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP             string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	IngestionConcurrency int    `envconfig:"INGESTION_CONCURRENCY" default:"4"`

	// Embeddings
	EmbedderProvider     string `envconfig:"EMBEDDER_PROVIDER" default:"openai"`
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`
	GeminiEmbeddingModel string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingBaseURL     string `envconfig:"EMBEDDING_BASE_URL" default:"http://localhost:1234/v1"`
	EmbeddingAPIKey      string `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingModel       string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-all-minilm-l6-v2-embedding"`
	EmbedTimeoutSeconds  int    `envconfig:"EMBED_TIMEOUT_SECONDS" default:"60"`

	// Completion
	LocalLLMURL        string  `envconfig:"LOCAL_LLM_URL" default:"http://localhost:1234/v1"`
	LocalContextWindow int     `envconfig:"LOCAL_CONTEXT_WINDOW" default:"4096"`
	GroqBaseURL        string  `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	LLMTimeoutSeconds  int     `envconfig:"LLM_TIMEOUT_SECONDS" default:"60"`
	LLMTemperature     float32 `envconfig:"LLM_TEMPERATURE" default:"0.7"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8000"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Tracing
	OTELEndpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"secondbrain"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win; a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UsesPostgres reports whether the relational store is needed. Only the
// memory backend runs without it.
func (c *Config) UsesPostgres() bool {
	return c.VectorBackend != BackendMemory
}

func (c *Config) Validate() error {
	switch c.VectorBackend {
	case BackendWeaviate, BackendQdrant, BackendPgvector, BackendMemory:
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND=%q", ErrInvalidValue, c.VectorBackend)
	}

	switch c.EmbedderProvider {
	case EmbedderOpenAI:
		if c.EmbeddingBaseURL == "" {
			return fmt.Errorf("%w: EMBEDDING_BASE_URL", ErrMissingRequired)
		}
	case EmbedderGemini:
	default:
		return fmt.Errorf("%w: EMBEDDER_PROVIDER=%q", ErrInvalidValue, c.EmbedderProvider)
	}

	if c.UsesPostgres() {
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	}

	if c.VectorBackend == BackendQdrant && c.QdrantVectorSize <= 0 {
		return fmt.Errorf("%w: QDRANT_VECTOR_SIZE must be positive", ErrInvalidValue)
	}
	if c.LocalContextWindow <= 0 {
		return fmt.Errorf("%w: LOCAL_CONTEXT_WINDOW must be positive", ErrInvalidValue)
	}
	return nil
}
