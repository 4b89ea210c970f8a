package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondbrain/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, 60, cfg.LLMTimeoutSeconds)
	assert.Equal(t, 4096, cfg.LocalContextWindow)
	assert.InDelta(t, 0.7, cfg.LLMTemperature, 1e-6)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.GroqBaseURL)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	require.NoError(t, os.WriteFile(".env", []byte("DB_HOST=loaded-from-file"), 0o644))
	defer os.Remove(".env")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_Toggles(t *testing.T) {
	t.Setenv("NSQ_ENABLED", "false")
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("INGESTION_CONCURRENCY", "10")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.NSQEnabled)
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, 10, cfg.IngestionConcurrency)
}

func TestLoadConfig_InvalidBackend(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "chroma")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			DBHost:             "localhost",
			DBUser:             "user",
			DBName:             "db",
			VectorBackend:      config.BackendWeaviate,
			EmbedderProvider:   config.EmbedderOpenAI,
			EmbeddingBaseURL:   "http://localhost:1234/v1",
			QdrantVectorSize:   384,
			LocalContextWindow: 4096,
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		errIs  error
	}{
		{"Valid Config", func(c *config.Config) {}, nil},
		{"Missing DBHost", func(c *config.Config) { c.DBHost = "" }, config.ErrMissingRequired},
		{"Missing DBUser", func(c *config.Config) { c.DBUser = "" }, config.ErrMissingRequired},
		{"Missing DBName", func(c *config.Config) { c.DBName = "" }, config.ErrMissingRequired},
		{"Memory Needs No DB", func(c *config.Config) { c.VectorBackend = config.BackendMemory; c.DBHost = "" }, nil},
		{"Unknown Backend", func(c *config.Config) { c.VectorBackend = "chroma" }, config.ErrInvalidValue},
		{"Unknown Embedder", func(c *config.Config) { c.EmbedderProvider = "cohere" }, config.ErrInvalidValue},
		{"OpenAI Needs Base URL", func(c *config.Config) { c.EmbeddingBaseURL = "" }, config.ErrMissingRequired},
		{"Gemini Without Base URL", func(c *config.Config) { c.EmbedderProvider = config.EmbedderGemini; c.EmbeddingBaseURL = "" }, nil},
		{"Qdrant Vector Size", func(c *config.Config) { c.VectorBackend = config.BackendQdrant; c.QdrantVectorSize = 0 }, config.ErrInvalidValue},
		{"Context Window", func(c *config.Config) { c.LocalContextWindow = 0 }, config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errIs == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.errIs)
		})
	}
}
