package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"secondbrain/internal/settings"
)

const DefaultModel = "gemini-embedding-001"

var ErrNoAPIKey = errors.New("gemini api key not configured")

// DynamicEmbedder embeds text with Gemini, picking up API key changes from the
// settings row without a restart. The key from the environment is used when
// the row holds none.
type DynamicEmbedder struct {
	settingsSvc *settings.Service
	fallbackKey string
	model       string
	clientOpts  []option.ClientOption

	mu         sync.RWMutex
	client     *genai.Client
	currentKey string
}

func NewDynamicEmbedder(svc *settings.Service, fallbackKey, model string, opts ...option.ClientOption) *DynamicEmbedder {
	if model == "" {
		model = DefaultModel
	}
	return &DynamicEmbedder{
		settingsSvc: svc,
		fallbackKey: fallbackKey,
		model:       model,
		clientOpts:  opts,
	}
}

func (e *DynamicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s, err := e.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	key := s.GeminiAPIKey
	if key == "" {
		key = e.fallbackKey
	}
	if key == "" {
		return nil, ErrNoAPIKey
	}

	client, err := e.getClient(ctx, key)
	if err != nil {
		return nil, err
	}

	res, err := client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}

	return res.Embedding.Values, nil
}

func (e *DynamicEmbedder) getClient(ctx context.Context, key string) (*genai.Client, error) {
	e.mu.RLock()
	if e.client != nil && e.currentKey == key {
		defer e.mu.RUnlock()
		return e.client, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil && e.currentKey == key {
		return e.client, nil
	}

	if e.client != nil {
		if err := e.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	opts := append(append([]option.ClientOption{}, e.clientOpts...), option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	e.client = client
	e.currentKey = key
	return client, nil
}

func (e *DynamicEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
